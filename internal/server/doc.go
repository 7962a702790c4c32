// Package server exposes the clip catalog over HTTP.
//
// A Server owns the single-instance lock, the gorilla/mux router, the session
// guard, and the background loops (session sweep and reconcile sweep). Reads
// are public; mutations and logout require a session token supplied as a
// bearer header or the session cookie. Errors are returned as api.ErrorResponse
// payloads carrying a stable code.
package server
