// Package client talks to a running clipshelfd over HTTP.
//
// Client wraps the JSON API and the streaming upload and content endpoints,
// translating error payloads back into the services error markers so callers
// can branch with errors.Is. FileTokenStore persists the session token the
// CLI reuses between invocations.
package client
