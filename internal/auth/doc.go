// Package auth implements the identity and session guard for the single
// catalog administrator.
//
// Guard checks a username and password against the configured credential in
// constant time and issues opaque session tokens: 32 bytes from crypto/rand,
// hex encoded, kept in memory with a sliding expiry. Validate turns a token
// into a Decision that the lifecycle service requires before any mutation.
// Tokens do not survive a server restart.
package auth
