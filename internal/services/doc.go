// Package services defines shared utilities consumed by the clip lifecycle,
// the HTTP server and the reconciliation sweep.
//
// Key responsibilities:
//   - Context helpers that stamp request identifiers, clip IDs, and component
//     names for logging and tracing.
//   - Structured error markers plus the Wrap helper so every layer reports
//     failures in the same taxonomy (not found, unauthorized, validation,
//     store/storage unavailable, inconsistency).
//
// Use these helpers when wiring new code paths so error classification and
// log correlation stay uniform between the stores and the API surface.
package services
