// Package lifecycle orchestrates clip ingest, edit, delete and read-back over
// the metadata store and object storage.
//
// Ordering carries the consistency guarantees. Ingest writes the object first
// and inserts the metadata row only after the write is confirmed, so a row
// never points at a missing or partial object. Delete removes the row first
// and the object second. When the second step of either operation fails the
// dominant side has already succeeded: the divergence is logged with
// event_type=inconsistency, recorded in the ledger for the reconciliation
// sweep, and (for delete) the caller still sees success.
//
// Mutations require an auth.Authenticated decision and are rejected before any
// store is touched otherwise.
package lifecycle
