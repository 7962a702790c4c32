// Package metadata persists clip records and the inconsistency ledger in a SQL
// database and exposes the single-record operations the lifecycle service
// builds on.
//
// The Store owns clip identity: ids are assigned by the database on insert,
// uuids are unique and neither changes after creation. SQLite (modernc, pure
// Go) is the default backend; PostgreSQL is available through lib/pq for
// deployments that already run a database server. Both dialects share one set
// of queries; placeholders are rebound for PostgreSQL.
//
// Every failure is classified with the services error markers: missing rows
// surface as ErrNotFound, connectivity or driver failures as
// ErrStoreUnavailable. Schema changes bump the version in schema.go; operators
// migrate or recreate the database to adopt the new schema.
package metadata
