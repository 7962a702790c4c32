// Package reconcile compares the metadata and object namespaces and repairs
// what the lifecycle ordering cannot: objects left behind by failed inserts or
// failed deletes, and rows whose object has vanished.
//
// Objects without a row are deleted only once they are older than the grace
// period, which keeps in-flight ingests (object written, row not yet
// inserted) safe. Rows without an object are recorded, never deleted; the
// catalog entry is the user-visible truth and an operator decides its fate.
package reconcile
