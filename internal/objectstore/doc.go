// Package objectstore holds clip payloads keyed by clip uuid.
//
// Two backends implement Store: a local directory (the default) and an S3
// bucket through aws-sdk-go-v2. Both stream payloads in and out without
// buffering a whole clip in memory, and both treat Put as an overwrite so a
// retried upload under the same key leaves exactly one object behind.
//
// Missing keys surface as services.ErrNotFound; backend failures as
// services.ErrStorageUnavailable. PutWithRetry adds the only locally recovered
// failure in the system: a retried put when the payload can be rewound.
package objectstore
