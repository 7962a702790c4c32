package metadata

import "time"

// Clip is one catalog entry. ID and UUID are immutable once assigned.
type Clip struct {
	ID          int64
	UUID        string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InconsistencyKind classifies a divergence between metadata and storage.
type InconsistencyKind string

const (
	// KindOrphanObject is an object in storage with no metadata row.
	KindOrphanObject InconsistencyKind = "orphan_object"
	// KindMissingObject is a metadata row whose object cannot be found.
	KindMissingObject InconsistencyKind = "missing_object"
)

// Inconsistency is a ledger entry recorded for operator visibility and
// resolved by the reconciliation sweep.
type Inconsistency struct {
	ID         int64
	ClipUUID   string
	Kind       InconsistencyKind
	Detail     string
	DetectedAt time.Time
	ResolvedAt *time.Time
}

// Open reports whether the entry still awaits resolution.
func (i Inconsistency) Open() bool {
	return i.ResolvedAt == nil
}
