package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Clip describes a catalog entry in a transport-friendly format.
type Clip struct {
	ID          int64  `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// ClipListResponse wraps the full catalog.
type ClipListResponse struct {
	Clips []Clip `json:"clips"`
}

// ClipResponse wraps a single clip.
type ClipResponse struct {
	Clip Clip `json:"clip"`
}

// DeleteResponse reports the removed clip.
type DeleteResponse struct {
	Deleted Clip `json:"deleted"`
}

// EditRequest replaces a clip's name and description.
type EditRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoginRequest carries the administrator credential.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a session token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// StoreHealth reports reachability of one backing store.
type StoreHealth struct {
	Name    string `json:"name"`
	Target  string `json:"target"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Inconsistency is an open ledger entry.
type Inconsistency struct {
	ID         int64  `json:"id"`
	ClipUUID   string `json:"clipUuid"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail,omitempty"`
	DetectedAt string `json:"detectedAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// ServerStatus aggregates runtime information for API consumers.
type ServerStatus struct {
	Running         bool             `json:"running"`
	PID             int              `json:"pid"`
	Bind            string           `json:"bind"`
	LockFilePath    string           `json:"lockFilePath"`
	ClipCount       int              `json:"clipCount"`
	ActiveSessions  int              `json:"activeSessions"`
	Authenticated   bool             `json:"authenticated"`
	Stores          []StoreHealth    `json:"stores"`
	Inconsistencies []Inconsistency  `json:"inconsistencies"`
	LastReconcile   *ReconcileReport `json:"lastReconcile,omitempty"`
}

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	Objects         int      `json:"objects"`
	Clips           int      `json:"clips"`
	OrphansRemoved  []string `json:"orphansRemoved"`
	OrphansYoung    int      `json:"orphansYoung"`
	OrphansFailed   []string `json:"orphansFailed"`
	MissingObjects  []string `json:"missingObjects"`
	ResolvedEntries int      `json:"resolvedEntries"`
	DryRun          bool     `json:"dryRun"`
	DurationMillis  int64    `json:"durationMillis"`
	CompletedAt     string   `json:"completedAt,omitempty"`
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Multipart field names of a clip upload. The file part must come last so the
// server can stream it straight into storage.
const (
	UploadFieldName        = "name"
	UploadFieldDescription = "description"
	UploadFieldSize        = "size"
	UploadFieldFile        = "file"
)
