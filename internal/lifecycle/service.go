package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"clipshelf/internal/config"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
)

// MetadataStore is the clip table as seen by the service.
type MetadataStore interface {
	List(ctx context.Context) ([]*metadata.Clip, error)
	Get(ctx context.Context, id int64) (*metadata.Clip, error)
	UUIDExists(ctx context.Context, uuid string) (bool, error)
	Insert(ctx context.Context, input metadata.NewClip) (*metadata.Clip, error)
	Update(ctx context.Context, id int64, name, description string) (*metadata.Clip, error)
	Delete(ctx context.Context, id int64) (*metadata.Clip, error)
}

// InconsistencyRecorder persists detected divergences for operators and the
// reconciliation sweep.
type InconsistencyRecorder interface {
	RecordInconsistency(ctx context.Context, clipUUID string, kind metadata.InconsistencyKind, detail string) error
}

// Options tunes a Service.
type Options struct {
	Limits         Limits
	InsertAttempts int
	PutAttempts    int
	Logger         *slog.Logger
	// NewUUID overrides key generation; tests use it to force collisions.
	NewUUID func() string
}

// Service implements the clip lifecycle. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	meta      MetadataStore
	objects   objectstore.Store
	recorder  InconsistencyRecorder
	limits    Limits
	validate  *validator.Validate
	insertTry int
	putTry    int
	newUUID   func() string
	logger    *slog.Logger
}

const (
	uuidAttempts          = 3
	insertInitialBackoff  = 50 * time.Millisecond
	insertMaxBackoff      = time.Second
	commitTimeout         = 30 * time.Second
	cleanupTimeout        = 30 * time.Second
	defaultMaxNameRunes   = 200
	defaultMaxDescription = 5000
)

// New wires a Service. recorder may be nil, in which case inconsistencies are
// only logged.
func New(meta MetadataStore, objects objectstore.Store, recorder InconsistencyRecorder, opts Options) (*Service, error) {
	if meta == nil || objects == nil {
		return nil, errors.New("lifecycle: metadata and object stores are required")
	}
	limits := opts.Limits
	if limits.MaxNameRunes <= 0 {
		limits.MaxNameRunes = defaultMaxNameRunes
	}
	if limits.MaxDescriptionRunes <= 0 {
		limits.MaxDescriptionRunes = defaultMaxDescription
	}
	if limits.MaxBytes <= 0 {
		return nil, errors.New("lifecycle: max payload bytes must be positive")
	}
	newUUID := opts.NewUUID
	if newUUID == nil {
		newUUID = uuid.NewString
	}
	svc := &Service{
		meta:      meta,
		objects:   objects,
		recorder:  recorder,
		limits:    limits,
		validate:  newValidator(limits),
		insertTry: max(opts.InsertAttempts, 1),
		putTry:    max(opts.PutAttempts, 1),
		newUUID:   newUUID,
		logger:    logging.NewComponentLogger(opts.Logger, "lifecycle"),
	}
	return svc, nil
}

// NewFromConfig wires a Service over a metadata.Store, which also serves as
// the inconsistency recorder.
func NewFromConfig(cfg *config.Config, meta *metadata.Store, objects objectstore.Store, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("lifecycle: config is nil")
	}
	return New(meta, objects, meta, Options{
		Limits: Limits{
			MaxBytes:            cfg.Upload.MaxBytes,
			AllowedExtensions:   cfg.Upload.AllowedExtensions,
			MaxNameRunes:        cfg.Upload.MaxNameRunes,
			MaxDescriptionRunes: cfg.Upload.MaxDescriptionRunes,
		},
		InsertAttempts: cfg.Metadata.InsertAttempts,
		PutAttempts:    cfg.Storage.PutAttempts,
		Logger:         logger,
	})
}

// Limits returns the effective input limits.
func (s *Service) Limits() Limits {
	return s.limits
}

// recordInconsistency logs the divergence and writes it to the ledger. A
// ledger failure is logged and otherwise ignored: the in-flight operation has
// already reached its outcome.
func (s *Service) recordInconsistency(ctx context.Context, clipUUID string, kind metadata.InconsistencyKind, detail string, cause error) {
	logger := logging.WithContext(ctx, s.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldClipUUID, clipUUID),
		logging.String("inconsistency_kind", string(kind)),
		logging.String("detail", detail),
		logging.String(logging.FieldErrorHint, "run `clipshelf reconcile` or wait for the background sweep"),
		logging.String(logging.FieldImpact, "metadata and object storage disagree until reconciled"),
	}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	logging.WarnWithContext(logger, "inconsistency detected", "inconsistency", attrs...)

	if s.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.recorder.RecordInconsistency(recordCtx, clipUUID, kind, detail); err != nil {
		logging.ErrorWithContext(logger, "failed to record inconsistency", "inconsistency_record_failed",
			logging.String(logging.FieldClipUUID, clipUUID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metadata database availability"),
		)
	}
}
