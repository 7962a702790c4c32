package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipshelf/internal/config"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/services"
)

// Ledger is the metadata view the sweep needs.
type Ledger interface {
	UUIDs(ctx context.Context) (map[string]struct{}, error)
	UUIDExists(ctx context.Context, uuid string) (bool, error)
	RecordInconsistency(ctx context.Context, clipUUID string, kind metadata.InconsistencyKind, detail string) error
	ListInconsistencies(ctx context.Context, openOnly bool) ([]*metadata.Inconsistency, error)
	ResolveInconsistencies(ctx context.Context, clipUUID string, kind metadata.InconsistencyKind) (int64, error)
}

// Options tunes a Sweeper.
type Options struct {
	Grace  time.Duration
	DryRun bool
	Logger *slog.Logger
	Clock  func() time.Time
}

// Report summarises one sweep.
type Report struct {
	Objects         int
	Clips           int
	OrphansRemoved  []string
	OrphansYoung    int
	OrphansFailed   []string
	MissingObjects  []string
	ResolvedEntries int
	DryRun          bool
	Duration        time.Duration
}

// Clean reports whether the sweep found nothing to do.
func (r Report) Clean() bool {
	return len(r.OrphansRemoved) == 0 && len(r.OrphansFailed) == 0 && len(r.MissingObjects) == 0 && r.OrphansYoung == 0
}

// Sweeper reconciles one metadata store with one object store.
type Sweeper struct {
	ledger  Ledger
	objects objectstore.Store
	grace   time.Duration
	dryRun  bool
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	last     Report
	lastAt   time.Time
	haveLast bool
}

// New builds a Sweeper.
func New(ledger Ledger, objects objectstore.Store, opts Options) (*Sweeper, error) {
	if ledger == nil || objects == nil {
		return nil, errors.New("reconcile: ledger and object store are required")
	}
	if opts.Grace < 0 {
		return nil, fmt.Errorf("reconcile: grace must not be negative, got %s", opts.Grace)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		ledger:  ledger,
		objects: objects,
		grace:   opts.Grace,
		dryRun:  opts.DryRun,
		now:     clock,
		logger:  logging.NewComponentLogger(opts.Logger, "reconcile"),
	}, nil
}

// NewFromConfig builds a Sweeper using the [reconcile] grace period.
func NewFromConfig(cfg *config.Config, ledger Ledger, objects objectstore.Store, logger *slog.Logger, dryRun bool) (*Sweeper, error) {
	if cfg == nil {
		return nil, errors.New("reconcile: config is nil")
	}
	return New(ledger, objects, Options{Grace: cfg.ReconcileGrace(), DryRun: dryRun, Logger: logger})
}

// Sweep performs one pass. Objects are listed before rows so a clip ingested
// mid-sweep shows up as a young orphan rather than a missing object; every
// candidate is re-checked against the authoritative store before acting.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	started := s.now()
	report := Report{DryRun: s.dryRun}

	objects, err := s.objects.List(ctx)
	if err != nil {
		return report, err
	}
	report.Objects = len(objects)
	present := make(map[string]objectstore.ObjectInfo, len(objects))
	for _, obj := range objects {
		present[obj.Key] = obj
	}

	referenced, err := s.ledger.UUIDs(ctx)
	if err != nil {
		return report, err
	}
	report.Clips = len(referenced)

	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if err := s.handleOrphan(ctx, obj, &report); err != nil {
			return report, err
		}
	}

	for key := range referenced {
		if _, ok := present[key]; ok {
			continue
		}
		if err := s.handleMissing(ctx, key, &report); err != nil {
			return report, err
		}
	}

	if !s.dryRun {
		resolved, err := s.resolveStale(ctx)
		if err != nil {
			return report, err
		}
		report.ResolvedEntries = resolved
	}

	completed := s.now()
	report.Duration = completed.Sub(started)
	s.logReport(ctx, report)

	s.mu.Lock()
	s.last, s.lastAt, s.haveLast = report, completed, true
	s.mu.Unlock()
	return report, nil
}

// Last returns the most recent successful sweep and when it completed.
func (s *Sweeper) Last() (Report, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastAt, s.haveLast
}

func (s *Sweeper) handleOrphan(ctx context.Context, obj objectstore.ObjectInfo, report *Report) error {
	if age := s.now().Sub(obj.ModTime); age < s.grace {
		report.OrphansYoung++
		return nil
	}
	exists, err := s.ledger.UUIDExists(ctx, obj.Key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if s.dryRun {
		report.OrphansRemoved = append(report.OrphansRemoved, obj.Key)
		return nil
	}
	err = s.objects.Delete(ctx, obj.Key)
	switch {
	case err == nil, errors.Is(err, services.ErrNotFound):
		report.OrphansRemoved = append(report.OrphansRemoved, obj.Key)
		s.logger.Info("orphan object removed",
			logging.String(logging.FieldEventType, "orphan_removed"),
			logging.String(logging.FieldClipUUID, obj.Key),
			logging.Int64("bytes", obj.Size),
		)
	default:
		report.OrphansFailed = append(report.OrphansFailed, obj.Key)
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "orphan object could not be removed", "inconsistency",
			logging.String(logging.FieldClipUUID, obj.Key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check object storage permissions"),
			logging.String(logging.FieldImpact, "storage space not reclaimed"),
		)
		if recErr := s.ledger.RecordInconsistency(ctx, obj.Key, metadata.KindOrphanObject, "sweep could not remove orphan object"); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *Sweeper) handleMissing(ctx context.Context, key string, report *Report) error {
	_, err := s.objects.Stat(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return err
	}
	report.MissingObjects = append(report.MissingObjects, key)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "clip row has no stored object", "inconsistency",
		logging.String(logging.FieldClipUUID, key),
		logging.String(logging.FieldErrorHint, "restore the object or delete the clip"),
		logging.String(logging.FieldImpact, "clip payload cannot be served"),
	)
	if s.dryRun {
		return nil
	}
	return s.ledger.RecordInconsistency(ctx, key, metadata.KindMissingObject, "sweep found no stored object")
}

// resolveStale closes ledger entries whose condition no longer holds.
func (s *Sweeper) resolveStale(ctx context.Context) (int, error) {
	entries, err := s.ledger.ListInconsistencies(ctx, true)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, entry := range entries {
		stale, err := s.entryStale(ctx, entry)
		if err != nil {
			return resolved, err
		}
		if !stale {
			continue
		}
		n, err := s.ledger.ResolveInconsistencies(ctx, entry.ClipUUID, entry.Kind)
		if err != nil {
			return resolved, err
		}
		resolved += int(n)
	}
	return resolved, nil
}

func (s *Sweeper) entryStale(ctx context.Context, entry *metadata.Inconsistency) (bool, error) {
	rowExists, err := s.ledger.UUIDExists(ctx, entry.ClipUUID)
	if err != nil {
		return false, err
	}
	_, statErr := s.objects.Stat(ctx, entry.ClipUUID)
	objectExists := statErr == nil
	if statErr != nil && !errors.Is(statErr, services.ErrNotFound) {
		return false, statErr
	}
	switch entry.Kind {
	case metadata.KindOrphanObject:
		return !objectExists || rowExists, nil
	case metadata.KindMissingObject:
		return !rowExists || objectExists, nil
	default:
		return false, nil
	}
}

func (s *Sweeper) logReport(ctx context.Context, report Report) {
	logger := logging.WithContext(ctx, s.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "reconcile_complete"),
		logging.Int("objects", report.Objects),
		logging.Int("clips", report.Clips),
		logging.Int("orphans_removed", len(report.OrphansRemoved)),
		logging.Int("orphans_young", report.OrphansYoung),
		logging.Int("orphans_failed", len(report.OrphansFailed)),
		logging.Int("missing_objects", len(report.MissingObjects)),
		logging.Int("resolved_entries", report.ResolvedEntries),
		logging.Bool("dry_run", report.DryRun),
		logging.Duration("duration", report.Duration),
	}
	if report.Clean() {
		logger.Debug("reconcile sweep complete", logging.Args(attrs...)...)
		return
	}
	logger.Info("reconcile sweep complete", logging.Args(attrs...)...)
}

// Run sweeps every interval until ctx is done. Sweep failures are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(s.logger, "reconcile sweep failed", "reconcile_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check metadata and object storage availability"),
					logging.String(logging.FieldImpact, "orphans persist until the next sweep"),
				)
			}
		}
	}
}
