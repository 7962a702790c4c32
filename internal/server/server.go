package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipshelf/internal/auth"
	"clipshelf/internal/config"
	"clipshelf/internal/lifecycle"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/reconcile"
)

const sessionSweepInterval = time.Minute

// Deps are the collaborators a Server is built from. Guard, Service and
// Sweeper are derived from the config when nil.
type Deps struct {
	Metadata *metadata.Store
	Objects  objectstore.Store
	Guard    *auth.Guard
	Service  *lifecycle.Service
	Sweeper  *reconcile.Sweeper
	Logger   *slog.Logger
}

// Server serves the HTTP API and runs background maintenance.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	meta     *metadata.Store
	objects  objectstore.Store
	guard    *auth.Guard
	clips    *lifecycle.Service
	sweeper  *reconcile.Sweeper
	handler  http.Handler
	lockPath string
	lock     *flock.Flock

	// mu serializes Start and Stop. Request handlers must not take it,
	// since Stop holds it while waiting for them to drain.
	mu      sync.Mutex
	http    *http.Server
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	addr    atomic.Pointer[string]
}

// New wires a Server. It does not bind or lock anything until Start.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is nil")
	}
	if deps.Metadata == nil || deps.Objects == nil {
		return nil, errors.New("server: metadata and object stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	guard := deps.Guard
	if guard == nil {
		var err error
		if guard, err = auth.NewFromConfig(cfg, logger); err != nil {
			return nil, err
		}
	}
	clips := deps.Service
	if clips == nil {
		var err error
		if clips, err = lifecycle.NewFromConfig(cfg, deps.Metadata, deps.Objects, logger); err != nil {
			return nil, err
		}
	}
	sweeper := deps.Sweeper
	if sweeper == nil {
		var err error
		if sweeper, err = reconcile.NewFromConfig(cfg, deps.Metadata, deps.Objects, logger, false); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		meta:     deps.Metadata,
		objects:  deps.Objects,
		guard:    guard,
		clips:    clips,
		sweeper:  sweeper,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start acquires the instance lock, binds the listener, and launches the
// background loops. The server stops when ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return errors.New("server already running")
	}

	if dir := s.cfg.Paths.DataDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another clipshelfd instance is already running (lock %s)", s.lockPath)
	}

	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.http = srv
	bound := listener.Addr().String()
	s.addr.Store(&bound)
	s.cancel = cancel
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepSessions(runCtx)
	}()

	if s.cfg.Reconcile.Enabled {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sweeper.Run(runCtx, s.cfg.ReconcileInterval())
		}()
	}

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", bound),
		logging.String("metadata", s.meta.Target()),
		logging.String("storage", s.objects.Describe()),
		logging.Bool("reconcile", s.cfg.Reconcile.Enabled),
	)
	return nil
}

// Stop shuts the HTTP server down gracefully and releases the lock. It is
// safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)

	if s.cancel != nil {
		s.cancel()
	}
	if s.http != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logging.WarnWithContext(s.logger, "graceful shutdown incomplete", "api_shutdown",
				logging.Error(err),
				logging.String(logging.FieldImpact, "in-flight requests were cut off"),
			)
			_ = s.http.Close()
		}
		cancel()
	}
	s.wg.Wait()
	s.http = nil
	s.addr.Store(nil)

	if err := s.lock.Unlock(); err != nil {
		logging.WarnWithContext(s.logger, "failed to release lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock_path", s.lockPath),
		)
	}
	s.logger.Info("api server stopped")
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Addr returns the bound listener address, or the configured bind when idle.
func (s *Server) Addr() string {
	if bound := s.addr.Load(); bound != nil {
		return *bound
	}
	return s.cfg.Paths.APIBind
}

func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.guard.Sweep(); removed > 0 {
				s.logger.Debug("expired sessions removed", logging.Int("count", removed))
			}
		}
	}
}
