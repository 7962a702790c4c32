package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"clipshelf/internal/config"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/preflight"
	"clipshelf/internal/server"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdout disables the console writer when false; the run log is always written.
	Stdout bool
}

// Run starts clipshelfd and blocks until ctx is cancelled or a termination
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("clipshelfd-%s.log", runID))
	outputs := []string{logPath}
	errorOutputs := []string{logPath}
	if opts.Stdout {
		// writers are merged, so one console stream is enough
		outputs = append([]string{"stdout"}, outputs...)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update clipshelfd.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "clipshelfd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := metadata.Open(cfg)
	if err != nil {
		logger.Error("open metadata store", logging.Error(err))
		return err
	}
	defer store.Close()

	objects, err := objectstore.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open object storage", logging.Error(err))
		return err
	}

	srv, err := server.New(cfg, server.Deps{Metadata: store, Objects: objects, Logger: logger})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	defer srv.Stop()

	<-signalCtx.Done()
	logger.Info("clipshelfd shutting down")
	return nil
}

// logPreflight records the readiness snapshot. Failures are warnings: the
// server still starts so status can report them.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix the path or store named in detail"),
			logging.String(logging.FieldImpact, "requests touching this store will fail"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "clipshelfd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
