package testsupport

import (
	"path/filepath"
	"testing"

	"clipshelf/internal/config"
)

// TestPassword is the administrator password seeded into test configs.
const TestPassword = "correct horse battery staple"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Admin.Username = "admin"
	cfgVal.Admin.Password = TestPassword
	cfgVal.Metadata.Driver = config.DriverSQLite
	cfgVal.Metadata.DSN = filepath.Join(base, "data", "clips.db")
	cfgVal.Storage.Backend = config.BackendFS
	cfgVal.Storage.Dir = filepath.Join(base, "objects")
	cfgVal.Upload.MaxBytes = 1 << 20
	cfgVal.Reconcile.Enabled = false
	cfgVal.Client.ServerURL = "http://127.0.0.1:0"
	cfgVal.Client.SessionFile = filepath.Join(base, "session.json")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxBytes overrides the upload size limit.
func WithMaxBytes(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxBytes = limit
	}
}

// WithSessionTTL overrides the administrator session lifetime in minutes.
func WithSessionTTL(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Admin.SessionTTLMinutes = minutes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
