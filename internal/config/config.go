package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Metadata drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Object storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// API tunes the HTTP surface.
type API struct {
	CORSOrigins        []string `toml:"cors_origins"`
	MaxMetadataBytes   int64    `toml:"max_metadata_bytes"`
	ShutdownTimeoutSec int      `toml:"shutdown_timeout_seconds"`
}

// Admin holds the single administrator credential and session policy.
type Admin struct {
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
	SecureCookies     bool   `toml:"secure_cookies"`
}

// Metadata selects and tunes the clip metadata database.
type Metadata struct {
	Driver         string `toml:"driver"`
	DSN            string `toml:"dsn"`
	InsertAttempts int    `toml:"insert_attempts"`
	MaxOpenConns   int    `toml:"max_open_conns"`
}

// Storage selects the object storage backend holding clip payloads.
type Storage struct {
	Backend      string `toml:"backend"`
	Dir          string `toml:"dir"`
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	Prefix       string `toml:"prefix"`
	UsePathStyle bool   `toml:"use_path_style"`
	PutAttempts  int    `toml:"put_attempts"`
	// Static credentials; when empty the AWS default chain is used.
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Upload contains limits applied to incoming clips.
type Upload struct {
	MaxBytes            int64    `toml:"max_bytes"`
	AllowedExtensions   []string `toml:"allowed_extensions"`
	MaxNameRunes        int      `toml:"max_name_runes"`
	MaxDescriptionRunes int      `toml:"max_description_runes"`
}

// Reconcile controls the orphan sweep between metadata and storage.
type Reconcile struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
	GraceMinutes    int  `toml:"grace_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Client contains settings used by the CLI when talking to a running server.
type Client struct {
	ServerURL   string `toml:"server_url"`
	SessionFile string `toml:"session_file"`
}

// Config encapsulates all configuration values for clipshelf.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - API: CORS origins and request limits
//   - Admin: administrator credential and session lifetime
//   - Metadata: sqlite or postgres clip table
//   - Storage: filesystem or S3 object storage
//   - Upload: payload size and naming limits
//   - Reconcile: periodic orphan sweep
//   - Logging: log format and level
//   - Client: CLI server address and token file
type Config struct {
	Paths     Paths     `toml:"paths"`
	API       API       `toml:"api"`
	Admin     Admin     `toml:"admin"`
	Metadata  Metadata  `toml:"metadata"`
	Storage   Storage   `toml:"storage"`
	Upload    Upload    `toml:"upload"`
	Reconcile Reconcile `toml:"reconcile"`
	Logging   Logging   `toml:"logging"`
	Client    Client    `toml:"client"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipshelf/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	return load(path, (*Config).Validate)
}

// LoadClient is Load for commands that only talk to a running server. The
// server-side requirements (admin password, stores) are not enforced.
func LoadClient(path string) (*Config, string, bool, error) {
	return load(path, (*Config).ValidateClient)
}

func load(path string, validate func(*Config) error) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := validate(&cfg); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv overlays .env files next to the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipshelf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == BackendFS {
		dirs = append(dirs, c.Storage.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionTTL returns the administrator session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Admin.SessionTTLMinutes) * time.Minute
}

// ReconcileInterval returns the delay between background orphan sweeps.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalMinutes) * time.Minute
}

// ReconcileGrace returns how old an unreferenced object must be before the
// sweep reclaims it.
func (c *Config) ReconcileGrace() time.Duration {
	return time.Duration(c.Reconcile.GraceMinutes) * time.Minute
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.API.ShutdownTimeoutSec) * time.Second
}

// LockPath returns the single-instance lock file for the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "clipshelfd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path. Unless
// overwrite is set an existing file is left alone and the returned error
// wraps fs.ErrExist.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	// the sample carries a password slot, so keep it private
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}
