package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeAdmin()
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeReconcile()
	c.normalizeLogging()
	if err := c.normalizeClient(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeAPI() {
	origins := make([]string, 0, len(c.API.CORSOrigins))
	for _, origin := range c.API.CORSOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.CORSOrigins = origins
	if c.API.MaxMetadataBytes <= 0 {
		c.API.MaxMetadataBytes = defaultAPIMaxMetadataBytes
	}
	if c.API.ShutdownTimeoutSec <= 0 {
		c.API.ShutdownTimeoutSec = defaultAPIShutdownTimeoutSec
	}
}

func (c *Config) normalizeAdmin() {
	if value, ok := os.LookupEnv("CLIPSHELF_ADMIN_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Admin.Username = value
	}
	c.Admin.Username = strings.TrimSpace(c.Admin.Username)
	if c.Admin.Username == "" {
		c.Admin.Username = defaultAdminUsername
	}
	if c.Admin.Password == "" {
		if value, ok := os.LookupEnv("CLIPSHELF_ADMIN_PASSWORD"); ok {
			c.Admin.Password = value
		}
	}
	if c.Admin.SessionTTLMinutes <= 0 {
		c.Admin.SessionTTLMinutes = defaultSessionTTLMinutes
	}
}

func (c *Config) normalizeMetadata() error {
	c.Metadata.Driver = strings.ToLower(strings.TrimSpace(c.Metadata.Driver))
	switch c.Metadata.Driver {
	case "", "sqlite3":
		c.Metadata.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Metadata.Driver = DriverPostgres
	}
	if c.Metadata.DSN == "" {
		if value, ok := os.LookupEnv("CLIPSHELF_DATABASE_DSN"); ok {
			c.Metadata.DSN = value
		}
	}
	c.Metadata.DSN = strings.TrimSpace(c.Metadata.DSN)
	if c.Metadata.Driver == DriverSQLite {
		if c.Metadata.DSN == "" {
			c.Metadata.DSN = filepath.Join(c.Paths.DataDir, defaultSQLiteFileName)
		}
		var err error
		if c.Metadata.DSN, err = expandPath(c.Metadata.DSN); err != nil {
			return fmt.Errorf("metadata.dsn: %w", err)
		}
	}
	if c.Metadata.InsertAttempts <= 0 {
		c.Metadata.InsertAttempts = defaultMetadataInsertAttempts
	}
	if c.Metadata.MaxOpenConns <= 0 {
		c.Metadata.MaxOpenConns = defaultMetadataMaxOpenConns
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" || c.Storage.Backend == "filesystem" {
		c.Storage.Backend = BackendFS
	}
	if c.Storage.Backend == BackendFS {
		if strings.TrimSpace(c.Storage.Dir) == "" {
			c.Storage.Dir = filepath.Join(c.Paths.DataDir, defaultObjectsDirName)
		}
		var err error
		if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
			return fmt.Errorf("storage.dir: %w", err)
		}
	}
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("CLIPSHELF_S3_BUCKET"); ok {
			c.Storage.Bucket = value
		}
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if strings.TrimSpace(c.Storage.Region) == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			c.Storage.Region = value
		} else {
			c.Storage.Region = defaultS3Region
		}
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	if c.Storage.AccessKeyID == "" {
		c.Storage.AccessKeyID = os.Getenv("CLIPSHELF_S3_ACCESS_KEY_ID")
	}
	if c.Storage.SecretAccessKey == "" {
		c.Storage.SecretAccessKey = os.Getenv("CLIPSHELF_S3_SECRET_ACCESS_KEY")
	}
	if c.Storage.PutAttempts <= 0 {
		c.Storage.PutAttempts = defaultStoragePutAttempts
	}
	return nil
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultUploadMaxBytes
	}
	if c.Upload.MaxNameRunes <= 0 {
		c.Upload.MaxNameRunes = defaultMaxNameRunes
	}
	if c.Upload.MaxDescriptionRunes <= 0 {
		c.Upload.MaxDescriptionRunes = defaultMaxDescriptionRunes
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
		return
	}
	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Upload.AllowedExtensions = exts
}

func (c *Config) normalizeReconcile() {
	if c.Reconcile.IntervalMinutes <= 0 {
		c.Reconcile.IntervalMinutes = defaultReconcileInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeClient() error {
	c.Client.ServerURL = strings.TrimRight(strings.TrimSpace(c.Client.ServerURL), "/")
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://" + c.Paths.APIBind
	}
	if strings.TrimSpace(c.Client.SessionFile) == "" {
		c.Client.SessionFile = defaultSessionFile
	}
	var err error
	if c.Client.SessionFile, err = expandPath(c.Client.SessionFile); err != nil {
		return fmt.Errorf("client.session_file: %w", err)
	}
	return nil
}
