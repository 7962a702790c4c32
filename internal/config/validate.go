package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAdmin(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateClient checks only the settings the CLI needs to reach a server.
func (c *Config) ValidateClient() error {
	if strings.TrimSpace(c.Client.ServerURL) == "" {
		return errors.New("client.server_url must be set")
	}
	return c.validateLogging()
}

func (c *Config) validateAdmin() error {
	if c.Admin.Password == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipshelf/config.toml"
		}
		return fmt.Errorf("admin.password is required. Set CLIPSHELF_ADMIN_PASSWORD env var or edit %s (create with 'clipshelf config init')", defaultPath)
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		return errors.New("admin.username must be set")
	}
	if c.Admin.SessionTTLMinutes <= 0 {
		return errors.New("admin.session_ttl_minutes must be positive")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("metadata.driver: unsupported value %q (use %q or %q)", c.Metadata.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Metadata.DSN == "" {
		return errors.New("metadata.dsn must be set (or CLIPSHELF_DATABASE_DSN)")
	}
	return ensurePositiveMap(map[string]int{
		"metadata.insert_attempts": c.Metadata.InsertAttempts,
		"metadata.max_open_conns":  c.Metadata.MaxOpenConns,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendFS:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir must be set when storage.backend is fs")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3 (or CLIPSHELF_S3_BUCKET)")
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
		}
		if c.Storage.Region == "" {
			return errors.New("storage.region must be set when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (use %q or %q)", c.Storage.Backend, BackendFS, BackendS3)
	}
	if c.Storage.PutAttempts <= 0 {
		return errors.New("storage.put_attempts must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("upload.allowed_extensions must include at least one extension")
	}
	return ensurePositiveMap(map[string]int{
		"upload.max_name_runes":        c.Upload.MaxNameRunes,
		"upload.max_description_runes": c.Upload.MaxDescriptionRunes,
	})
}

// The sweep must never race an upload whose row has not committed yet.
func (c *Config) validateReconcile() error {
	if c.Reconcile.GraceMinutes < minReconcileGraceMinutes {
		return fmt.Errorf("reconcile.grace_minutes must be at least %d, got %d", minReconcileGraceMinutes, c.Reconcile.GraceMinutes)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
