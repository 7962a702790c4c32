package config

const (
	defaultDataDir                = "~/.local/share/clipshelf"
	defaultLogDir                 = "~/.local/share/clipshelf/logs"
	defaultAPIBind                = "127.0.0.1:7490"
	defaultAdminUsername          = "admin"
	defaultSessionTTLMinutes      = 12 * 60
	defaultMetadataDriver         = DriverSQLite
	defaultStorageBackend         = BackendFS
	defaultObjectsDirName         = "objects"
	defaultSQLiteFileName         = "clips.db"
	defaultStoragePutAttempts     = 3
	defaultUploadMaxBytes         = int64(2 << 30)
	defaultReconcileEnabled       = true
	defaultReconcileInterval      = 60
	defaultReconcileGraceMinutes  = 30
	minReconcileGraceMinutes      = 1
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultSessionFile            = "~/.config/clipshelf/session.json"
	defaultS3Region               = "us-east-1"
	defaultMaxNameRunes           = 200
	defaultMaxDescriptionRunes    = 5000
	defaultMetadataInsertAttempts = 3
	defaultMetadataMaxOpenConns   = 8
	defaultAPIMaxMetadataBytes    = int64(64 << 10)
	defaultAPIShutdownTimeoutSec  = 10
)

var defaultAllowedExtensions = []string{".mp4", ".webm", ".mov", ".mkv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		API: API{
			MaxMetadataBytes:   defaultAPIMaxMetadataBytes,
			ShutdownTimeoutSec: defaultAPIShutdownTimeoutSec,
		},
		Admin: Admin{
			Username:          defaultAdminUsername,
			SessionTTLMinutes: defaultSessionTTLMinutes,
		},
		Metadata: Metadata{
			Driver:         defaultMetadataDriver,
			InsertAttempts: defaultMetadataInsertAttempts,
			MaxOpenConns:   defaultMetadataMaxOpenConns,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			Region:      defaultS3Region,
			PutAttempts: defaultStoragePutAttempts,
		},
		Upload: Upload{
			MaxBytes:            defaultUploadMaxBytes,
			AllowedExtensions:   append([]string(nil), defaultAllowedExtensions...),
			MaxNameRunes:        defaultMaxNameRunes,
			MaxDescriptionRunes: defaultMaxDescriptionRunes,
		},
		Reconcile: Reconcile{
			Enabled:         defaultReconcileEnabled,
			IntervalMinutes: defaultReconcileInterval,
			GraceMinutes:    defaultReconcileGraceMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Client: Client{
			SessionFile: defaultSessionFile,
		},
	}
}
