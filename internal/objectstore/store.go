package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"clipshelf/internal/config"
	"clipshelf/internal/services"
)

// Store is the object storage contract used by the lifecycle service and the
// reconciliation sweep. Implementations must be safe for concurrent use.
type Store interface {
	// Put streams body under key, replacing any existing object, and returns
	// the number of bytes written. A failed Put leaves no partial object.
	Put(ctx context.Context, key string, body io.Reader) (int64, error)
	// Get opens the object for reading. The caller closes the returned body.
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes the object or returns services.ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Stat returns object metadata without reading the payload.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// List returns every stored object.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Describe names the backend and location for status output.
	Describe() string
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Object is an open payload stream plus its metadata.
type Object struct {
	ObjectInfo
	Body io.ReadCloser
}

// Open builds the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("objectstore: config is nil")
	}
	switch cfg.Storage.Backend {
	case config.BackendFS, "":
		return NewFSStore(cfg.Storage.Dir)
	case config.BackendS3:
		return NewS3Store(ctx, S3Options{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			Prefix:       cfg.Storage.Prefix,
			UsePathStyle: cfg.Storage.UsePathStyle,
			AccessKeyID:  cfg.Storage.AccessKeyID,
			SecretKey:    cfg.Storage.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("objectstore: unsupported backend %q", cfg.Storage.Backend)
	}
}

// ValidateKey rejects keys that could escape the object namespace.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return services.Wrap(services.ErrValidation, "objectstore", "key", "object key is empty", nil)
	case strings.ContainsAny(key, `/\`), key == ".", key == "..", strings.HasPrefix(key, "."):
		return services.Wrap(services.ErrValidation, "objectstore", "key", fmt.Sprintf("invalid object key %q", key), nil)
	}
	return nil
}

func storageError(operation, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrStorageUnavailable, "objectstore", operation, "key "+key+" interrupted", err)
	}
	return services.Wrap(services.ErrStorageUnavailable, "objectstore", operation, "key "+key, err)
}

func notFound(operation, key string) error {
	return services.Wrap(services.ErrNotFound, "objectstore", operation, "object "+key+" not found", nil)
}
