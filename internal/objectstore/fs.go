package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"clipshelf/internal/services"
)

const tempPrefix = ".upload-"

// FSStore keeps one file per object in a flat directory.
type FSStore struct {
	dir string
}

var _ Store = (*FSStore)(nil)

// NewFSStore prepares dir for object storage.
func NewFSStore(dir string) (*FSStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("objectstore: storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageError("open", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// Describe implements Store.
func (s *FSStore) Describe() string {
	return "fs:" + s.dir
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

// Put streams body into a temp file in the same directory and renames it over
// the final path once the copy completes, so readers never see a partial
// object and a retried put simply replaces the previous file.
func (s *FSStore) Put(ctx context.Context, key string, body io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(s.dir, tempPrefix+key+"-*")
	if err != nil {
		return 0, storageError("put", key, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: body})
	if err != nil {
		return 0, copyError("put", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, storageError("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, storageError("put", key, err)
	}
	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		return 0, storageError("put", key, err)
	}
	committed = true
	return written, nil
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("get", key)
		}
		return nil, storageError("get", key, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, storageError("get", key, err)
	}
	return &Object{
		ObjectInfo: ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()},
		Body:       file,
	}, nil
}

// Delete implements Store.
func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound("delete", key)
		}
		return storageError("delete", key, err)
	}
	return nil
}

// Stat implements Store.
func (s *FSStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, notFound("stat", key)
		}
		return ObjectInfo{}, storageError("stat", key, err)
	}
	return ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List implements Store. In-progress temp files are skipped.
func (s *FSStore) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, storageError("list", s.dir, err)
	}
	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, storageError("list", s.dir, err)
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, storageError("list", name, err)
		}
		objects = append(objects, ObjectInfo{Key: name, Size: info.Size(), ModTime: info.ModTime()})
	}
	return objects, nil
}

// contextReader stops a copy once ctx is done, so a dropped client aborts the
// write instead of finishing it.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// copyError keeps payload validation failures (size limits) distinguishable
// from backend failures.
func copyError(operation, key string, err error) error {
	if errors.Is(err, services.ErrValidation) {
		return err
	}
	return storageError(operation, key, fmt.Errorf("copy payload: %w", err))
}
