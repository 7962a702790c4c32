package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SavedSession is the token persisted between CLI invocations.
type SavedSession struct {
	Server    string    `json:"server"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the saved token is past its last known expiry.
// Sessions slide on use, so an unexpired entry may still be rejected.
func (s SavedSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// FileTokenStore writes the session token to a JSON file on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a FileTokenStore rooted at the provided path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the backing file.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the saved session. A missing file resolves to an empty session.
func (s *FileTokenStore) Load() (SavedSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SavedSession{}, nil
		}
		return SavedSession{}, fmt.Errorf("read session file: %w", err)
	}

	var session SavedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return SavedSession{}, fmt.Errorf("decode session file: %w", err)
	}
	return session, nil
}

// Save persists the session with owner-only permissions.
func (s *FileTokenStore) Save(session SavedSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("restrict session file: %w", err)
	}
	return nil
}

// Clear removes the saved session. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
