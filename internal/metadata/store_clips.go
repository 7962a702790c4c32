package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clipshelf/internal/services"
)

// NewClip carries the fields supplied when a clip is catalogued.
type NewClip struct {
	UUID        string
	Name        string
	Description string
}

// List returns every clip ordered by id.
func (s *Store) List(ctx context.Context) ([]*Clip, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+clipColumns+" FROM clips ORDER BY id")
	if err != nil {
		return nil, classify("list", "query clips", err)
	}
	defer rows.Close()

	clips := make([]*Clip, 0)
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, classify("list", "scan clip", err)
		}
		clips = append(clips, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", "iterate clips", err)
	}
	return clips, nil
}

// Get fetches a clip by id. A missing row yields services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Clip, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+clipColumns+" FROM clips WHERE id = ?"), id)
	clip, err := scanClip(row)
	if err != nil {
		return nil, classify("get", fmt.Sprintf("clip %d", id), err)
	}
	return clip, nil
}

// UUIDExists reports whether any clip already uses uuid.
func (s *Store) UUIDExists(ctx context.Context, uuid string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(1) FROM clips WHERE uuid = ?"), uuid).Scan(&count)
	if err != nil {
		return false, classify("exists", "count clip uuid", err)
	}
	return count > 0, nil
}

// UUIDs returns the set of uuids referenced by clip rows.
func (s *Store) UUIDs(ctx context.Context) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT uuid FROM clips")
	if err != nil {
		return nil, classify("uuids", "query uuids", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, classify("uuids", "scan uuid", err)
		}
		set[uuid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, classify("uuids", "iterate uuids", err)
	}
	return set, nil
}

// Insert catalogues a new clip and returns it with its assigned id.
func (s *Store) Insert(ctx context.Context, input NewClip) (*Clip, error) {
	if strings.TrimSpace(input.UUID) == "" {
		return nil, services.Wrap(services.ErrValidation, "metadata", "insert", "uuid is required", nil)
	}
	now := formatTime(time.Now())
	var clip *Clip
	err := s.queryRowWithRetry(ctx, func(row *sql.Row) error {
		var scanErr error
		clip, scanErr = scanClip(row)
		return scanErr
	}, "INSERT INTO clips (uuid, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING "+clipColumns,
		input.UUID, input.Name, input.Description, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUUID, input.UUID)
		}
		return nil, classify("insert", "insert clip", err)
	}
	return clip, nil
}

// Update replaces name and description of clip id and returns the stored
// record. id and uuid are left untouched.
func (s *Store) Update(ctx context.Context, id int64, name, description string) (*Clip, error) {
	var clip *Clip
	err := s.queryRowWithRetry(ctx, func(row *sql.Row) error {
		var scanErr error
		clip, scanErr = scanClip(row)
		return scanErr
	}, "UPDATE clips SET name = ?, description = ?, updated_at = ? WHERE id = ? RETURNING "+clipColumns,
		name, description, formatTime(time.Now()), id)
	if err != nil {
		return nil, classify("update", fmt.Sprintf("clip %d", id), err)
	}
	return clip, nil
}

// Delete removes clip id and returns the row as it was, so callers learn the
// uuid of the object to discard without a separate read.
func (s *Store) Delete(ctx context.Context, id int64) (*Clip, error) {
	var clip *Clip
	err := s.queryRowWithRetry(ctx, func(row *sql.Row) error {
		var scanErr error
		clip, scanErr = scanClip(row)
		return scanErr
	}, "DELETE FROM clips WHERE id = ? RETURNING "+clipColumns, id)
	if err != nil {
		return nil, classify("delete", fmt.Sprintf("clip %d", id), err)
	}
	return clip, nil
}
