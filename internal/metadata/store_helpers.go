package metadata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clipshelf/internal/services"
)

const clipColumns = "id, uuid, name, description, created_at, updated_at"

const inconsistencyColumns = "id, clip_uuid, kind, detail, detected_at, resolved_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(scanner rowScanner) (*Clip, error) {
	var (
		clip       Clip
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&clip.ID, &clip.UUID, &clip.Name, &clip.Description, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	var err error
	if clip.CreatedAt, err = parseTimeString(createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at for clip %d: %w", clip.ID, err)
	}
	if clip.UpdatedAt, err = parseTimeString(updatedRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at for clip %d: %w", clip.ID, err)
	}
	return &clip, nil
}

func scanInconsistency(scanner rowScanner) (*Inconsistency, error) {
	var (
		entry       Inconsistency
		kind        string
		detail      sql.NullString
		detectedRaw string
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &entry.ClipUUID, &kind, &detail, &detectedRaw, &resolvedRaw); err != nil {
		return nil, err
	}
	entry.Kind = InconsistencyKind(kind)
	if detail.Valid {
		entry.Detail = detail.String
	}
	detected, err := parseTimeString(detectedRaw)
	if err != nil {
		return nil, fmt.Errorf("parse detected_at for inconsistency %d: %w", entry.ID, err)
	}
	entry.DetectedAt = detected
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			entry.ResolvedAt = &resolved
		}
	}
	return &entry, nil
}

// classify maps driver errors onto the services markers.
func classify(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "metadata", operation, message, nil)
	}
	return services.Wrap(services.ErrStoreUnavailable, "metadata", operation, message, err)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
