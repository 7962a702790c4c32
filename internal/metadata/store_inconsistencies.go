package metadata

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RecordInconsistency adds an open ledger entry unless one already exists for
// the same uuid and kind, in which case the detail is refreshed.
func (s *Store) RecordInconsistency(ctx context.Context, clipUUID string, kind InconsistencyKind, detail string) error {
	ctx = ensureContext(ctx)
	var existing int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id FROM inconsistencies WHERE clip_uuid = ? AND kind = ? AND resolved_at IS NULL LIMIT 1"),
		clipUUID, string(kind)).Scan(&existing)
	switch {
	case err == nil:
		if _, err := s.execWithRetry(ctx, "UPDATE inconsistencies SET detail = ? WHERE id = ?", nullableString(detail), existing); err != nil {
			return classify("record_inconsistency", "refresh entry", err)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return classify("record_inconsistency", "lookup entry", err)
	}

	_, err = s.execWithRetry(ctx,
		"INSERT INTO inconsistencies (clip_uuid, kind, detail, detected_at) VALUES (?, ?, ?, ?)",
		clipUUID, string(kind), nullableString(detail), formatTime(time.Now()))
	if err != nil {
		return classify("record_inconsistency", "insert entry", err)
	}
	return nil
}

// ListInconsistencies returns ledger entries, newest first. When openOnly is
// set resolved entries are skipped.
func (s *Store) ListInconsistencies(ctx context.Context, openOnly bool) ([]*Inconsistency, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + inconsistencyColumns + " FROM inconsistencies"
	if openOnly {
		query += " WHERE resolved_at IS NULL"
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("list_inconsistencies", "query ledger", err)
	}
	defer rows.Close()

	entries := make([]*Inconsistency, 0)
	for rows.Next() {
		entry, err := scanInconsistency(rows)
		if err != nil {
			return nil, classify("list_inconsistencies", "scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list_inconsistencies", "iterate ledger", err)
	}
	return entries, nil
}

// ResolveInconsistencies closes every open entry for clipUUID and kind and
// returns how many were closed.
func (s *Store) ResolveInconsistencies(ctx context.Context, clipUUID string, kind InconsistencyKind) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE inconsistencies SET resolved_at = ? WHERE clip_uuid = ? AND kind = ? AND resolved_at IS NULL",
		formatTime(time.Now()), clipUUID, string(kind))
	if err != nil {
		return 0, classify("resolve_inconsistency", "close entries", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classify("resolve_inconsistency", "rows affected", err)
	}
	return affected, nil
}
