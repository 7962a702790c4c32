package api

import (
	"time"

	"clipshelf/internal/auth"
	"clipshelf/internal/metadata"
	"clipshelf/internal/reconcile"
)

// FromClip converts a metadata record to its API representation.
func FromClip(clip *metadata.Clip) Clip {
	if clip == nil {
		return Clip{}
	}
	return Clip{
		ID:          clip.ID,
		UUID:        clip.UUID,
		Name:        clip.Name,
		Description: clip.Description,
		CreatedAt:   formatTime(clip.CreatedAt),
		UpdatedAt:   formatTime(clip.UpdatedAt),
	}
}

// FromClips converts a slice, preserving order. The result is never nil.
func FromClips(clips []*metadata.Clip) []Clip {
	out := make([]Clip, 0, len(clips))
	for _, clip := range clips {
		out = append(out, FromClip(clip))
	}
	return out
}

// FromInconsistencies converts ledger entries.
func FromInconsistencies(entries []*metadata.Inconsistency) []Inconsistency {
	out := make([]Inconsistency, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		dto := Inconsistency{
			ID:         entry.ID,
			ClipUUID:   entry.ClipUUID,
			Kind:       string(entry.Kind),
			Detail:     entry.Detail,
			DetectedAt: formatTime(entry.DetectedAt),
		}
		if entry.ResolvedAt != nil {
			dto.ResolvedAt = formatTime(*entry.ResolvedAt)
		}
		out = append(out, dto)
	}
	return out
}

// FromReconcileReport converts a sweep report.
func FromReconcileReport(report reconcile.Report, completed time.Time) ReconcileReport {
	return ReconcileReport{
		Objects:         report.Objects,
		Clips:           report.Clips,
		OrphansRemoved:  nonNil(report.OrphansRemoved),
		OrphansYoung:    report.OrphansYoung,
		OrphansFailed:   nonNil(report.OrphansFailed),
		MissingObjects:  nonNil(report.MissingObjects),
		ResolvedEntries: report.ResolvedEntries,
		DryRun:          report.DryRun,
		DurationMillis:  report.Duration.Milliseconds(),
		CompletedAt:     formatTime(completed),
	}
}

// FromSession converts an issued session into the login payload.
func FromSession(session auth.Session) LoginResponse {
	return LoginResponse{Token: session.Token, ExpiresAt: formatTime(session.ExpiresAt)}
}

// ParseTime reads a timestamp produced by this package.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(dateTimeFormat, value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
