package logging

import (
	"context"
	"log/slog"

	"clipshelf/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldClipID is the standardized structured logging key for clip row identifiers.
	FieldClipID = "clip_id"
	// FieldClipUUID is the standardized structured logging key for clip storage keys.
	FieldClipUUID = "clip_uuid"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "request_id"
	// FieldEventType classifies a log line for filtering (e.g. inconsistency, clip_ingested).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields returns the clip and request identifiers carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if id, ok := services.ClipIDFromContext(ctx); ok {
		fields = append(fields, Int64(FieldClipID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext tags logger with ContextFields(ctx). A nil logger yields a
// discarding one.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
