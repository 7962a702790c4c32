package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

const (
	putRetryInitialBackoff = 100 * time.Millisecond
	putRetryMaxBackoff     = 2 * time.Second
)

// PutWithRetry writes body under key, retrying storage failures up to
// attempts times. A retry requires rewinding the payload, so bodies that are
// not io.Seeker get exactly one attempt. Validation failures and context
// cancellation are never retried.
func PutWithRetry(ctx context.Context, store Store, key string, body io.Reader, attempts int, logger *slog.Logger) (int64, error) {
	if attempts < 1 {
		attempts = 1
	}
	seeker, rewindable := body.(io.Seeker)
	if !rewindable {
		attempts = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	delay := putRetryInitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return 0, storageError("put", key, err)
			}
		}
		written, err := store.Put(ctx, key, body)
		if err == nil {
			if attempt > 1 {
				logger.Info("object put succeeded after retry",
					logging.String(logging.FieldClipUUID, key),
					logging.Int("attempt", attempt),
				)
			}
			return written, nil
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == attempts {
			break
		}
		logging.WarnWithContext(logger, "object put failed; retrying", "object_put_retry",
			logging.String(logging.FieldClipUUID, key),
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check object storage availability"),
			logging.String(logging.FieldImpact, "upload delayed"),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, storageError("put", key, ctx.Err())
		}
		if next := delay * 2; next <= putRetryMaxBackoff {
			delay = next
		}
	}
	return 0, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, services.ErrValidation) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, services.ErrStorageUnavailable)
}
