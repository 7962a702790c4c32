package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"clipshelf/internal/auth"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/services"
)

// IngestRequest carries a new clip. Size is the declared payload length, or
// -1 when unknown; the limit is enforced on the streamed bytes regardless.
type IngestRequest struct {
	Name        string
	Description string
	Filename    string
	Body        io.Reader
	Size        int64
}

// Ingest stores the payload under a fresh uuid and then catalogues it.
//
// The metadata insert only runs after the object write is confirmed, and it
// runs detached from ctx so a client that disconnects after the upload
// completes still gets a committed clip rather than an orphan.
func (s *Service) Ingest(ctx context.Context, decision auth.Decision, req IngestRequest) (*metadata.Clip, error) {
	if err := decision.Require("ingest"); err != nil {
		return nil, err
	}
	fields, err := s.validateFields("ingest", req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.validateFilename(req.Filename); err != nil {
		return nil, err
	}
	if req.Body == nil || req.Size == 0 {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "ingest", "payload is empty", nil)
	}
	if req.Size > s.limits.MaxBytes {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "ingest",
			fmt.Sprintf("payload exceeds %d bytes", s.limits.MaxBytes), nil)
	}

	key, err := s.allocateUUID(ctx)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldClipUUID, key))

	payload := guardPayload(req.Body, s.limits.MaxBytes)
	written, err := objectstore.PutWithRetry(ctx, s.objects, key, payload, s.putTry, logger)
	if err != nil {
		if payload.Exceeded() {
			s.discardObject(ctx, key)
			return nil, services.Wrap(services.ErrValidation, "lifecycle", "ingest",
				fmt.Sprintf("payload exceeds %d bytes", s.limits.MaxBytes), nil)
		}
		// a client that hangs up mid-upload cancels ctx before the body errors
		if payload.Interrupted() || ctx.Err() != nil {
			s.discardObject(ctx, key)
			logger.Info("upload interrupted; nothing catalogued",
				logging.String(logging.FieldEventType, "clip_upload_interrupted"),
				logging.Error(err),
			)
			return nil, services.Wrap(services.ErrValidation, "lifecycle", "ingest", "upload interrupted before the payload was complete", err)
		}
		logger.Warn("object write failed; nothing catalogued",
			logging.String(logging.FieldEventType, "clip_ingest_failed"),
			logging.Error(err),
		)
		return nil, err
	}
	if written == 0 {
		s.discardObject(ctx, key)
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "ingest", "payload is empty", nil)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	clip, err := s.insertWithRetry(commitCtx, metadata.NewClip{
		UUID:        key,
		Name:        fields.Name,
		Description: fields.Description,
	})
	if err != nil {
		s.recordInconsistency(ctx, key, metadata.KindOrphanObject,
			"object stored but metadata insert failed", err)
		return nil, err
	}

	logger.Info("clip ingested",
		logging.String(logging.FieldEventType, "clip_ingested"),
		logging.Int64(logging.FieldClipID, clip.ID),
		logging.Int64("bytes", written),
	)
	return clip, nil
}

// allocateUUID draws a key that neither store knows about yet.
func (s *Service) allocateUUID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < uuidAttempts; attempt++ {
		candidate := s.newUUID()
		taken, err := s.meta.UUIDExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		_, err = s.objects.Stat(ctx, candidate)
		switch {
		case errors.Is(err, services.ErrNotFound):
			return candidate, nil
		case err != nil:
			return "", err
		}
	}
	return "", services.Wrap(services.ErrStorageUnavailable, "lifecycle", "ingest",
		fmt.Sprintf("could not allocate an unused uuid after %d attempts", uuidAttempts), nil)
}

// insertWithRetry reuses key on every attempt; the object is already stored
// and must not be uploaded again.
func (s *Service) insertWithRetry(ctx context.Context, input metadata.NewClip) (*metadata.Clip, error) {
	delay := insertInitialBackoff
	var lastErr error
	for attempt := 1; attempt <= s.insertTry; attempt++ {
		clip, err := s.meta.Insert(ctx, input)
		if err == nil {
			return clip, nil
		}
		lastErr = err
		if !errors.Is(err, services.ErrStoreUnavailable) || attempt == s.insertTry {
			break
		}
		s.logger.Warn("metadata insert failed; retrying",
			logging.String(logging.FieldClipUUID, input.UUID),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrStoreUnavailable, "lifecycle", "ingest", "metadata insert timed out", ctx.Err())
		}
		if next := delay * 2; next <= insertMaxBackoff {
			delay = next
		}
	}
	return nil, lastErr
}

// discardObject removes an object written for a rejected upload.
func (s *Service) discardObject(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	err := s.objects.Delete(cleanupCtx, key)
	if err == nil || errors.Is(err, services.ErrNotFound) {
		return
	}
	s.recordInconsistency(ctx, key, metadata.KindOrphanObject, "rejected upload could not be removed", err)
}
