package lifecycle

import (
	"context"
	"errors"

	"clipshelf/internal/auth"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/services"
)

// Edit replaces the name and description of clip id. The stored object is
// not touched.
func (s *Service) Edit(ctx context.Context, decision auth.Decision, id int64, name, description string) (*metadata.Clip, error) {
	if err := decision.Require("edit"); err != nil {
		return nil, err
	}
	fields, err := s.validateFields("edit", name, description)
	if err != nil {
		return nil, err
	}
	ctx = services.WithClipID(ctx, id)
	clip, err := s.meta.Update(ctx, id, fields.Name, fields.Description)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("clip edited",
		logging.String(logging.FieldEventType, "clip_edited"),
		logging.String(logging.FieldClipUUID, clip.UUID),
	)
	return clip, nil
}

// Delete removes the metadata row and then the object. Once the row is gone
// the delete has succeeded from the caller's point of view; an object that
// cannot be removed is recorded as an orphan for the sweep.
func (s *Service) Delete(ctx context.Context, decision auth.Decision, id int64) (*metadata.Clip, error) {
	if err := decision.Require("delete"); err != nil {
		return nil, err
	}
	ctx = services.WithClipID(ctx, id)
	removed, err := s.meta.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldClipUUID, removed.UUID))

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	switch err := s.objects.Delete(cleanupCtx, removed.UUID); {
	case err == nil:
		logger.Info("clip deleted", logging.String(logging.FieldEventType, "clip_deleted"))
	case errors.Is(err, services.ErrNotFound):
		logging.WarnWithContext(logger, "clip deleted; object was already absent", "clip_deleted",
			logging.String(logging.FieldErrorHint, "object storage lost the payload before delete"),
			logging.String(logging.FieldImpact, "none; the catalog entry is gone"),
		)
	default:
		s.recordInconsistency(ctx, removed.UUID, metadata.KindOrphanObject,
			"metadata deleted but object removal failed", err)
	}
	return removed, nil
}
