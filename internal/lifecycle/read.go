package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/services"
)

// List returns the full catalog in insertion order.
func (s *Service) List(ctx context.Context) ([]*metadata.Clip, error) {
	return s.meta.List(ctx)
}

// Get returns clip id or services.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*metadata.Clip, error) {
	return s.meta.Get(services.WithClipID(ctx, id), id)
}

// Open returns clip id together with a stream of its payload. The caller
// closes the object body. A row whose object is gone is recorded as a
// missing_object inconsistency and reported as not found.
func (s *Service) Open(ctx context.Context, id int64) (*metadata.Clip, *objectstore.Object, error) {
	ctx = services.WithClipID(ctx, id)
	clip, err := s.meta.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.objects.Get(ctx, clip.UUID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.recordInconsistency(ctx, clip.UUID, metadata.KindMissingObject,
				"metadata row has no stored object", err)
			return nil, nil, fmt.Errorf("%w: %w: clip %d payload missing",
				services.ErrNotFound, services.ErrInconsistency, id)
		}
		return nil, nil, err
	}
	return clip, obj, nil
}
