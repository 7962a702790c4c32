package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"clipshelf/internal/services"
)

// limitedPayload counts bytes as the object store pulls them and fails the
// read once the configured ceiling is crossed. A body that breaks off before
// EOF is the uploader's fault, not the backend's, so it fails as a
// validation error too.
type limitedPayload struct {
	r           io.Reader
	limit       int64
	n           int64
	exceeded    atomic.Bool
	interrupted atomic.Bool
}

func (l *limitedPayload) Read(p []byte) (int, error) {
	if l.n > l.limit {
		return 0, l.tooLarge()
	}
	if room := l.limit - l.n + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, l.tooLarge()
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, l.broken(err)
	}
	return n, err
}

func (l *limitedPayload) broken(err error) error {
	l.interrupted.Store(true)
	return services.Wrap(services.ErrValidation, "lifecycle", "ingest",
		fmt.Sprintf("upload interrupted after %d bytes", l.n), err)
}

// Interrupted reports whether reading the body failed before EOF.
func (l *limitedPayload) Interrupted() bool {
	return l.interrupted.Load()
}

func (l *limitedPayload) tooLarge() error {
	l.exceeded.Store(true)
	return services.Wrap(services.ErrValidation, "lifecycle", "ingest",
		fmt.Sprintf("payload exceeds %d bytes", l.limit), nil)
}

func (l *limitedPayload) Exceeded() bool {
	return l.exceeded.Load()
}

// seekablePayload lets objectstore.PutWithRetry rewind the body between
// attempts; the byte count restarts with it.
type seekablePayload struct {
	*limitedPayload
	seeker io.Seeker
}

func (s *seekablePayload) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, errors.New("payload only supports rewinding to the start")
	}
	pos, err := s.seeker.Seek(0, io.SeekStart)
	if err != nil {
		return pos, err
	}
	s.n = 0
	s.exceeded.Store(false)
	s.interrupted.Store(false)
	return pos, nil
}

type payloadGuard interface {
	io.Reader
	Exceeded() bool
	Interrupted() bool
}

func guardPayload(body io.Reader, limit int64) payloadGuard {
	limited := &limitedPayload{r: body, limit: limit}
	if seeker, ok := body.(io.Seeker); ok {
		return &seekablePayload{limitedPayload: limited, seeker: seeker}
	}
	return limited
}
