package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipshelf/internal/config"
	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

const tokenBytes = 32

// Decision is the outcome of validating a session token.
type Decision int

const (
	// Anonymous means no valid session accompanied the request.
	Anonymous Decision = iota
	// Authenticated means the request carries a live administrator session.
	Authenticated
)

func (d Decision) String() string {
	if d == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Require returns services.ErrUnauthorized unless d is Authenticated.
func (d Decision) Require(operation string) error {
	if d == Authenticated {
		return nil
	}
	return services.Wrap(services.ErrUnauthorized, "auth", operation, "administrator session required", nil)
}

// Session is an issued administrator session.
type Session struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Options configures a Guard.
type Options struct {
	Username string
	Password string
	TTL      time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Guard verifies credentials and tracks live sessions. Safe for concurrent use.
type Guard struct {
	userDigest [sha256.Size]byte
	passDigest [sha256.Size]byte
	username   string
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewGuard builds a guard for the configured administrator.
func NewGuard(opts Options) (*Guard, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("auth: administrator username and password are required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("auth: session ttl must be positive, got %s", opts.TTL)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Guard{
		userDigest: sha256.Sum256([]byte(opts.Username)),
		passDigest: sha256.Sum256([]byte(opts.Password)),
		username:   opts.Username,
		ttl:        opts.TTL,
		now:        clock,
		logger:     logging.NewComponentLogger(opts.Logger, "auth"),
		sessions:   make(map[string]*Session),
	}, nil
}

// NewFromConfig builds a guard from the [admin] config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Guard, error) {
	if cfg == nil {
		return nil, errors.New("auth: config is nil")
	}
	return NewGuard(Options{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
		TTL:      cfg.SessionTTL(),
		Logger:   logger,
	})
}

// TTL returns the session lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Authenticate checks the credential and issues a session. Both fields are
// compared as fixed-size digests so timing does not reveal which field was
// wrong or how long the expected values are.
func (g *Guard) Authenticate(ctx context.Context, username, password string) (Session, error) {
	userDigest := sha256.Sum256([]byte(username))
	passDigest := sha256.Sum256([]byte(password))
	userOK := subtle.ConstantTimeCompare(userDigest[:], g.userDigest[:])
	passOK := subtle.ConstantTimeCompare(passDigest[:], g.passDigest[:])
	if userOK&passOK != 1 {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "administrator login rejected", "auth_login_failed",
			logging.String(logging.FieldErrorHint, "verify admin.username and admin.password"),
			logging.String(logging.FieldImpact, "no session issued"),
		)
		return Session{}, services.Wrap(services.ErrInvalidCredentials, "auth", "login", "invalid username or password", nil)
	}

	token, err := newToken()
	if err != nil {
		return Session{}, services.Wrap(services.ErrStoreUnavailable, "auth", "login", "generate session token", err)
	}
	now := g.now()
	session := &Session{
		Token:     token,
		Username:  g.username,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.mu.Lock()
	g.sessions[token] = session
	g.mu.Unlock()

	logging.WithContext(ctx, g.logger).Info("administrator session issued",
		logging.String(logging.FieldEventType, "auth_login"),
		logging.String("expires_at", session.ExpiresAt.UTC().Format(time.RFC3339)),
	)
	return *session, nil
}

// Validate reports whether token names a live session and extends it.
func (g *Guard) Validate(token string) Decision {
	if token == "" {
		return Anonymous
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	session, ok := g.sessions[token]
	if !ok {
		return Anonymous
	}
	if !now.Before(session.ExpiresAt) {
		delete(g.sessions, token)
		return Anonymous
	}
	session.ExpiresAt = now.Add(g.ttl)
	return Authenticated
}

// Invalidate ends the session for token. Unknown tokens are ignored.
func (g *Guard) Invalidate(token string) bool {
	if token == "" {
		return false
	}
	g.mu.Lock()
	_, ok := g.sessions[token]
	delete(g.sessions, token)
	g.mu.Unlock()
	if ok {
		g.logger.Info("administrator session ended", logging.String(logging.FieldEventType, "auth_logout"))
	}
	return ok
}

// Sweep drops expired sessions and returns how many were removed.
func (g *Guard) Sweep() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for token, session := range g.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(g.sessions, token)
			removed++
		}
	}
	return removed
}

// Active returns the number of sessions currently held.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
