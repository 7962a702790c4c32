package server

import (
	"net/http"
	"strings"
	"time"

	"clipshelf/internal/auth"
)

// SessionCookie names the cookie carrying the session token for browsers.
const SessionCookie = "clipshelf_session"

// sessionToken extracts the caller's token. A bearer header wins over the
// cookie.
func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// decision validates the caller's token, extending it when live.
func (s *Server) decision(r *http.Request) (auth.Decision, string) {
	token := sessionToken(r)
	if token == "" {
		return auth.Anonymous, ""
	}
	return s.guard.Validate(token), token
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Admin.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Admin.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
