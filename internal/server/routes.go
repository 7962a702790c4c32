package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"clipshelf/internal/api"
	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNoRoute)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	apiRouter.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	apiRouter.HandleFunc("/clips", s.handleListClips).Methods(http.MethodGet)
	apiRouter.HandleFunc("/clips", s.handleUpload).Methods(http.MethodPost)
	apiRouter.HandleFunc("/clips/{id:[0-9]+}", s.handleGetClip).Methods(http.MethodGet)
	apiRouter.HandleFunc("/clips/{id:[0-9]+}", s.handleEditClip).Methods(http.MethodPut)
	apiRouter.HandleFunc("/clips/{id:[0-9]+}", s.handleDeleteClip).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/clips/{id:[0-9]+}/content", s.handleClipContent).Methods(http.MethodGet, http.MethodHead)

	var handler http.Handler = r
	handler = handlers.CustomLoggingHandler(io.Discard, handler, s.logAccess)
	handler = s.withRequestID(handler)
	if origins := s.cfg.API.CORSOrigins; len(origins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", requestIDHeader}),
			handlers.ExposedHeaders([]string{requestIDHeader}),
			handlers.AllowCredentials(),
		)(handler)
	}
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s}),
		handlers.PrintRecoveryStack(false),
	)(handler)
	return handler
}

// withRequestID tags each request with a correlation id, honouring one
// supplied by the caller.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logAccess(_ io.Writer, params handlers.LogFormatterParams) {
	req := params.Request
	attrs := []logging.Attr{
		logging.String("method", req.Method),
		logging.String("path", params.URL.Path),
		logging.Int("status", params.StatusCode),
		logging.Int("bytes", params.Size),
		logging.Duration("elapsed", time.Since(params.TimeStamp)),
		logging.String("remote", req.RemoteAddr),
		logging.String(logging.FieldEventType, "http_request"),
	}
	if id, ok := services.RequestIDFromContext(req.Context()); ok {
		attrs = append(attrs, logging.String(logging.FieldCorrelationID, id))
	}
	s.logger.Debug("http request", logging.Args(attrs...)...)
}

// recoveryLogger adapts the structured logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	s *Server
}

func (l recoveryLogger) Println(values ...any) {
	logging.ErrorWithContext(l.s.logger, "handler panic recovered", "api_panic",
		logging.String("panic", fmt.Sprint(values...)),
	)
}

func (s *Server) handleNoRoute(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "route", "no route for "+r.Method+" "+r.URL.Path, nil))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: api.ErrorBody{
		Code:    api.CodeValidation,
		Message: "method " + r.Method + " not allowed on " + r.URL.Path,
	}})
}
