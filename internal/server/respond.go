package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"clipshelf/internal/api"
	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError classifies err and writes the matching error payload. Server
// side failures are logged with the request id; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body, status := api.NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logger := logging.WithContext(r.Context(), s.logger)
		logging.ErrorWithContext(logger, "request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("code", body.Error.Code),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, body)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, s.cfg.API.MaxMetadataBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "api", "decode", "request body is empty", nil)
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "malformed JSON body", err)
	}
	return nil
}

func clipIDParam(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "route", fmt.Sprintf("invalid clip id %q", raw), nil)
	}
	return id, nil
}
