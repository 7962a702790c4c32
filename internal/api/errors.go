package api

import (
	"errors"
	"fmt"
	"net/http"

	"clipshelf/internal/services"
)

// Stable error codes returned in ErrorBody.Code.
const (
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
	CodeValidation         = "validation"
	CodeStoreUnavailable   = "store_unavailable"
	CodeStorageUnavailable = "storage_unavailable"
	CodeInternal           = "internal"
)

// ErrorCode maps err to its wire code and HTTP status.
func ErrorCode(err error) (string, int) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		return CodeUnauthorized, http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidCredentials):
		return CodeInvalidCredentials, http.StatusUnauthorized
	case errors.Is(err, services.ErrValidation):
		return CodeValidation, http.StatusBadRequest
	case errors.Is(err, services.ErrStoreUnavailable):
		return CodeStoreUnavailable, http.StatusServiceUnavailable
	case errors.Is(err, services.ErrStorageUnavailable):
		return CodeStorageUnavailable, http.StatusServiceUnavailable
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}

// serverMessages replaces the detail of 5xx failures; the full chain is only logged.
var serverMessages = map[string]string{
	CodeStoreUnavailable:   "metadata store unavailable",
	CodeStorageUnavailable: "object storage unavailable",
	CodeInternal:           "internal error",
}

// NewErrorResponse builds the error payload for err. Server-side failures
// hide their detail from clients.
func NewErrorResponse(err error) (ErrorResponse, int) {
	code, status := ErrorCode(err)
	message, fixed := serverMessages[code]
	if !fixed && err != nil {
		message = err.Error()
	}
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message}}, status
}

var codeMarkers = map[string]error{
	CodeNotFound:           services.ErrNotFound,
	CodeUnauthorized:       services.ErrUnauthorized,
	CodeInvalidCredentials: services.ErrInvalidCredentials,
	CodeValidation:         services.ErrValidation,
	CodeStoreUnavailable:   services.ErrStoreUnavailable,
	CodeStorageUnavailable: services.ErrStorageUnavailable,
}

// ErrorFromCode rebuilds a classified error from a wire code.
func ErrorFromCode(code, message string) error {
	if marker, ok := codeMarkers[code]; ok {
		return &RemoteError{Code: code, Message: message, marker: marker}
	}
	return &RemoteError{Code: CodeInternal, Message: message}
}

// RemoteError is an error reported by the server.
type RemoteError struct {
	Code    string
	Message string
	marker  error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%s)", e.Code)
	}
	return e.Message
}

// Unwrap exposes the services marker for errors.Is.
func (e *RemoteError) Unwrap() error {
	return e.marker
}
