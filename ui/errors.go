// Package ui is the HTTP command surface of the storefront. Each route maps
// one-to-one onto a storefront.Controller operation.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openmarket/marketplace/core"
)

// ErrorKind categorizes errors returned to clients
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "VALIDATION_ERROR"
	ErrorKindNotFound     ErrorKind = "NOT_FOUND"
	ErrorKindUnauthorized ErrorKind = "UNAUTHORIZED"
	ErrorKindConflict     ErrorKind = "CONFLICT"
	ErrorKindBadRequest   ErrorKind = "BAD_REQUEST"
	ErrorKindTooLarge     ErrorKind = "PAYLOAD_TOO_LARGE"
	ErrorKindUnavailable  ErrorKind = "STORAGE_UNAVAILABLE"
	ErrorKindTimeout      ErrorKind = "TIMEOUT"
	ErrorKindInternal     ErrorKind = "INTERNAL_ERROR"
)

var (
	// ErrInvalidBody is returned for request bodies that are not valid JSON.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrBodyTooLarge is returned when a request body exceeds the size limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  ErrorKind `json:"code"`
	Field string    `json:"field,omitempty"`
}

// ToErrorResponse maps err to a status code and response body.
func ToErrorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: core.UserMessage(err)}

	var me *core.MarketError
	if errors.As(err, &me) {
		resp.Field = me.Field
	}

	switch {
	case errors.Is(err, ErrInvalidBody):
		resp.Code = ErrorKindBadRequest
		return http.StatusBadRequest, resp
	case errors.Is(err, ErrBodyTooLarge):
		resp.Code = ErrorKindTooLarge
		return http.StatusRequestEntityTooLarge, resp
	case core.IsValidation(err):
		resp.Code = ErrorKindValidation
		return http.StatusBadRequest, resp
	case core.IsNotFound(err):
		resp.Code = ErrorKindNotFound
		return http.StatusNotFound, resp
	case errors.Is(err, core.ErrNotLoggedIn):
		resp.Code = ErrorKindUnauthorized
		return http.StatusUnauthorized, resp
	case errors.Is(err, core.ErrAlreadyLoggedIn):
		resp.Code = ErrorKindConflict
		return http.StatusConflict, resp
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		resp.Code = ErrorKindTimeout
		return http.StatusServiceUnavailable, resp
	case core.IsUnavailable(err):
		resp.Code = ErrorKindUnavailable
		return http.StatusServiceUnavailable, resp
	default:
		resp.Code = ErrorKindInternal
		resp.Error = "internal error"
		return http.StatusInternalServerError, resp
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToErrorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorWithContext(r.Context(), "Request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	writeJSON(w, status, resp)
}
