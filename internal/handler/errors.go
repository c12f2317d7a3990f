package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// retryAfterSeconds is advertised on 503 responses caused by store timeouts.
const retryAfterSeconds = "1"

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before a response was ready.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeError maps a service or request error onto a status code and an
// ErrorResponse body. Unrecognised errors are logged and reported as 500
// without leaking their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status == statusClientClosedRequest {
		slog.DebugContext(r.Context(), "client closed request",
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, errorResponse{Error: detail})
}

func classify(err error) (int, errorDetail) {
	var fe *domain.FieldError
	hasField := errors.As(err, &fe)
	detail := func(code string) errorDetail {
		if hasField {
			return errorDetail{Code: code, Message: fe.Field + " " + fe.Reason, Field: fe.Field}
		}
		return errorDetail{Code: code, Message: code}
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, errorDetail{Code: "body_too_large", Message: "request body too large"}
	case errors.Is(err, domain.ErrInput):
		return http.StatusBadRequest, detail("invalid_input")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorDetail{Code: "not_found", Message: "ride not found"}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, detail("validation_error")
	case errors.Is(err, domain.ErrReference):
		return http.StatusUnprocessableEntity, detail("unresolved_reference")
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorDetail{Code: "upstream_timeout", Message: "data store did not respond in time, retry later"}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errorDetail{Code: "client_closed_request", Message: "client closed request"}
	default:
		return http.StatusInternalServerError, errorDetail{Code: "internal_error", Message: "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
