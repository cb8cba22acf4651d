package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"minivault/internal/llm"
	"minivault/pkg/types"
)

// HTTPError allows errors to provide an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// malformedRequestError reports a missing or invalid prompt. It is surfaced
// before any generation starts.
type malformedRequestError struct{ msg string }

func (e malformedRequestError) Error() string   { return e.msg }
func (e malformedRequestError) StatusCode() int { return http.StatusBadRequest }

// IsMalformedRequest reports whether err was caused by a bad request payload.
func IsMalformedRequest(err error) bool {
	var me malformedRequestError
	return errors.As(err, &me)
}

// statusFor maps a generation error to the response status.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case llm.IsGenerationFailed(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
