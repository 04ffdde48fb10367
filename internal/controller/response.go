// internal/controller/response.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteBadRequest answers 400 with a message the caller can show.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// WriteError maps err onto a status code. summary names the failed operation.
// Storage and unexpected failures never expose their internal detail.
func WriteError(w http.ResponseWriter, log *logger.Logger, summary string, err error) {
	var (
		validation *appErrors.ValidationError
		notFound   *appErrors.NotFoundError
		transition *appErrors.TransitionError
		parse      *appErrors.ParseError
	)
	body := map[string]any{"success": false, "error": summary}

	switch {
	case errors.As(err, &validation):
		body["message"] = err.Error()
		body["violations"] = validation.Violations
		WriteJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &parse):
		body["message"] = err.Error()
		WriteJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &notFound):
		body["message"] = err.Error()
		WriteJSON(w, http.StatusNotFound, body)
	case errors.As(err, &transition):
		body["message"] = err.Error()
		WriteJSON(w, http.StatusConflict, body)
	case appErrors.IsPersistence(err):
		if log != nil {
			log.Error().Err(err).Msg(summary)
		}
		body["message"] = appErrors.PublicMessage
		WriteJSON(w, http.StatusInternalServerError, body)
	default:
		if log != nil {
			log.Error().Err(err).Msg(summary)
		}
		body["message"] = "An unexpected error occurred"
		WriteJSON(w, http.StatusInternalServerError, body)
	}
}

// NotFound is the catch-all for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"error":   "Endpoint not found",
		"path":    r.URL.RequestURI(),
	})
}
