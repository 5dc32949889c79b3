package web

// errors.go turns failures into responses.
//
// The technical error is logged with the request ID; the client only sees
// the notification from core.Notify, as an HTML fragment for HTMX requests,
// JSON for API clients and plain text otherwise.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/logging"
)

// errorResponse is the JSON body of a failed API call.
type errorResponse struct {
	Error        string            `json:"error"`
	Notification core.Notification `json:"notification"`
}

// respondError logs err and writes its notification with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	n := core.Notify(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"code", n.Code,
		"error", err.Error(),
	}
	if statusCode >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		notificationAlert(n).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, statusCode, errorResponse{Error: n.Description, Notification: n})
	default:
		http.Error(w, core.FormatNotification(n), statusCode)
	}
}

// statusFor picks the HTTP status for an import or query failure.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrRead):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes default to it.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
