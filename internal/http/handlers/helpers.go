package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"plugmon/internal/service"
	"plugmon/internal/tuya"
)

// All responses share the {success, data|error, details?} envelope.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{
		"success": false,
		"error":   message,
	}
	if len(details) > 0 && details[0] != "" {
		body["details"] = details[0]
	}
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps the error taxonomy onto HTTP statuses. Upstream trouble is a
// bad gateway, a missing switch code is not found, anything else is internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tuya.ErrAuth),
		errors.Is(err, tuya.ErrRequest),
		errors.Is(err, service.ErrControl),
		errors.Is(err, service.ErrStatusUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrSwitchNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// requestTimezone resolves the viewer timezone from the query parameter, then
// the X-Timezone header, then the configured default.
func requestTimezone(r *http.Request, defaultZone string) (*time.Location, error) {
	name := r.URL.Query().Get("timezone")
	if name == "" {
		name = r.Header.Get("X-Timezone")
	}
	if name == "" {
		name = defaultZone
	}
	return service.ParseTimezone(name)
}
