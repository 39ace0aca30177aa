package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "web")

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// resolveWithin resolves path against dir and reports whether the result
// stays inside dir. Absolute paths are accepted only when they lie in dir.
func resolveWithin(dir, path string) (string, bool) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(dir, path)
		if err != nil || !filepath.IsLocal(rel) {
			return "", false
		}
		path = rel
	}
	if !filepath.IsLocal(path) {
		return "", false
	}
	return filepath.Join(dir, path), true
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.WithError(err).Debug("writing response failed")
		}
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionActive), errors.Is(err, domain.ErrSessionIdle):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEncodingFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError sends err with the status its domain error maps to.
func respondDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	respondError(w, status, err.Error())
}

// decodeJSON decodes the request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
