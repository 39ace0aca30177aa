package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/domain"
)

// SessionHandler starts and stops the camera-backed attendance session
type SessionHandler struct {
	controller *attendance.Controller
	session    *attendance.Session
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(controller *attendance.Controller, session *attendance.Session) *SessionHandler {
	return &SessionHandler{
		controller: controller,
		session:    session,
	}
}

// SessionStatusResponse is the session status plus the camera loop state
type SessionStatusResponse struct {
	attendance.Status
	CameraRunning bool   `json:"camera_running"`
	LastError     string `json:"last_error,omitempty"`
}

func (h *SessionHandler) status() SessionStatusResponse {
	resp := SessionStatusResponse{
		Status:        h.session.Status(),
		CameraRunning: h.controller.Running(),
	}
	if err := h.controller.Err(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

// Status returns the current session state
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status())
}

// Start opens the camera and starts a new session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if _, err := h.controller.Start(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.status())
}

// Stop stops the camera loop and the session. The attendance log is kept.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(); err != nil {
		if errors.Is(err, domain.ErrSessionIdle) {
			respondDomainError(w, err)
			return
		}
		// The loop is stopped either way; its error is reported in the status.
		log.WithError(err).Warn("camera loop ended with error")
	}
	respondJSON(w, http.StatusOK, h.status())
}
