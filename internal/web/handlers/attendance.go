package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

// AttendanceHandler exposes the attendance log
type AttendanceHandler struct {
	config  *config.Config
	session *attendance.Session
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(cfg *config.Config, session *attendance.Session) *AttendanceHandler {
	return &AttendanceHandler{
		config:  cfg,
		session: session,
	}
}

type exportRequest struct {
	Path string `json:"path"`
}

// ExportResponse describes a written spreadsheet
type ExportResponse struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// List returns the attendance log in insertion order
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.session.Records()
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// Reset clears the attendance log
func (h *AttendanceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// Export writes the log to an xlsx file. The body is optional; without a
// path the configured export path is used. A requested path must be an
// .xlsx file inside the directory of the configured export path.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	path := h.config.Export.Path
	if name := strings.TrimSpace(req.Path); name != "" {
		resolved, ok := resolveWithin(filepath.Dir(h.config.Export.Path), name)
		if !ok || !strings.EqualFold(filepath.Ext(resolved), ".xlsx") {
			respondError(w, http.StatusBadRequest, "invalid export path")
			return
		}
		path = resolved
	}

	records := len(h.session.Records())
	if err := h.session.Export(path); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ExportResponse{Path: path, Records: records})
}

// Events streams session changes as Server-Sent Events. The first event is
// the current status.
func (h *AttendanceHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.session.AddListener()
	defer h.session.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", h.session.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event.Data)
		}
	}
}

// sendSSEEvent writes a single SSE event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
