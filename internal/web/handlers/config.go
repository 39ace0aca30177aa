package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the non-secret part of the running configuration
type ConfigResponse struct {
	RosterPath   string  `json:"roster_path"`
	ExportPath   string  `json:"export_path"`
	Backend      string  `json:"backend"`
	Metric       string  `json:"metric"`
	Threshold    float64 `json:"threshold"`
	Strategy     string  `json:"strategy"`
	CameraSource string  `json:"camera_source"`
	ResetOnStart bool    `json:"reset_on_start"`
}

// Get returns the recognition and session configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	source := "device"
	if h.config.Camera.FramesDir != "" {
		source = "directory"
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		RosterPath:   h.config.Roster.Path,
		ExportPath:   h.config.Export.Path,
		Backend:      h.config.Recognition.Backend,
		Metric:       h.config.Recognition.Metric,
		Threshold:    h.config.Recognition.Threshold,
		Strategy:     h.config.Recognition.Strategy,
		CameraSource: source,
		ResetOnStart: h.config.Session.ResetOnStart,
	})
}
