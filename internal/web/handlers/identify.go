package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facerec"
)

// IdentifyHandler recognizes faces in an uploaded image without recording
// attendance
type IdentifyHandler struct {
	processor *attendance.Processor
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(processor *attendance.Processor) *IdentifyHandler {
	return &IdentifyHandler{
		processor: processor,
	}
}

// IdentifyResponse lists the faces found in the image
type IdentifyResponse struct {
	Faces           []attendance.Recognition `json:"faces"`
	ReferenceErrors []string                 `json:"reference_errors,omitempty"`
}

// Identify handles a multipart upload with the image in the "file" field
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	img, err := facerec.DecodeImage(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is not a decodable image")
		return
	}

	recs, refErrs, err := h.processor.Identify(r.Context(), img)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := IdentifyResponse{Faces: recs}
	if resp.Faces == nil {
		resp.Faces = []attendance.Recognition{}
	}
	for _, e := range refErrs {
		resp.ReferenceErrors = append(resp.ReferenceErrors, e.Error())
	}
	respondJSON(w, http.StatusOK, resp)
}
