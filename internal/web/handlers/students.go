package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/sirupsen/logrus"
)

// StudentsHandler handles roster endpoints
type StudentsHandler struct {
	config *config.Config
	store  *roster.Store
	cache  *facerec.ReferenceCache
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(cfg *config.Config, store *roster.Store, cache *facerec.ReferenceCache) *StudentsHandler {
	return &StudentsHandler{
		config: cfg,
		store:  store,
		cache:  cache,
	}
}

// StudentResponse represents an enrolled student in API responses
type StudentResponse struct {
	Name      string `json:"name"`
	PhotoPath string `json:"photo_path"`
}

type enrollRequest struct {
	Name      string `json:"name"`
	PhotoPath string `json:"photo_path"`
}

func studentResponse(rec roster.StudentRecord) StudentResponse {
	return StudentResponse{Name: rec.Name, PhotoPath: rec.PhotoPath}
}

// List returns all enrolled students in roster order
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.store.All()
	result := make([]StudentResponse, len(all))
	for i, rec := range all {
		result[i] = studentResponse(rec)
	}
	respondJSON(w, http.StatusOK, result)
}

// Create enrolls a student. It accepts either a JSON body with a photo path
// inside the photos directory or a multipart upload with "name" and "file"
// fields.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		name, path, ok := h.saveUpload(w, r)
		if !ok {
			return
		}
		req = enrollRequest{Name: name, PhotoPath: path}
	} else {
		if !decodeJSON(w, r, &req) {
			return
		}
		path, ok := resolveWithin(h.config.Roster.PhotosDir, strings.TrimSpace(req.PhotoPath))
		if !ok {
			respondError(w, http.StatusBadRequest, "photo_path must be inside the photos directory")
			return
		}
		req.PhotoPath = path
	}

	previous, existed := h.store.Get(req.Name)
	rec, err := h.store.Enroll(req.Name, req.PhotoPath)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if existed {
		h.cache.Invalidate(previous.PhotoPath)
	}
	h.cache.Invalidate(rec.PhotoPath)

	respondJSON(w, http.StatusCreated, studentResponse(rec))
}

// saveUpload stores the uploaded photo in the photos directory and returns
// the student name and the stored path.
func (h *StudentsHandler) saveUpload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return "", "", false
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return "", "", false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return "", "", false
	}
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		respondError(w, http.StatusBadRequest, "file is not an image")
		return "", "", false
	}

	if err := os.MkdirAll(h.config.Roster.PhotosDir, 0o755); err != nil {
		respondDomainError(w, fmt.Errorf("create photos dir: %w", err))
		return "", "", false
	}

	filename := fmt.Sprintf("%s-%s.%s", roster.NormalizeName(name), uuid.NewString()[:8], kind.Extension)
	filename = strings.ReplaceAll(filename, string(filepath.Separator), "_")
	path := filepath.Join(h.config.Roster.PhotosDir, filename)

	dst, err := os.Create(path) //nolint:gosec // filename is generated
	if err != nil {
		respondDomainError(w, fmt.Errorf("store upload: %w", err))
		return "", "", false
	}
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		_ = dst.Close()
		respondDomainError(w, fmt.Errorf("store upload: %w", err))
		return "", "", false
	}
	if err := dst.Close(); err != nil {
		respondDomainError(w, fmt.Errorf("store upload: %w", err))
		return "", "", false
	}

	log.WithFields(logrus.Fields{"student": sanitizeForLog(name), "path": path}).Debug("stored uploaded photo")
	return name, path, true
}

// Delete removes a student from the roster
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "missing student name")
		return
	}

	rec, ok := h.store.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := h.store.Remove(rec.Name); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		respondDomainError(w, err)
		return
	}
	h.cache.Invalidate(rec.PhotoPath)

	w.WriteHeader(http.StatusNoContent)
}
