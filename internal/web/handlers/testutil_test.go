package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/facerec/mock"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

const tile = 32

var (
	aliceColor    = color.RGBA{255, 0, 0, 255}
	bobColor      = color.RGBA{0, 0, 255, 255}
	strangerColor = color.RGBA{255, 255, 0, 255}
)

// testConfig creates a minimal config rooted in a temp directory
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Roster.Path = filepath.Join(dir, "student_data.json")
	cfg.Roster.PhotosDir = filepath.Join(dir, "photos")
	cfg.Export.Path = filepath.Join(dir, "attendance.xlsx")
	return &cfg
}

// liveSource repeats one frame until the loop is cancelled
type liveSource struct {
	frame image.Image
}

func (s *liveSource) Read(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return s.frame, nil
	}
}

func (s *liveSource) Close() error { return nil }

// testEnv is the recognition pipeline wired to temp files and the mock encoder
type testEnv struct {
	cfg        *config.Config
	store      *roster.Store
	encoder    *mock.MockEncoder
	cache      *facerec.ReferenceCache
	session    *attendance.Session
	processor  *attendance.Processor
	controller *attendance.Controller
	openErr    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{cfg: testConfig(t)}

	env.store = roster.New(env.cfg.Roster.Path)
	env.encoder = mock.NewMockEncoder()
	env.encoder.AddFace(aliceColor, 0, 0)
	env.encoder.AddFace(bobColor, 1, 0)
	env.encoder.AddFace(strangerColor, 5, 5)

	env.cache = facerec.NewReferenceCache(env.encoder, 0)
	matcher := facerec.NewMatcher(env.cache, facerec.MatcherOptions{})
	env.session = attendance.NewSession(nil)
	env.processor = attendance.NewProcessor(env.encoder, matcher, env.store, env.session)

	frame := mock.Frame(tile, aliceColor, bobColor)
	env.controller = attendance.NewController(env.processor, func(ctx context.Context) (camera.Source, error) {
		if env.openErr != nil {
			return nil, env.openErr
		}
		return &liveSource{frame: frame}, nil
	}, nil)
	t.Cleanup(func() { _ = env.controller.Close() })

	return env
}

// enroll writes a reference photo and enrolls it
func (env *testEnv) enroll(t *testing.T, name string, c color.RGBA) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".png")
	if err := mock.WritePhoto(path, tile, c); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	if _, err := env.store.Enroll(name, path); err != nil {
		t.Fatalf("failed to enroll %s: %v", name, err)
	}
	return path
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// multipartRequest builds a POST with form fields and an optional "file" part
func multipartRequest(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "upload.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// pngBytes encodes an image as PNG
func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
