package facerec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/domain"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultHTTPTimeout  = 30 * time.Second
)

// HTTPEncoder computes face embeddings using an InsightFace-compatible
// embedding server.
type HTTPEncoder struct {
	baseURL string
	maxSize int
	client  *http.Client
}

// NewHTTPEncoder creates a new encoder. Frames larger than maxSize are
// downscaled before upload; 0 disables downscaling.
func NewHTTPEncoder(baseURL string, maxSize int) *HTTPEncoder {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &HTTPEncoder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage constructs a multipart form with the JPEG data and posts it to the given endpoint.
func (e *HTTPEncoder) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// ComputeFaceEmbeddings detects faces in JPEG data and computes their embeddings.
func (e *HTTPEncoder) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := e.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Detect implements Encoder.
func (e *HTTPEncoder) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	scaled, factor := Downscale(img, e.maxSize)
	data, err := EncodeJPEG(scaled)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
	}

	resp, err := e.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embedding server: %w: %w", domain.ErrEncodingFailure, err)
	}

	origin := img.Bounds().Min
	dets := make([]Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 || len(f.BBox) != 4 {
			log.WithField("face_index", f.FaceIndex).Debug("skipping face without embedding or bbox")
			continue
		}
		box := image.Rect(int(f.BBox[0]), int(f.BBox[1]), int(f.BBox[2]), int(f.BBox[3]))
		dets = append(dets, Detection{
			BBox:      scaleRect(box, factor, origin),
			Embedding: f.Embedding,
			Score:     f.DetScore,
		})
	}

	return DedupeDetections(dets), nil
}
