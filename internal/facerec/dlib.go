//go:build dlib

package facerec

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/kozaktomas/face-attendance/internal/domain"
)

// DlibEncoder runs dlib's ResNet face recognition model in-process and
// produces 128-dimensional descriptors.
type DlibEncoder struct {
	mu         sync.Mutex // the recognizer is not safe for concurrent use
	recognizer *face.Recognizer
	maxSize    int
}

// NewDlibEncoder loads the dlib models from modelsDir
// (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat).
func NewDlibEncoder(modelsDir string, maxSize int) (*DlibEncoder, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	log.WithField("models_dir", modelsDir).Info("dlib recognizer loaded")
	return &DlibEncoder{recognizer: rec, maxSize: maxSize}, nil
}

// Detect implements Encoder.
func (e *DlibEncoder) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled, factor := Downscale(img, e.maxSize)
	data, err := EncodeJPEG(scaled)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
	}

	e.mu.Lock()
	faces, err := e.recognizer.Recognize(data)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w: %w", domain.ErrEncodingFailure, err)
	}

	origin := img.Bounds().Min
	dets := make([]Detection, 0, len(faces))
	for _, f := range faces {
		embedding := make([]float32, len(f.Descriptor))
		copy(embedding, f.Descriptor[:])
		dets = append(dets, Detection{
			BBox:      scaleRect(f.Rectangle, factor, origin),
			Embedding: embedding,
		})
	}

	return DedupeDetections(dets), nil
}

// Close frees the native recognizer.
func (e *DlibEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recognizer.Close()
	return nil
}
