// Package mock provides a deterministic facerec.Encoder for testing.
//
// Faces are solid squares. A frame of height H is read as H×H tiles from left
// to right; a tile whose centre pixel has a registered colour is one face with
// that colour's embedding. Unregistered colours are background.
package mock

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facerec"
)

// MockEncoder is a mock implementation of facerec.Encoder
type MockEncoder struct {
	mu    sync.RWMutex
	faces map[color.RGBA][]float32
	calls int

	// Error injection
	DetectError error
}

// NewMockEncoder creates a new mock encoder without registered faces
func NewMockEncoder() *MockEncoder {
	return &MockEncoder{faces: make(map[color.RGBA][]float32)}
}

// AddFace registers a colour as a face with the given embedding
func (m *MockEncoder) AddFace(c color.RGBA, embedding ...float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces[c] = embedding
}

// Calls returns how many times Detect was called
func (m *MockEncoder) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Detect implements facerec.Encoder
func (m *MockEncoder) Detect(ctx context.Context, img image.Image) ([]facerec.Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.DetectError != nil {
		return nil, m.DetectError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b := img.Bounds()
	size := b.Dy()
	if size == 0 {
		return nil, nil
	}

	var dets []facerec.Detection
	for x := b.Min.X; x+size <= b.Max.X; x += size {
		tile := image.Rect(x, b.Min.Y, x+size, b.Max.Y)
		centre := color.RGBAModel.Convert(img.At(x+size/2, b.Min.Y+size/2)).(color.RGBA)
		emb, ok := m.faces[centre]
		if !ok {
			continue
		}
		dets = append(dets, facerec.Detection{
			BBox:      tile,
			Embedding: append([]float32(nil), emb...),
			Score:     1,
		})
	}
	return dets, nil
}

// Frame builds a frame with one size×size tile per colour.
func Frame(size int, colors ...color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size*max(1, len(colors)), size))
	for i, c := range colors {
		for y := range size {
			for x := range size {
				img.SetRGBA(i*size+x, y, c)
			}
		}
	}
	return img
}

// WritePhoto writes a single-tile PNG of the colour to path.
func WritePhoto(path string, size int, c color.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, Frame(size, c)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
