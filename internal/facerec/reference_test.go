package facerec_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/facerec/mock"
)

var (
	red    = color.RGBA{255, 0, 0, 255}
	green  = color.RGBA{0, 255, 0, 255}
	blue   = color.RGBA{0, 0, 255, 255}
	yellow = color.RGBA{255, 255, 0, 255}
	grey   = color.RGBA{128, 128, 128, 255} // never registered: a photo without a face
)

func writePhoto(t *testing.T, dir, name string, c color.RGBA) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := mock.WritePhoto(path, 16, c); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	return path
}

func TestReferenceCache_EncodesOnce(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.AddFace(red, 1, 2)
	path := writePhoto(t, dir, "alice.png", red)

	cache := facerec.NewReferenceCache(enc, 0)
	for range 3 {
		emb, err := cache.Reference(context.Background(), path)
		if err != nil {
			t.Fatalf("Reference failed: %v", err)
		}
		if len(emb) != 2 || emb[0] != 1 || emb[1] != 2 {
			t.Errorf("expected embedding [1 2], got %v", emb)
		}
	}

	if enc.Calls() != 1 {
		t.Errorf("expected 1 encoder call, got %d", enc.Calls())
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", cache.Len())
	}
}

func TestReferenceCache_NoFace(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	path := writePhoto(t, dir, "empty.png", grey)

	cache := facerec.NewReferenceCache(enc, 0)
	for range 2 {
		_, err := cache.Reference(context.Background(), path)
		if !errors.Is(err, domain.ErrEncodingFailure) {
			t.Fatalf("expected ErrEncodingFailure, got %v", err)
		}
	}

	if enc.Calls() != 1 {
		t.Errorf("expected failure to be memoised after 1 call, got %d calls", enc.Calls())
	}
}

func TestReferenceCache_Unreadable(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(textPath, []byte("no pixels here"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.png")},
		{"not an image", textPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := facerec.NewReferenceCache(mock.NewMockEncoder(), 0)
			_, err := cache.Reference(context.Background(), tt.path)
			if !errors.Is(err, domain.ErrEncodingFailure) {
				t.Errorf("expected ErrEncodingFailure, got %v", err)
			}
		})
	}
}

func TestReferenceCache_EncoderError(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.DetectError = errors.New("backend down")
	path := writePhoto(t, dir, "alice.png", red)

	enc.AddFace(red, 1)
	cache := facerec.NewReferenceCache(enc, 0)

	_, err := cache.Reference(context.Background(), path)
	if !errors.Is(err, domain.ErrEncodingFailure) {
		t.Errorf("expected ErrEncodingFailure, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected encoder failure not to be cached, got %d entries", cache.Len())
	}

	enc.DetectError = nil
	emb, err := cache.Reference(context.Background(), path)
	if err != nil {
		t.Fatalf("expected success once the encoder recovers, got %v", err)
	}
	if len(emb) != 1 || emb[0] != 1 {
		t.Errorf("expected embedding [1], got %v", emb)
	}
	if enc.Calls() != 2 {
		t.Errorf("expected the encoder to be called again, got %d calls", enc.Calls())
	}
}

func TestReferenceCache_ReplacedPhoto(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.AddFace(red, 1, 0)
	enc.AddFace(green, 0, 1)
	path := writePhoto(t, dir, "alice.png", red)

	cache := facerec.NewReferenceCache(enc, 0)
	if _, err := cache.Reference(context.Background(), path); err != nil {
		t.Fatalf("Reference failed: %v", err)
	}
	gen := cache.Generation()

	writePhoto(t, dir, "alice.png", green)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("failed to touch photo: %v", err)
	}

	emb, err := cache.Reference(context.Background(), path)
	if err != nil {
		t.Fatalf("Reference failed: %v", err)
	}
	if emb[0] != 0 || emb[1] != 1 {
		t.Errorf("expected re-encoded embedding [0 1], got %v", emb)
	}
	if enc.Calls() != 2 {
		t.Errorf("expected 2 encoder calls, got %d", enc.Calls())
	}
	if cache.Generation() == gen {
		t.Error("expected generation to change after re-encoding")
	}
}

func TestReferenceCache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.AddFace(red, 1)
	path := writePhoto(t, dir, "alice.png", red)

	cache := facerec.NewReferenceCache(enc, 0)
	if _, err := cache.Reference(context.Background(), path); err != nil {
		t.Fatalf("Reference failed: %v", err)
	}
	cache.Invalidate(path)
	if _, err := cache.Reference(context.Background(), path); err != nil {
		t.Fatalf("Reference failed: %v", err)
	}

	if enc.Calls() != 2 {
		t.Errorf("expected re-encode after invalidate, got %d calls", enc.Calls())
	}
}

func TestReferenceCache_CancelledNotMemoised(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.AddFace(red, 1)
	path := writePhoto(t, dir, "alice.png", red)
	cache := facerec.NewReferenceCache(enc, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Reference(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, err := cache.Reference(context.Background(), path); err != nil {
		t.Errorf("expected success after cancellation, got %v", err)
	}
}
