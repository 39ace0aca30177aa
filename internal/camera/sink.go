package camera

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/facerec"
)

// DiscardSink drops every frame.
type DiscardSink struct{}

func (DiscardSink) Show(image.Image) error { return nil }
func (DiscardSink) Close() error           { return nil }

// FileSink writes every shown frame as a numbered JPEG into a directory.
type FileSink struct {
	dir string
	mu  sync.Mutex
	n   int
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w: %w", domain.ErrIOFailure, err)
	}
	return &FileSink{dir: dir}, nil
}

// Show implements Sink.
func (s *FileSink) Show(frame image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := facerec.EncodeJPEG(frame)
	if err != nil {
		return err
	}

	s.n++
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%06d.jpg", s.n))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	return nil
}

// Written returns how many frames were written.
func (s *FileSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Close implements Sink.
func (s *FileSink) Close() error {
	return nil
}
