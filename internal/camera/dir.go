package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/sirupsen/logrus"
)

// DirSource replays the image files of a directory in lexical order.
type DirSource struct {
	mu       sync.Mutex
	files    []string
	next     int
	interval time.Duration
	last     time.Time
}

// NewDirSource lists the images in dir. Files that are not images are skipped.
// interval > 0 paces the replay to at most one frame per interval.
func NewDirSource(dir string, interval time.Duration) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("frames dir %s: %w: %w", dir, domain.ErrDeviceUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !isImageFile(path) {
			log.WithField("file", e.Name()).Debug("skipping non-image file")
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)

	log.WithFields(logrus.Fields{"dir": dir, "frames": len(files)}).Info("replaying frames from directory")
	return &DirSource{files: files, interval: interval}, nil
}

func isImageFile(path string) bool {
	f, err := os.Open(path) //nolint:gosec // directory chosen by the operator
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	return filetype.IsImage(head[:n])
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Read decodes the next frame. Files that fail to decode are logged and
// skipped. It returns io.EOF after the last one.
func (s *DirSource) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.files) {
		return nil, io.EOF
	}

	if s.interval > 0 && !s.last.IsZero() {
		if wait := s.interval - time.Since(s.last); wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	s.last = time.Now()
	for s.next < len(s.files) {
		path := s.files[s.next]
		s.next++

		img, err := facerec.DecodeImageFile(path)
		if err != nil {
			log.WithFields(logrus.Fields{"file": filepath.Base(path), "error": err}).Warn("skipping unreadable frame")
			continue
		}
		return img, nil
	}
	return nil, io.EOF
}

// Close implements Source.
func (s *DirSource) Close() error {
	return nil
}
