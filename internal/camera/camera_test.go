package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// sliceSource yields the given frames and then io.EOF.
type sliceSource struct {
	frames []image.Image
	reads  int
	closed bool
}

func (s *sliceSource) Read(_ context.Context) (image.Image, error) {
	if s.reads >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// recordingSink remembers shown frames and can ask to stop after n frames.
type recordingSink struct {
	shown     []image.Image
	stopAfter int
}

func (s *recordingSink) Show(frame image.Image) error {
	s.shown = append(s.shown, frame)
	if s.stopAfter > 0 && len(s.shown) >= s.stopAfter {
		return ErrStop
	}
	return nil
}

func (s *recordingSink) Close() error { return nil }

func frames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 4, 4))
	}
	return out
}

func passthrough(_ context.Context, f image.Image) (image.Image, error) {
	return f, nil
}

func TestRun_UntilEOF(t *testing.T) {
	src := &sliceSource{frames: frames(3)}
	sink := &recordingSink{}

	if err := Run(context.Background(), src, sink, passthrough); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.shown) != 3 {
		t.Errorf("expected 3 frames shown, got %d", len(sink.shown))
	}
}

func TestRun_SinkStops(t *testing.T) {
	src := &sliceSource{frames: frames(10)}
	sink := &recordingSink{stopAfter: 2}

	if err := Run(context.Background(), src, sink, passthrough); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if src.reads != 2 {
		t.Errorf("expected loop to stop after 2 frames, read %d", src.reads)
	}
}

func TestRun_ContextCancelledCheckedPerFrame(t *testing.T) {
	src := &sliceSource{frames: frames(10)}
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	handled := 0
	handle := func(_ context.Context, f image.Image) (image.Image, error) {
		handled++
		if handled == 3 {
			cancel()
		}
		return f, nil
	}

	if err := Run(ctx, src, sink, handle); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// The frame in flight completes; the next iteration sees the cancellation.
	if handled != 3 || len(sink.shown) != 3 {
		t.Errorf("expected 3 frames handled and shown, got %d/%d", handled, len(sink.shown))
	}
}

func TestRun_HandleErrorShowsRawFrame(t *testing.T) {
	src := &sliceSource{frames: frames(2)}
	sink := &recordingSink{}
	handle := func(_ context.Context, f image.Image) (image.Image, error) {
		return nil, errors.New("encoder offline")
	}

	if err := Run(context.Background(), src, sink, handle); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.shown) != 2 {
		t.Errorf("expected loop to continue past errors, got %d frames shown", len(sink.shown))
	}
	if sink.shown[0] != src.frames[0] {
		t.Error("expected the raw frame to be shown when processing fails")
	}
}

type failingSource struct{}

func (failingSource) Read(context.Context) (image.Image, error) {
	return nil, errors.New("usb unplugged")
}

func (failingSource) Close() error {
	return nil
}

func TestRun_ReadError(t *testing.T) {
	err := Run(context.Background(), failingSource{}, &recordingSink{}, passthrough)
	if err == nil {
		t.Fatal("expected read error to end the loop")
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"))
	writePNG(t, filepath.Join(dir, "001.png"))
	writePNG(t, filepath.Join(dir, "010.png"))
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("frames"), 0o600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}

	src, err := NewDirSource(dir, 0)
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", src.Len())
	}

	expected := []string{"001.png", "002.png", "010.png"}
	for i, name := range expected {
		if filepath.Base(src.files[i]) != name {
			t.Errorf("frame %d: expected %s, got %s", i, name, filepath.Base(src.files[i]))
		}
	}

	for range 3 {
		if _, err := src.Read(context.Background()); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
	if _, err := src.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestDirSource_SkipsUndecodableFrame(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "001.png"))
	writePNG(t, filepath.Join(dir, "003.png"))

	// PNG signature with a truncated body: listed as an image, fails to decode
	data, err := os.ReadFile(filepath.Join(dir, "001.png"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "002.png"), data[:20], 0o600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	src, err := NewDirSource(dir, 0)
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 listed frames, got %d", src.Len())
	}

	sink := &recordingSink{}
	if err := Run(context.Background(), src, sink, passthrough); err != nil {
		t.Fatalf("expected replay to finish cleanly, got %v", err)
	}
	if len(sink.shown) != 2 {
		t.Errorf("expected 2 decodable frames shown, got %d", len(sink.shown))
	}
}

func TestDirSource_MissingDir(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"), 0)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	for _, f := range frames(2) {
		if err := sink.Show(f); err != nil {
			t.Fatalf("Show failed: %v", err)
		}
	}

	if sink.Written() != 2 {
		t.Errorf("expected 2 frames written, got %d", sink.Written())
	}
	if _, err := os.Stat(filepath.Join(dir, "frame-000002.jpg")); err != nil {
		t.Errorf("expected frame-000002.jpg: %v", err)
	}
}

func TestAnnotate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	labels := []Label{
		{Rect: image.Rect(40, 40, 80, 80), Text: "Alice present", Color: Green},
		{Rect: image.Rect(500, 500, 600, 600), Text: "offscreen", Color: Red},
	}

	out := Annotate(src, labels, 2)

	if got := out.RGBAAt(40, 60); got != Green {
		t.Errorf("expected left edge to be green, got %v", got)
	}
	if got := out.RGBAAt(79, 60); got != Green {
		t.Errorf("expected right edge to be green, got %v", got)
	}
	if got := out.RGBAAt(60, 60); got != (color.RGBA{}) {
		t.Errorf("expected box interior untouched, got %v", got)
	}
	if got := src.RGBAAt(40, 60); got != (color.RGBA{}) {
		t.Error("expected source frame to stay unmodified")
	}

	captioned := false
	for x := 40; x < 100 && !captioned; x++ {
		for y := 20; y < 40; y++ {
			if out.RGBAAt(x, y) == Green {
				captioned = true
				break
			}
		}
	}
	if !captioned {
		t.Error("expected caption pixels above the box")
	}
}
