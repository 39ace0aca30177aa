package attendance

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/facerec/mock"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

const tile = 32

var (
	aliceColor    = color.RGBA{255, 0, 0, 255}
	bobColor      = color.RGBA{0, 0, 255, 255}
	strangerColor = color.RGBA{255, 255, 0, 255}
	wallColor     = color.RGBA{90, 90, 90, 255}
)

type staticRoster []roster.StudentRecord

func (r staticRoster) All() []roster.StudentRecord { return r }

// pipeline builds a processor with Alice and Bob enrolled. The stranger is a
// face nobody enrolled.
func pipeline(t *testing.T) (*Processor, *mock.MockEncoder, staticRoster) {
	t.Helper()
	dir := t.TempDir()

	enc := mock.NewMockEncoder()
	enc.AddFace(aliceColor, 0, 0)
	enc.AddFace(bobColor, 1, 0)
	enc.AddFace(strangerColor, 5, 5)

	rs := staticRoster{
		{Name: "Alice", PhotoPath: photo(t, dir, "alice.png", aliceColor)},
		{Name: "Bob", PhotoPath: photo(t, dir, "bob.png", bobColor)},
	}

	matcher := facerec.NewMatcher(facerec.NewReferenceCache(enc, 0), facerec.MatcherOptions{})
	p := NewProcessor(enc, matcher, rs, NewSession(newFakeClock().Now))
	return p, enc, rs
}

func photo(t *testing.T, dir, name string, c color.RGBA) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := mock.WritePhoto(path, tile, c); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	return path
}

func TestProcessFrame_TwoStudents(t *testing.T) {
	p, _, _ := pipeline(t)
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := p.ProcessFrame(context.Background(), mock.Frame(tile, aliceColor, strangerColor, bobColor))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	if len(res.Recognitions) != 3 {
		t.Fatalf("expected 3 recognitions, got %d", len(res.Recognitions))
	}
	expected := []string{"Alice", facerec.Unknown, "Bob"}
	for i, want := range expected {
		if res.Recognitions[i].Identity != want {
			t.Errorf("face %d: expected %s, got %s", i, want, res.Recognitions[i].Identity)
		}
	}

	if len(res.NewRecords) != 2 {
		t.Fatalf("expected 2 new records, got %d", len(res.NewRecords))
	}
	if res.NewRecords[0].Date != res.NewRecords[1].Date || res.NewRecords[0].Time != res.NewRecords[1].Time {
		t.Error("expected both records stamped with the same clock reading")
	}
}

func TestProcessFrame_Annotation(t *testing.T) {
	p, _, _ := pipeline(t)
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := p.ProcessFrame(context.Background(), mock.Frame(tile, aliceColor, strangerColor))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	annotated, ok := res.Annotated.(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA, got %T", res.Annotated)
	}
	if got := annotated.RGBAAt(0, tile/2); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("expected green box edge around Alice, got %v", got)
	}
	if got := annotated.RGBAAt(tile, tile/2); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("expected red box edge around the stranger, got %v", got)
	}
}

func TestProcessFrame_RepeatedFrames(t *testing.T) {
	p, _, _ := pipeline(t)
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame := mock.Frame(tile, aliceColor)
	for range 10 {
		if _, err := p.ProcessFrame(context.Background(), frame); err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
	}

	if n := len(p.Session().Records()); n != 1 {
		t.Errorf("expected 1 record over 10 frames, got %d", n)
	}
}

func TestProcessFrame_BadReferenceDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	enc := mock.NewMockEncoder()
	enc.AddFace(bobColor, 1, 0)
	rs := staticRoster{
		{Name: "Alice", PhotoPath: photo(t, dir, "alice.png", wallColor)}, // no face in the photo
		{Name: "Bob", PhotoPath: photo(t, dir, "bob.png", bobColor)},
	}
	matcher := facerec.NewMatcher(facerec.NewReferenceCache(enc, 0), facerec.MatcherOptions{})
	p := NewProcessor(enc, matcher, rs, NewSession(nil))
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := p.ProcessFrame(context.Background(), mock.Frame(tile, bobColor))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if len(res.ReferenceErrors) != 1 {
		t.Errorf("expected 1 reference error, got %d", len(res.ReferenceErrors))
	}
	if len(res.NewRecords) != 1 || res.NewRecords[0].Name != "Bob" {
		t.Errorf("expected Bob to be logged, got %+v", res.NewRecords)
	}
}

func TestProcessFrame_EncoderError(t *testing.T) {
	p, enc, _ := pipeline(t)
	enc.DetectError = errors.New("backend down")

	res, err := p.ProcessFrame(context.Background(), mock.Frame(tile, aliceColor))
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Annotated == nil {
		t.Error("expected the raw frame to be returned for display")
	}
}

func TestProcessFrame_NoFaces(t *testing.T) {
	p, enc, _ := pipeline(t)
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := p.ProcessFrame(context.Background(), mock.Frame(tile, wallColor))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if len(res.Recognitions) != 0 {
		t.Errorf("expected no recognitions, got %d", len(res.Recognitions))
	}
	// Only the frame itself went to the encoder; references are resolved lazily.
	if enc.Calls() != 1 {
		t.Errorf("expected 1 encoder call, got %d", enc.Calls())
	}
}

func TestIdentify_DoesNotLog(t *testing.T) {
	p, _, _ := pipeline(t)
	if _, err := p.Session().Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	recs, _, err := p.Identify(context.Background(), mock.Frame(tile, aliceColor))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Identity != "Alice" {
		t.Errorf("expected Alice, got %+v", recs)
	}
	if len(p.Session().Records()) != 0 {
		t.Error("expected Identify to leave the log untouched")
	}
}
