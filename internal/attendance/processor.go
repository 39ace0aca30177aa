package attendance

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/sirupsen/logrus"
)

// RosterSource provides the current roster snapshot.
type RosterSource interface {
	All() []roster.StudentRecord
}

// FrameResult is everything one frame produced.
type FrameResult struct {
	Recognitions []Recognition `json:"recognitions"`
	NewRecords   []Record      `json:"new_records,omitempty"`
	// ReferenceErrors lists roster entries that could not be compared.
	ReferenceErrors []error     `json:"-"`
	Annotated       image.Image `json:"-"`
}

// Processor runs detection, matching and session bookkeeping for one frame.
type Processor struct {
	encoder facerec.Encoder
	matcher *facerec.Matcher
	roster  RosterSource
	session *Session
}

// NewProcessor wires the recognition pipeline to a session.
func NewProcessor(encoder facerec.Encoder, matcher *facerec.Matcher, rs RosterSource, session *Session) *Processor {
	return &Processor{encoder: encoder, matcher: matcher, roster: rs, session: session}
}

// Session returns the session the processor records into.
func (p *Processor) Session() *Session {
	return p.session
}

// Identify detects and matches the faces in img without touching the session.
func (p *Processor) Identify(ctx context.Context, img image.Image) ([]Recognition, []error, error) {
	dets, err := p.encoder.Detect(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(dets) == 0 {
		return nil, nil, nil
	}

	refs, refErrs := p.matcher.Resolve(ctx, p.roster.All())
	recs := make([]Recognition, 0, len(dets))
	for _, d := range dets {
		res := p.matcher.MatchResolved(d.Embedding, refs)
		recs = append(recs, Recognition{
			Identity: res.Identity,
			BBox:     d.BBox,
			Distance: res.Distance,
			Score:    d.Score,
		})
	}
	return recs, refErrs, nil
}

// ProcessFrame identifies the faces in frame, feeds the identities to the
// session and returns an annotated copy of the frame.
func (p *Processor) ProcessFrame(ctx context.Context, frame image.Image) (FrameResult, error) {
	recs, refErrs, err := p.Identify(ctx, frame)
	if err != nil {
		return FrameResult{Annotated: frame}, err
	}

	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Identity)
	}
	added := p.session.OnFrameResult(names)

	for _, e := range refErrs {
		log.WithError(e).Debug("roster entry skipped")
	}
	if len(recs) > 0 {
		log.WithFields(logrus.Fields{"faces": len(recs), "new": len(added)}).Debug("frame processed")
	}

	return FrameResult{
		Recognitions:    recs,
		NewRecords:      added,
		ReferenceErrors: refErrs,
		Annotated:       Annotate(frame, recs),
	}, nil
}

// Annotate draws a green box labelled "<name> present" around recognised
// faces and a red "Unknown" box around the rest.
func Annotate(frame image.Image, recs []Recognition) image.Image {
	if len(recs) == 0 {
		return frame
	}
	labels := make([]camera.Label, 0, len(recs))
	for _, r := range recs {
		l := camera.Label{Rect: r.BBox, Text: constants.UnknownIdentity, Color: camera.Red}
		if r.Identity != constants.UnknownIdentity {
			l.Text = r.Identity + " present"
			l.Color = camera.Green
		}
		labels = append(labels, l)
	}
	return camera.Annotate(frame, labels, constants.AnnotationLineWidth)
}

// Handle adapts ProcessFrame to camera.HandleFunc.
func (p *Processor) Handle(ctx context.Context, frame image.Image) (image.Image, error) {
	res, err := p.ProcessFrame(ctx, frame)
	return res.Annotated, err
}
