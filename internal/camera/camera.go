// Package camera adapts frame sources (a capture device or a directory of
// images) and display sinks to the attendance loop.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "camera")

// ErrStop is returned by a Sink when the viewer asked to stop (ESC in the window).
var ErrStop = errors.New("stop requested")

// Source yields frames. Read returns io.EOF when no more frames will come.
type Source interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Sink displays or stores annotated frames.
type Sink interface {
	Show(frame image.Image) error
	Close() error
}

// HandleFunc processes one frame and returns what should be shown for it.
// A returned error is logged and the loop continues with the next frame.
type HandleFunc func(ctx context.Context, frame image.Image) (image.Image, error)

// Run reads frames from src, passes each through handle and shows the result
// on sink until ctx is cancelled, the source is exhausted or the sink asks to
// stop. The stop condition is checked once per frame; a blocked Read is not
// interrupted.
func Run(ctx context.Context, src Source, sink Sink, handle HandleFunc) error {
	frames := 0
	defer func() {
		log.WithField("frames", frames).Debug("camera loop finished")
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		frames++

		shown, err := handle(ctx, frame)
		if err != nil {
			log.WithError(err).Warn("frame processing failed")
			shown = frame
		}
		if shown == nil {
			shown = frame
		}

		if err := sink.Show(shown); err != nil {
			if errors.Is(err, ErrStop) {
				log.Info("stop requested from display")
				return nil
			}
			return fmt.Errorf("show frame: %w", err)
		}
	}
}
