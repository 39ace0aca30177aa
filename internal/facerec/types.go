// Package facerec turns images into face embeddings and matches them against
// the enrolled roster.
package facerec

import (
	"context"
	"image"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Unknown is the identity reported for a face that matched nobody.
const Unknown = constants.UnknownIdentity

// Detection is one face found in an image.
type Detection struct {
	BBox      image.Rectangle // pixel coordinates in the source image
	Embedding []float32
	Score     float64 // detector confidence, 0 when the backend does not report one
}

// Encoder detects faces and computes one embedding per face. An image without
// faces yields an empty slice and no error.
type Encoder interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}
