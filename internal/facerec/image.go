package facerec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/kozaktomas/face-attendance/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes any registered format (JPEG, PNG, GIF, BMP, WebP).
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DecodeImageFile opens and decodes an image file.
func DecodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the roster or the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// EncodeJPEG encodes an image as JPEG with the default quality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.EncodeJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale shrinks an image to fit within maxSize (width or height) while
// keeping aspect ratio. It returns the image and the factor that maps
// coordinates in the result back to the original. Images already small
// enough, or maxSize <= 0, are returned unchanged with factor 1.
func Downscale(img image.Image, maxSize int) (image.Image, float64) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img, 1
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return resized, float64(width) / float64(newWidth)
}

// scaleRect maps a rectangle from a downscaled image back to the original.
func scaleRect(r image.Rectangle, factor float64, origin image.Point) image.Rectangle {
	if factor == 1 {
		return r.Add(origin)
	}
	return image.Rect(
		int(float64(r.Min.X)*factor),
		int(float64(r.Min.Y)*factor),
		int(float64(r.Max.X)*factor),
		int(float64(r.Max.Y)*factor),
	).Add(origin)
}
