package camera

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	Green = color.RGBA{0, 255, 0, 255}
	Red   = color.RGBA{255, 0, 0, 255}
)

// Label is a box drawn over a frame with a caption above it.
type Label struct {
	Rect  image.Rectangle
	Text  string
	Color color.RGBA
}

// Annotate returns a copy of img with the labels drawn on it.
func Annotate(img image.Image, labels []Label, lineWidth int) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, l := range labels {
		r := l.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		for w := range lineWidth {
			drawHLine(dst, r.Min.X, r.Max.X-1, r.Min.Y+w, l.Color)
			drawHLine(dst, r.Min.X, r.Max.X-1, r.Max.Y-1-w, l.Color)
			drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Min.X+w, l.Color)
			drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Max.X-1-w, l.Color)
		}
		if l.Text != "" {
			drawCaption(dst, r, l.Text, l.Color)
		}
	}

	return dst
}

// drawCaption writes text just above the box, or inside its top edge when
// the box touches the top of the frame.
func drawCaption(dst *image.RGBA, box image.Rectangle, text string, c color.RGBA) {
	face := basicfont.Face7x13
	y := box.Min.Y - 4
	if y-face.Ascent < dst.Bounds().Min.Y {
		y = box.Min.Y + face.Ascent + 4
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(box.Min.X+2, y),
	}
	d.DrawString(text)
}

func drawHLine(img *image.RGBA, x1, x2, y int, c color.RGBA) {
	for x := x1; x <= x2; x++ {
		img.SetRGBA(x, y, c)
	}
}

func drawVLine(img *image.RGBA, y1, y2, x int, c color.RGBA) {
	for y := y1; y <= y2; y++ {
		img.SetRGBA(x, y, c)
	}
}
