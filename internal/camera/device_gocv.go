//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/domain"
	"gocv.io/x/gocv"
)

const escKey = 27

// Device captures frames from an OpenCV video device.
type Device struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	id      int
}

// OpenDevice opens the capture device with the given index.
func OpenDevice(id int) (*Device, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w: %w", id, domain.ErrDeviceUnavailable, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("open camera %d: %w", id, domain.ErrDeviceUnavailable)
	}
	log.WithField("device", id).Info("camera opened")
	return &Device{capture: capture, frame: gocv.NewMat(), id: id}, nil
}

// Read grabs the next frame.
func (d *Device) Read(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.capture.Read(&d.frame) || d.frame.Empty() {
		return nil, fmt.Errorf("camera %d: %w", d.id, errors.New("frame capture failed"))
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera %d: convert frame: %w", d.id, err)
	}
	return img, nil
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.frame.Close()
	return d.capture.Close()
}

// Window shows frames in an OpenCV window. Pressing ESC requests a stop.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a display window.
func NewWindow(title string) (*Window, error) {
	return &Window{window: gocv.NewWindow(title)}, nil
}

// Show implements Sink.
func (w *Window) Show(frame image.Image) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	w.window.IMShow(mat)
	if w.window.WaitKey(1) == escKey {
		return ErrStop
	}
	return nil
}

// Close implements Sink.
func (w *Window) Close() error {
	return w.window.Close()
}
