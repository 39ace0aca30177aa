//go:build !gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/domain"
)

var errGocvDisabled = errors.New("OpenCV support not compiled in, rebuild with -tags gocv")

// Device is unavailable in builds without the gocv tag.
type Device struct{}

// OpenDevice always fails in builds without the gocv tag.
func OpenDevice(id int) (*Device, error) {
	return nil, fmt.Errorf("open camera %d: %w: %w", id, domain.ErrDeviceUnavailable, errGocvDisabled)
}

func (d *Device) Read(_ context.Context) (image.Image, error) {
	return nil, errGocvDisabled
}

func (d *Device) Close() error {
	return nil
}

// Window is unavailable in builds without the gocv tag.
type Window struct{}

// NewWindow always fails in builds without the gocv tag.
func NewWindow(_ string) (*Window, error) {
	return nil, errGocvDisabled
}

func (w *Window) Show(_ image.Image) error {
	return errGocvDisabled
}

func (w *Window) Close() error {
	return nil
}
