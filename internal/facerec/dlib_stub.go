//go:build !dlib

package facerec

import (
	"context"
	"errors"
	"image"
)

var errDlibDisabled = errors.New("dlib backend not compiled in, rebuild with -tags dlib")

// DlibEncoder is unavailable in builds without the dlib tag.
type DlibEncoder struct{}

// NewDlibEncoder always fails in builds without the dlib tag.
func NewDlibEncoder(_ string, _ int) (*DlibEncoder, error) {
	return nil, errDlibDisabled
}

func (e *DlibEncoder) Detect(_ context.Context, _ image.Image) ([]Detection, error) {
	return nil, errDlibDisabled
}

func (e *DlibEncoder) Close() error {
	return nil
}
