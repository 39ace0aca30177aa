package facerec

import (
	"fmt"
	"strings"
)

// Backend names accepted by NewEncoder.
const (
	BackendHTTP = "http"
	BackendDlib = "dlib"
)

// EncoderOptions selects and configures an Encoder backend.
type EncoderOptions struct {
	Backend      string
	EmbeddingURL string
	ModelsDir    string
	MaxSize      int
}

// NewEncoder builds the configured backend. The returned close function
// releases native resources and is never nil.
func NewEncoder(opts EncoderOptions) (Encoder, func() error, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendHTTP:
		log.WithField("url", opts.EmbeddingURL).Debug("using http embedding backend")
		return NewHTTPEncoder(opts.EmbeddingURL, opts.MaxSize), func() error { return nil }, nil
	case BackendDlib:
		enc, err := NewDlibEncoder(opts.ModelsDir, opts.MaxSize)
		if err != nil {
			return nil, nil, err
		}
		return enc, enc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown recognition backend %q", opts.Backend)
	}
}
