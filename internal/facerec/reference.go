package facerec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// referenceEntry is a memoised encoding result for one photo file.
type referenceEntry struct {
	size      int64
	modTime   time.Time
	embedding []float32
	err       error
}

// ReferenceCache derives reference encodings from roster photos and keeps
// them until the photo file changes (size or modification time) or the TTL
// expires. Failed encodings are cached too, so a photo without a face is not
// re-encoded on every frame.
type ReferenceCache struct {
	encoder    Encoder
	entries    *cache.Cache
	generation atomic.Uint64
}

// NewReferenceCache creates a cache. ttl 0 keeps entries until the photo changes.
func NewReferenceCache(encoder Encoder, ttl time.Duration) *ReferenceCache {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = 2 * ttl
	}
	return &ReferenceCache{
		encoder: encoder,
		entries: cache.New(ttl, cleanup),
	}
}

// Generation changes whenever a reference encoding is (re)computed or dropped.
func (c *ReferenceCache) Generation() uint64 {
	return c.generation.Load()
}

// Reference returns the embedding of the face in the photo at path. A photo
// that cannot be read, cannot be decoded or contains no face returns an error
// wrapping domain.ErrEncodingFailure. When the photo holds several faces the
// first detected one is used.
func (c *ReferenceCache) Reference(ctx context.Context, path string) ([]float32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w: %w", path, domain.ErrEncodingFailure, err)
	}

	if v, ok := c.entries.Get(path); ok {
		entry := v.(*referenceEntry)
		if entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
			return entry.embedding, entry.err
		}
		log.WithField("photo", path).Debug("reference photo changed, re-encoding")
	}

	embedding, fromPhoto, err := c.encode(ctx, path)
	if err != nil && !fromPhoto {
		// encoder or context failure, retried on the next lookup
		log.WithFields(logrus.Fields{"photo": path, "error": err}).Warn("reference encoding unavailable")
		return nil, err
	}

	c.entries.Set(path, &referenceEntry{
		size:      info.Size(),
		modTime:   info.ModTime(),
		embedding: embedding,
		err:       err,
	}, cache.DefaultExpiration)
	c.generation.Add(1)

	if err != nil {
		log.WithFields(logrus.Fields{"photo": path, "error": err}).Warn("reference encoding failed")
	}
	return embedding, err
}

// encode reports fromPhoto when the failure is caused by the photo itself
// (undecodable or faceless) and so stays valid until the file changes.
func (c *ReferenceCache) encode(ctx context.Context, path string) (embedding []float32, fromPhoto bool, err error) {
	img, err := DecodeImageFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("reference: %w: %w", domain.ErrEncodingFailure, err)
	}

	dets, err := c.encoder.Detect(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("reference %s: %w", path, wrapEncoding(err))
	}
	if len(dets) == 0 {
		return nil, true, fmt.Errorf("reference %s: no face found: %w", path, domain.ErrEncodingFailure)
	}

	return dets[0].Embedding, false, nil
}

// Invalidate drops the cached encoding of one photo.
func (c *ReferenceCache) Invalidate(path string) {
	c.entries.Delete(path)
	c.generation.Add(1)
}

// Flush drops every cached encoding.
func (c *ReferenceCache) Flush() {
	c.entries.Flush()
	c.generation.Add(1)
}

// Len returns the number of cached entries, failures included.
func (c *ReferenceCache) Len() int {
	return c.entries.ItemCount()
}

func wrapEncoding(err error) error {
	if errors.Is(err, domain.ErrEncodingFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
}
