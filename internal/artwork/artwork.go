// Package artwork normalizes cover images before they are stored on albums
// and artists.
package artwork

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder for cover art
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/nfnt/resize"
)

const (
	defaultMaxSize = 600
	jpegQuality    = 85

	// A folder of N tracks usually carries the same cover N times.
	cacheEntries = 64
)

// ErrEmpty is returned for empty image data.
var ErrEmpty = errors.New("empty image data")

// Normalizer decodes cover images, shrinks them to fit a square of MaxSize
// pixels and re-encodes them as JPEG. It is safe for concurrent use.
type Normalizer struct {
	maxSize uint

	mu    sync.Mutex
	cache map[uint64][]byte
	order []uint64
}

// New returns a Normalizer for the given longest edge. Non-positive sizes
// use the default.
func New(maxSize int) *Normalizer {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Normalizer{
		maxSize: uint(maxSize), //nolint:gosec // checked positive above
		cache:   make(map[uint64][]byte),
	}
}

// Normalize returns the JPEG form of data, at most MaxSize pixels on its
// longest edge. Images already smaller keep their dimensions.
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	key := xxhash.Sum64(data)
	if out, ok := n.cached(key); ok {
		return out, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	// Thumbnail keeps the aspect ratio and never upscales
	resized := resize.Thumbnail(n.maxSize, n.maxSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	n.store(key, out)
	return out, nil
}

func (n *Normalizer) cached(key uint64) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out, ok := n.cache[key]
	return out, ok
}

func (n *Normalizer) store(key uint64, out []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.cache[key]; ok {
		return
	}
	if len(n.order) >= cacheEntries {
		delete(n.cache, n.order[0])
		n.order = n.order[1:]
	}
	n.cache[key] = out
	n.order = append(n.order, key)
}
