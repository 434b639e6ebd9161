// Package cache defines the resolved layer artifact handed from layer
// producers to the assembler. How entries are stored, evicted or laid out on
// disk is the producers' business; this package only fixes the shape that
// crosses the boundary.
package cache

import (
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/gantrybuild/gantry/lib/image"
)

// Entry is a resolved layer artifact: the layer's content identity plus lazy
// access to its compressed content and optional producer metadata. Entries
// are immutable once constructed and safe to share across concurrent
// readers.
type Entry struct {
	layerDigest digest.Digest
	layerDiffID digest.Digest
	layerSize   int64
	content     image.Opener
	metadata    image.Opener
}

// NewEntry validates both content hashes and returns an immutable Entry.
// metadata may be nil. A digest or diff-id that does not parse yields
// ErrMalformedDigest.
func NewEntry(layerDigest, layerDiffID string, size int64, content, metadata image.Opener) (*Entry, error) {
	dig, err := digest.Parse(layerDigest)
	if err != nil {
		return nil, fmt.Errorf("%w: layer digest %q: %v", ErrMalformedDigest, layerDigest, err)
	}
	diffID, err := digest.Parse(layerDiffID)
	if err != nil {
		return nil, fmt.Errorf("%w: layer diff-id %q: %v", ErrMalformedDigest, layerDiffID, err)
	}
	return &Entry{
		layerDigest: dig,
		layerDiffID: diffID,
		layerSize:   size,
		content:     content,
		metadata:    metadata,
	}, nil
}

// LayerDigest returns the digest of the compressed layer content.
func (e *Entry) LayerDigest() digest.Digest { return e.layerDigest }

// LayerDiffID returns the digest of the uncompressed layer content.
func (e *Entry) LayerDiffID() digest.Digest { return e.layerDiffID }

// LayerSize returns the compressed size in bytes.
func (e *Entry) LayerSize() int64 { return e.layerSize }

// LayerContent opens the compressed layer stream.
func (e *Entry) LayerContent() image.Opener { return e.content }

// Metadata opens the optional producer metadata stream; nil when the
// producer attached none.
func (e *Entry) Metadata() image.Opener { return e.metadata }

// Layer converts the entry into the layer that ends up in the assembled
// image.
func (e *Entry) Layer() image.Layer {
	return image.Layer{
		Digest:  e.layerDigest,
		DiffID:  e.layerDiffID,
		Size:    e.layerSize,
		Content: e.content,
	}
}
