// Package image holds the in-memory representation of a container image as
// gantry assembles it: ordered content-addressed layers plus the
// configuration and provenance metadata that downstream serialization turns
// into an OCI config blob.
package image

import (
	"io"
	"maps"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
)

// Opener opens a fresh reader over a blob's content. Layer content is opened
// lazily; every call must return an independent reader so the same blob can
// be consumed more than once.
type Opener func() (io.ReadCloser, error)

// Layer is one immutable, content-addressed slice of image filesystem.
type Layer struct {
	// Digest identifies the compressed content as stored and transferred
	// (the manifest-facing identity).
	Digest digest.Digest

	// DiffID identifies the uncompressed content (the config-facing
	// identity).
	DiffID digest.Digest

	// Size is the compressed size in bytes.
	Size int64

	// Content opens the compressed layer stream.
	Content Opener
}

// Image is an assembled container image. Instances are produced by
// Builder.Build and are immutable from then on: callers must not modify the
// maps or slices they carry.
type Image struct {
	Architecture string
	OS           string
	Created      time.Time

	Env        map[string]string
	Labels     map[string]string
	WorkingDir string
	Entrypoint []string
	Args       []string
	Ports      []string

	History []ocispec.History
	Layers  []Layer
}

// Builder accumulates image state during assembly. Values passed in are
// copied, never aliased, so a seeded builder cannot be affected by later
// mutation of its inputs. The zero value is not usable; call NewBuilder.
type Builder struct {
	arch       string
	os         string
	created    time.Time
	env        map[string]string
	labels     map[string]string
	workingDir string
	entrypoint []string
	args       []string
	ports      []string
	history    []ocispec.History
	layers     []Layer
}

// NewBuilder returns a Builder for a linux/amd64 image with no layers.
func NewBuilder() *Builder {
	return &Builder{
		arch:   "amd64",
		os:     "linux",
		env:    make(map[string]string),
		labels: make(map[string]string),
	}
}

// SetPlatform sets the target architecture and operating system. Empty
// values keep the current ones.
func (b *Builder) SetPlatform(arch, os string) *Builder {
	if arch != "" {
		b.arch = arch
	}
	if os != "" {
		b.os = os
	}
	return b
}

// SetCreated sets the image creation timestamp.
func (b *Builder) SetCreated(t time.Time) *Builder {
	b.created = t
	return b
}

// AddEnv merges env into the accumulated environment; keys already present
// are overwritten.
func (b *Builder) AddEnv(env map[string]string) *Builder {
	b.env = lo.Assign(b.env, env)
	return b
}

// AddLabels merges labels into the accumulated label map; keys already
// present are overwritten.
func (b *Builder) AddLabels(labels map[string]string) *Builder {
	b.labels = lo.Assign(b.labels, labels)
	return b
}

// SetWorkingDir sets the container working directory.
func (b *Builder) SetWorkingDir(dir string) *Builder {
	b.workingDir = dir
	return b
}

// SetEntrypoint replaces the entrypoint wholesale.
func (b *Builder) SetEntrypoint(entrypoint []string) *Builder {
	b.entrypoint = slices.Clone(entrypoint)
	return b
}

// SetArgs replaces the program arguments wholesale.
func (b *Builder) SetArgs(args []string) *Builder {
	b.args = slices.Clone(args)
	return b
}

// SetPorts replaces the exposed port set wholesale.
func (b *Builder) SetPorts(ports []string) *Builder {
	b.ports = slices.Clone(ports)
	return b
}

// AddLayer appends one layer.
func (b *Builder) AddLayer(l Layer) *Builder {
	b.layers = append(b.layers, l)
	return b
}

// AddHistory appends one history entry.
func (b *Builder) AddHistory(h ocispec.History) *Builder {
	b.history = append(b.history, h)
	return b
}

// SetHistory replaces the accumulated history wholesale.
func (b *Builder) SetHistory(history []ocispec.History) *Builder {
	b.history = slices.Clone(history)
	return b
}

// Build freezes the accumulated state into an immutable Image. Exposed ports
// are deduplicated and sorted so the result is deterministic regardless of
// insertion order. The builder remains usable afterwards; the returned image
// shares no mutable state with it.
func (b *Builder) Build() *Image {
	ports := slices.Clone(b.ports)
	slices.Sort(ports)
	ports = slices.Compact(ports)

	return &Image{
		Architecture: b.arch,
		OS:           b.os,
		Created:      b.created,
		Env:          maps.Clone(b.env),
		Labels:       maps.Clone(b.labels),
		WorkingDir:   b.workingDir,
		Entrypoint:   slices.Clone(b.entrypoint),
		Args:         slices.Clone(b.args),
		Ports:        ports,
		History:      slices.Clone(b.history),
		Layers:       slices.Clone(b.layers),
	}
}
