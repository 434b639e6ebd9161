package assemble

import (
	"context"

	"github.com/gantrybuild/gantry/lib/cache"
	"github.com/gantrybuild/gantry/lib/image"
)

// Credential is a registry credential resolved alongside the base image. The
// assembler never uses it; it is surfaced so downstream publication can
// reuse the authorization that fetched the base.
type Credential struct {
	Username string
	Secret   string
}

// BaseImageResult is what a BaseImageProducer resolves to: the base image's
// declared metadata and, when available, the credential that authorized the
// fetch.
type BaseImageResult struct {
	Image      *image.Image
	Credential *Credential
}

// BaseImageProducer resolves the base image's declared metadata. Resolution
// may block on network or cache I/O; implementations must honor ctx.
type BaseImageProducer interface {
	ResolveBaseImage(ctx context.Context) (BaseImageResult, error)
}

// BaseLayersProducer resolves the ordered collection of per-layer handles
// for the base image. The returned order is the pull order and fixes where
// each layer lands in the assembled image, regardless of when the individual
// handles complete.
type BaseLayersProducer interface {
	ResolveBaseLayers(ctx context.Context) ([]LayerHandle, error)
}

// LayerHandle yields one layer's cache entry. Resolution may block until the
// layer has been pulled or built; handles for different layers may complete
// in any order and are safe to resolve concurrently.
type LayerHandle interface {
	ResolveLayer(ctx context.Context) (*cache.Entry, error)
}

// AppLayer is the handle for one newly built application layer. Action
// describes the build action that produced the layer (for example
// "copy app /app") and is recorded in the layer's history entry.
type AppLayer interface {
	LayerHandle
	Action() string
}
