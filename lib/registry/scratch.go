package registry

import (
	"context"
	"time"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/image"
)

var (
	_ assemble.BaseImageProducer  = Scratch{}
	_ assemble.BaseLayersProducer = Scratch{}
)

// Scratch produces an empty base: no layers, no history, no inherited
// configuration. The creation timestamp is pinned to the Unix epoch so a
// scratch build is reproducible by default.
type Scratch struct {
	// Architecture and OS set the image platform. Empty values mean amd64
	// and linux.
	Architecture string
	OS           string
}

func (s Scratch) ResolveBaseImage(ctx context.Context) (assemble.BaseImageResult, error) {
	base := image.NewBuilder().
		SetPlatform(s.Architecture, s.OS).
		SetCreated(time.Unix(0, 0).UTC()).
		Build()
	return assemble.BaseImageResult{Image: base}, nil
}

func (s Scratch) ResolveBaseLayers(ctx context.Context) ([]assemble.LayerHandle, error) {
	return nil, nil
}
