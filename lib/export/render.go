// Package export serializes assembled images into the OCI formats consumers
// expect: an OCI layout directory, a docker-load tarball, or a push to a
// registry. Rendering is pure; nothing touches the network until Push.
package export

import (
	"fmt"
	"io"
	"slices"

	ggcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/gzip"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"

	"github.com/gantrybuild/gantry/lib/image"
)

// Render converts an assembled image into an OCI image manifest backed by
// the assembly's lazy layer content. The result is deterministic: the same
// assembled image always renders to the same manifest digest.
func Render(img *image.Image) (ggcr.Image, error) {
	layers := make([]ggcr.Layer, len(img.Layers))
	diffIDs := make([]ggcr.Hash, len(img.Layers))
	for i, l := range img.Layers {
		diffID, err := ggcr.NewHash(l.DiffID.String())
		if err != nil {
			return nil, fmt.Errorf("layer %d diff-id: %w", i, err)
		}
		diffIDs[i] = diffID
		layers[i] = &exportLayer{layer: l}
	}

	out, err := mutate.AppendLayers(empty.Image, layers...)
	if err != nil {
		return nil, fmt.Errorf("append layers: %w", err)
	}

	cf := &ggcr.ConfigFile{
		Architecture: img.Architecture,
		OS:           img.OS,
		Created:      ggcr.Time{Time: img.Created},
		History:      renderHistory(img.History),
		RootFS: ggcr.RootFS{
			Type:    "layers",
			DiffIDs: diffIDs,
		},
		Config: ggcr.Config{
			Env:          envList(img.Env),
			Labels:       img.Labels,
			WorkingDir:   img.WorkingDir,
			Entrypoint:   img.Entrypoint,
			Cmd:          img.Args,
			ExposedPorts: portSet(img.Ports),
		},
	}
	out, err = mutate.ConfigFile(out, cf)
	if err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}

	out = mutate.MediaType(out, types.OCIManifestSchema1)
	out = mutate.ConfigMediaType(out, types.OCIConfigJSON)
	return out, nil
}

// exportLayer adapts an assembled layer to the registry client's layer
// interface without materializing content.
type exportLayer struct {
	layer image.Layer
}

func (l *exportLayer) Digest() (ggcr.Hash, error) {
	return ggcr.NewHash(l.layer.Digest.String())
}

func (l *exportLayer) DiffID() (ggcr.Hash, error) {
	return ggcr.NewHash(l.layer.DiffID.String())
}

func (l *exportLayer) Size() (int64, error) {
	return l.layer.Size, nil
}

func (l *exportLayer) MediaType() (types.MediaType, error) {
	return types.OCILayer, nil
}

func (l *exportLayer) Compressed() (io.ReadCloser, error) {
	return l.layer.Content()
}

func (l *exportLayer) Uncompressed() (io.ReadCloser, error) {
	rc, err := l.layer.Content()
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("decompress layer %s: %w", l.layer.Digest, err)
	}
	return &gzipReadCloser{zr: zr, under: rc}, nil
}

type gzipReadCloser struct {
	zr    *gzip.Reader
	under io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	uerr := g.under.Close()
	if zerr != nil {
		return zerr
	}
	return uerr
}

// envList flattens the environment map into sorted KEY=VALUE form so the
// config blob digest does not depend on map iteration order.
func envList(env map[string]string) []string {
	out := lo.MapToSlice(env, func(k, v string) string { return k + "=" + v })
	slices.Sort(out)
	return out
}

func portSet(ports []string) map[string]struct{} {
	if len(ports) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		out[p] = struct{}{}
	}
	return out
}

func renderHistory(history []ocispec.History) []ggcr.History {
	out := make([]ggcr.History, len(history))
	for i, h := range history {
		var created ggcr.Time
		if h.Created != nil {
			created = ggcr.Time{Time: *h.Created}
		}
		out[i] = ggcr.History{
			Created:    created,
			Author:     h.Author,
			CreatedBy:  h.CreatedBy,
			Comment:    h.Comment,
			EmptyLayer: h.EmptyLayer,
		}
	}
	return out
}
