package export

import (
	"context"
	"fmt"
	"net/http"

	"github.com/c2h5oh/datasize"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	ggcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/gantrybuild/gantry/lib/assemble"
)

// WriteOCILayout writes the image into an OCI image layout directory,
// creating it when missing.
func WriteOCILayout(dir string, img ggcr.Image) error {
	lp, err := layout.Write(dir, empty.Index)
	if err != nil {
		return fmt.Errorf("create oci layout %s: %w", dir, err)
	}
	if err := lp.AppendImage(img); err != nil {
		return fmt.Errorf("append image to %s: %w", dir, err)
	}
	return nil
}

// WriteTarball writes the image as a docker-load compatible tarball tagged
// with ref.
func WriteTarball(path, ref string, img ggcr.Image) error {
	tag, err := name.NewTag(ref)
	if err != nil {
		return fmt.Errorf("parse tag %q: %w", ref, err)
	}
	if err := tarball.WriteToFile(path, tag, img); err != nil {
		return fmt.Errorf("write tarball %s: %w", path, err)
	}
	return nil
}

// PushConfig tunes registry publication.
type PushConfig struct {
	// Credential, when set, is used as-is: typically the credential the
	// base image pull resolved. Otherwise the keychain decides.
	Credential *assemble.Credential

	// Keychain resolves credentials when Credential is nil; nil uses the
	// ambient Docker config.
	Keychain authn.Keychain

	// Insecure permits plain HTTP registries.
	Insecure bool

	// Transport overrides the HTTP transport when non-nil.
	Transport http.RoundTripper
}

// Push uploads the image to the registry named by ref.
func Push(ctx context.Context, ref string, img ggcr.Image, cfg PushConfig) error {
	var nameOpts []name.Option
	if cfg.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	nameRef, err := name.ParseReference(ref, nameOpts...)
	if err != nil {
		return fmt.Errorf("parse reference %q: %w", ref, err)
	}

	opts := []remote.Option{remote.WithContext(ctx)}
	switch {
	case cfg.Credential != nil:
		opts = append(opts, remote.WithAuth(&authn.Basic{
			Username: cfg.Credential.Username,
			Password: cfg.Credential.Secret,
		}))
	case cfg.Keychain != nil:
		opts = append(opts, remote.WithAuthFromKeychain(cfg.Keychain))
	default:
		opts = append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}
	if cfg.Transport != nil {
		opts = append(opts, remote.WithTransport(cfg.Transport))
	}

	if err := remote.Write(nameRef, img, opts...); err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	return nil
}

// Summary describes a rendered image for user-facing output.
type Summary struct {
	// Digest is the manifest digest.
	Digest string

	// Size is the total compressed size: config blob plus all layers.
	Size datasize.ByteSize

	Layers int
}

// Summarize computes the rendered image's digest and transfer size.
func Summarize(img ggcr.Image) (Summary, error) {
	dig, err := img.Digest()
	if err != nil {
		return Summary{}, fmt.Errorf("image digest: %w", err)
	}
	manifest, err := img.Manifest()
	if err != nil {
		return Summary{}, fmt.Errorf("image manifest: %w", err)
	}

	total := manifest.Config.Size
	for _, l := range manifest.Layers {
		total += l.Size
	}
	return Summary{
		Digest: dig.String(),
		Size:   datasize.ByteSize(total),
		Layers: len(manifest.Layers),
	}, nil
}
