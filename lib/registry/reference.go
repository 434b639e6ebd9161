package registry

import (
	"fmt"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/name"
)

// NormalizedRef is a validated, fully qualified image reference: tagged
// ("docker.io/library/alpine:3.18") or pinned to a digest
// ("docker.io/library/alpine@sha256:...").
type NormalizedRef struct {
	raw        string
	repository string
	tag        string
	digest     string
}

// ParseNormalizedRef validates a user-provided image reference and expands
// registry and tag shorthand:
//   - "alpine" -> "docker.io/library/alpine:latest"
//   - "alpine:3.18" -> "docker.io/library/alpine:3.18"
//   - "alpine@sha256:abc..." -> "docker.io/library/alpine@sha256:abc..."
func ParseNormalizedRef(s string) (*NormalizedRef, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, fmt.Errorf("parse image reference %q: %w", s, err)
	}

	ref := &NormalizedRef{
		repository: reference.Domain(named) + "/" + reference.Path(named),
	}

	if canonical, ok := named.(reference.Canonical); ok {
		ref.digest = canonical.Digest().String()
		ref.raw = canonical.String()
		return ref, nil
	}

	tagged := reference.TagNameOnly(named)
	if t, ok := tagged.(reference.Tagged); ok {
		ref.tag = t.Tag()
	}
	ref.raw = tagged.String()
	return ref, nil
}

// String returns the full normalized reference.
func (r *NormalizedRef) String() string { return r.raw }

// Repository returns the repository path without tag or digest, for example
// "docker.io/library/alpine".
func (r *NormalizedRef) Repository() string { return r.repository }

// Tag returns the tag, or "" for a digest reference.
func (r *NormalizedRef) Tag() string { return r.tag }

// Digest returns the pinned digest, or "" for a tagged reference.
func (r *NormalizedRef) Digest() string { return r.digest }

// IsDigest reports whether the reference pins a digest.
func (r *NormalizedRef) IsDigest() bool { return r.digest != "" }

// Name converts the reference for registry transport. insecure permits plain
// HTTP registries.
func (r *NormalizedRef) Name(insecure bool) (name.Reference, error) {
	var opts []name.Option
	if insecure {
		opts = append(opts, name.Insecure)
	}
	return name.ParseReference(r.raw, opts...)
}
