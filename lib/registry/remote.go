// Package registry resolves base images from OCI registries without a
// container daemon. Remote implements the assembler's base image and base
// layer producers over the registry API; Scratch implements them for builds
// that start from nothing.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/go-containerregistry/pkg/authn"
	ggcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/cache"
	"github.com/gantrybuild/gantry/lib/image"
)

// RemoteConfig tunes how a Remote talks to the registry. The zero value
// targets linux/amd64 over HTTPS with the ambient Docker credential helpers.
type RemoteConfig struct {
	// Architecture and OS select the platform manifest for multi-platform
	// references. Empty values mean amd64 and linux.
	Architecture string
	OS           string

	// Keychain resolves registry credentials; nil uses the ambient Docker
	// config. Anonymous skips credential resolution entirely.
	Keychain  authn.Keychain
	Anonymous bool

	// Insecure permits plain HTTP registries.
	Insecure bool

	// Transport overrides the HTTP transport when non-nil.
	Transport http.RoundTripper

	Logger *slog.Logger
}

var (
	_ assemble.BaseImageProducer  = (*Remote)(nil)
	_ assemble.BaseLayersProducer = (*Remote)(nil)
)

// Remote resolves a base image and its layers from an OCI registry. The
// manifest is fetched once and shared by both producer roles; layer content
// is never pulled until a handle is resolved. Safe for concurrent use.
type Remote struct {
	ref    *NormalizedRef
	cfg    RemoteConfig
	logger *slog.Logger

	mu  sync.Mutex
	img ggcr.Image
}

// NewRemote creates a producer pair for ref.
func NewRemote(ref *NormalizedRef, cfg RemoteConfig) *Remote {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{ref: ref, cfg: cfg, logger: logger}
}

// ResolveBaseImage fetches the manifest and config and returns the base
// image's declared metadata, along with the credential that authorized the
// fetch when one was used.
func (r *Remote) ResolveBaseImage(ctx context.Context) (assemble.BaseImageResult, error) {
	img, err := r.image(ctx)
	if err != nil {
		return assemble.BaseImageResult{}, err
	}
	cf, err := img.ConfigFile()
	if err != nil {
		return assemble.BaseImageResult{}, fmt.Errorf("read config of %s: %w", r.ref, err)
	}

	base := image.NewBuilder().
		SetPlatform(cf.Architecture, cf.OS).
		SetCreated(cf.Created.Time).
		AddEnv(parseEnv(cf.Config.Env)).
		AddLabels(cf.Config.Labels).
		SetWorkingDir(cf.Config.WorkingDir).
		SetEntrypoint(cf.Config.Entrypoint).
		SetArgs(cf.Config.Cmd).
		SetPorts(lo.Keys(cf.Config.ExposedPorts)).
		SetHistory(convertHistory(cf.History)).
		Build()

	r.logger.Info("resolved base image",
		"ref", r.ref.String(),
		"platform", cf.OS+"/"+cf.Architecture,
		"history_entries", len(base.History))

	return assemble.BaseImageResult{
		Image:      base,
		Credential: r.credential(),
	}, nil
}

// ResolveBaseLayers returns one lazy handle per manifest layer, in pull
// order. Resolving a handle reads the layer's identity from the already
// fetched manifest and config; content stays remote until opened.
func (r *Remote) ResolveBaseLayers(ctx context.Context) ([]assemble.LayerHandle, error) {
	img, err := r.image(ctx)
	if err != nil {
		return nil, err
	}
	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("list layers of %s: %w", r.ref, err)
	}

	handles := make([]assemble.LayerHandle, len(layers))
	for i, l := range layers {
		handles[i] = &remoteLayer{layer: l}
	}
	return handles, nil
}

// image fetches the platform manifest once; later calls reuse it.
func (r *Remote) image(ctx context.Context) (ggcr.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.img != nil {
		return r.img, nil
	}

	nameRef, err := r.ref.Name(r.cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("parse reference %s: %w", r.ref, err)
	}

	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithPlatform(ggcr.Platform{
			Architecture: r.architecture(),
			OS:           r.os(),
		}),
	}
	if r.cfg.Anonymous {
		opts = append(opts, remote.WithAuth(authn.Anonymous))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(r.keychain()))
	}
	if r.cfg.Transport != nil {
		opts = append(opts, remote.WithTransport(r.cfg.Transport))
	}

	img, err := remote.Image(nameRef, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest of %s: %w", r.ref, err)
	}
	r.img = img
	return img, nil
}

func (r *Remote) keychain() authn.Keychain {
	if r.cfg.Keychain != nil {
		return r.cfg.Keychain
	}
	return authn.DefaultKeychain
}

// credential surfaces the registry credential so publication can reuse it.
// Anonymous pulls yield nil.
func (r *Remote) credential() *assemble.Credential {
	if r.cfg.Anonymous {
		return nil
	}
	nameRef, err := r.ref.Name(r.cfg.Insecure)
	if err != nil {
		return nil
	}
	auth, err := r.keychain().Resolve(nameRef.Context())
	if err != nil {
		return nil
	}
	authCfg, err := auth.Authorization()
	if err != nil || authCfg == nil {
		return nil
	}
	if authCfg.Username == "" && authCfg.Password == "" {
		return nil
	}
	return &assemble.Credential{Username: authCfg.Username, Secret: authCfg.Password}
}

func (r *Remote) architecture() string {
	if r.cfg.Architecture != "" {
		return r.cfg.Architecture
	}
	return "amd64"
}

func (r *Remote) os() string {
	if r.cfg.OS != "" {
		return r.cfg.OS
	}
	return "linux"
}

// remoteLayer resolves one manifest layer to a cache entry, once.
type remoteLayer struct {
	layer ggcr.Layer

	once  sync.Once
	entry *cache.Entry
	err   error
}

func (l *remoteLayer) ResolveLayer(ctx context.Context) (*cache.Entry, error) {
	l.once.Do(func() {
		dig, err := l.layer.Digest()
		if err != nil {
			l.err = fmt.Errorf("layer digest: %w", err)
			return
		}
		diffID, err := l.layer.DiffID()
		if err != nil {
			l.err = fmt.Errorf("layer diff-id: %w", err)
			return
		}
		size, err := l.layer.Size()
		if err != nil {
			l.err = fmt.Errorf("layer size: %w", err)
			return
		}
		l.entry, l.err = cache.NewEntry(dig.String(), diffID.String(), size, l.layer.Compressed, nil)
	})
	return l.entry, l.err
}

// parseEnv splits "KEY=VALUE" entries into a map. Malformed entries without
// "=" become keys with empty values.
func parseEnv(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, e := range env {
		k, v, _ := strings.Cut(e, "=")
		out[k] = v
	}
	return out
}

func convertHistory(history []ggcr.History) []ocispec.History {
	out := make([]ocispec.History, len(history))
	for i, h := range history {
		created := h.Created.Time
		out[i] = ocispec.History{
			Created:    &created,
			Author:     h.Author,
			CreatedBy:  h.CreatedBy,
			Comment:    h.Comment,
			EmptyLayer: h.EmptyLayer,
		}
	}
	return out
}
