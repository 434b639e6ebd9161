// Package buildfile loads the declarative build manifest: which base image
// to start from, which paths become layers, and which configuration the
// image carries. The manifest is YAML on disk.
package buildfile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/samber/lo"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/layers"
)

// ScratchBase is the From value selecting an empty base image.
const ScratchBase = "scratch"

// Buildfile describes one image build.
type Buildfile struct {
	// From is the base image reference, or "scratch" for an empty base.
	From string `json:"from"`

	// Architecture and OS pick the base platform. Empty means amd64/linux.
	Architecture string `json:"architecture,omitempty"`
	OS           string `json:"os,omitempty"`

	// Layers lists the application layers in build order.
	Layers []Layer `json:"layers"`

	// Env and Labels merge over the base image's; same keys win.
	Env    map[string]string `json:"env,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`

	// Entrypoint, Args and Ports replace the base values when present in
	// the manifest, even when empty. Absent keys inherit from the base.
	Entrypoint []string `json:"entrypoint,omitempty"`
	Args       []string `json:"args,omitempty"`
	Ports      []string `json:"ports,omitempty"`

	// WorkingDir overrides the base working directory when non-empty.
	WorkingDir string `json:"workingDir,omitempty"`

	// Created pins the image creation time: "epoch", "now" or an RFC 3339
	// timestamp. Empty inherits the base image's.
	Created string `json:"created,omitempty"`
}

// Layer is one application layer: a file or directory copied into the image.
type Layer struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Buildfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read buildfile: %w", err)
	}
	bf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bf, nil
}

// Parse validates and normalizes a manifest.
func Parse(data []byte) (*Buildfile, error) {
	var bf Buildfile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse buildfile: %w", err)
	}
	if err := bf.validate(); err != nil {
		return nil, err
	}
	bf.Ports = normalizePorts(bf.Ports)
	return &bf, nil
}

func (b *Buildfile) validate() error {
	if b.From == "" {
		return fmt.Errorf("buildfile: from is required (use %q for an empty base)", ScratchBase)
	}
	for i, l := range b.Layers {
		if l.Source == "" {
			return fmt.Errorf("buildfile: layer %d: source is required", i)
		}
		if l.Target == "" {
			return fmt.Errorf("buildfile: layer %d: target is required", i)
		}
	}
	if _, err := b.created(); err != nil {
		return err
	}
	return nil
}

// Scratch reports whether the build starts from an empty base.
func (b *Buildfile) Scratch() bool { return b.From == ScratchBase }

// AppLayers converts the declared layers into build-ordered producer
// handles.
func (b *Buildfile) AppLayers() []assemble.AppLayer {
	return lo.Map(b.Layers, func(l Layer, _ int) assemble.AppLayer {
		return layers.FromPath(l.Source, l.Target)
	})
}

// ContainerConfig converts the manifest's overrides into the assembler's
// form. Keys absent from the manifest stay nil so the base values are
// inherited; keys present but empty clear them.
func (b *Buildfile) ContainerConfig() (*assemble.ContainerConfig, error) {
	created, err := b.created()
	if err != nil {
		return nil, err
	}
	return &assemble.ContainerConfig{
		Created:    created,
		Env:        b.Env,
		Labels:     b.Labels,
		Entrypoint: b.Entrypoint,
		Args:       b.Args,
		Ports:      b.Ports,
		WorkingDir: b.WorkingDir,
	}, nil
}

func (b *Buildfile) created() (*time.Time, error) {
	switch b.Created {
	case "":
		return nil, nil
	case "epoch":
		t := time.Unix(0, 0).UTC()
		return &t, nil
	case "now":
		t := time.Now().UTC()
		return &t, nil
	default:
		t, err := time.Parse(time.RFC3339, b.Created)
		if err != nil {
			return nil, fmt.Errorf("buildfile: created %q is not \"epoch\", \"now\" or RFC 3339: %w", b.Created, err)
		}
		t = t.UTC()
		return &t, nil
	}
}

// normalizePorts appends the default tcp protocol to bare port numbers and
// drops duplicates, preserving first-seen order.
func normalizePorts(ports []string) []string {
	if ports == nil {
		return nil
	}
	normalized := lo.Map(ports, func(p string, _ int) string {
		if !strings.Contains(p, "/") {
			return p + "/tcp"
		}
		return p
	})
	return lo.Uniq(normalized)
}
