package layers

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/cache"
)

var _ assemble.AppLayer = (*StaticLayer)(nil)

// StaticLayer builds one layer holding a single in-memory file, useful for
// generated content such as configuration rendered at build time.
type StaticLayer struct {
	target  string
	content []byte

	once  sync.Once
	entry *cache.Entry
	err   error
}

// Static creates a layer placing content at target inside the image.
func Static(target string, content []byte) *StaticLayer {
	return &StaticLayer{target: target, content: content}
}

func (l *StaticLayer) Action() string {
	return "add " + l.target
}

func (l *StaticLayer) ResolveLayer(ctx context.Context) (*cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() {
		l.entry, l.err = l.build()
	})
	return l.entry, l.err
}

func (l *StaticLayer) build() (*cache.Entry, error) {
	target := normalizeTarget(l.target)
	if target == "" {
		return nil, fmt.Errorf("target %q resolves to the image root", l.target)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, dir := range parentDirs(target) {
		if err := writeDirHeader(tw, dir); err != nil {
			return nil, fmt.Errorf("archive %s: %w", l.target, err)
		}
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     target,
		Size:     int64(len(l.content)),
		Mode:     0o644,
		ModTime:  epoch,
	}); err != nil {
		return nil, fmt.Errorf("archive %s: %w", l.target, err)
	}
	if _, err := tw.Write(l.content); err != nil {
		return nil, fmt.Errorf("archive %s: %w", l.target, err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("archive %s: %w", l.target, err)
	}

	entry, err := finalize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", l.target, err)
	}
	return entry, nil
}
