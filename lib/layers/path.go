package layers

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/cache"
)

var _ assemble.AppLayer = (*PathLayer)(nil)

// epoch is the timestamp written on every archive entry. Real modification
// times would make digests depend on checkout and build times.
var epoch = time.Unix(0, 0).UTC()

// PathLayer builds one layer from a file or directory on disk, placed at
// target inside the image. Building happens on first resolve; the result is
// reused afterwards.
type PathLayer struct {
	source string
	target string

	once  sync.Once
	entry *cache.Entry
	err   error
}

// FromPath creates a layer that copies source (a file or a directory tree)
// to target inside the image.
func FromPath(source, target string) *PathLayer {
	return &PathLayer{source: source, target: target}
}

// Action describes the build step for the layer's history entry.
func (l *PathLayer) Action() string {
	return "copy " + l.source + " " + l.target
}

func (l *PathLayer) ResolveLayer(ctx context.Context) (*cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() {
		l.entry, l.err = l.build()
	})
	return l.entry, l.err
}

func (l *PathLayer) build() (*cache.Entry, error) {
	var buf bytes.Buffer
	if err := l.writeTar(&buf); err != nil {
		return nil, fmt.Errorf("archive %s: %w", l.source, err)
	}
	entry, err := finalize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", l.source, err)
	}
	return entry, nil
}

func (l *PathLayer) writeTar(w io.Writer) error {
	info, err := os.Lstat(l.source)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	target := normalizeTarget(l.target)
	if target == "" {
		return fmt.Errorf("target %q resolves to the image root", l.target)
	}

	for _, dir := range parentDirs(target) {
		if err := writeDirHeader(tw, dir); err != nil {
			return err
		}
	}

	if info.IsDir() {
		if err := writeDirHeader(tw, target); err != nil {
			return err
		}
		if err := l.writeTree(tw, target); err != nil {
			return err
		}
	} else {
		if err := writeFileEntry(tw, l.source, target, info); err != nil {
			return err
		}
	}
	return tw.Close()
}

// writeTree archives the source directory's contents under prefix. WalkDir
// visits entries in lexical order, which fixes the archive order.
func (l *PathLayer) writeTree(tw *tar.Writer, prefix string) error {
	return filepath.WalkDir(l.source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == l.source {
			return nil
		}
		rel, err := filepath.Rel(l.source, p)
		if err != nil {
			return err
		}
		name := prefix + "/" + filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return writeDirHeader(tw, name)
		}
		return writeFileEntry(tw, p, name, info)
	})
}

func writeDirHeader(tw *tar.Writer, name string) error {
	return tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     0o755,
		ModTime:  epoch,
	})
}

// writeFileEntry archives one regular file or symlink. Permissions are
// normalized to 0644, or 0755 when any execute bit is set; symlinks keep
// their link target verbatim.
func writeFileEntry(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	if info.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(path)
		if err != nil {
			return err
		}
		return tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     name,
			Linkname: link,
			Mode:     0o777,
			ModTime:  epoch,
		})
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("unsupported file type %s: %s", info.Mode(), path)
	}

	mode := int64(0o644)
	if info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     info.Size(),
		Mode:     mode,
		ModTime:  epoch,
	}); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}
