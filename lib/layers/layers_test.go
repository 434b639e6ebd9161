package layers

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/gantrybuild/gantry/lib/cache"
)

type tarEntry struct {
	header  *tar.Header
	content []byte
}

func readLayerTar(t *testing.T, entry *cache.Entry) []tarEntry {
	t.Helper()
	rc, err := entry.LayerContent()()
	require.NoError(t, err)
	defer rc.Close()

	zr, err := gzip.NewReader(rc)
	require.NoError(t, err)
	defer zr.Close()

	var entries []tarEntry
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries = append(entries, tarEntry{header: hdr, content: content})
	}
	return entries
}

func entryNames(entries []tarEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.header.Name
	}
	return names
}

func writeTestTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "run.sh"), []byte("#!/bin/sh\n"), 0o755))
	return dir
}

func TestFromPathDirectory(t *testing.T) {
	dir := writeTestTree(t)
	entry, err := FromPath(dir, "/app").ResolveLayer(context.Background())
	require.NoError(t, err)

	entries := readLayerTar(t, entry)
	require.Equal(t, []string{
		"app/",
		"app/hello.txt",
		"app/sub/",
		"app/sub/run.sh",
	}, entryNames(entries))

	for _, e := range entries {
		require.Equal(t, epoch, e.header.ModTime.UTC())
		require.Zero(t, e.header.Uid)
		require.Zero(t, e.header.Gid)
	}
	require.Equal(t, int64(0o755), entries[0].header.Mode)
	require.Equal(t, int64(0o644), entries[1].header.Mode)
	require.Equal(t, []byte("hello"), entries[1].content)
	require.Equal(t, int64(0o755), entries[3].header.Mode)
}

func TestFromPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("workers: 4\n"), 0o600))

	entry, err := FromPath(file, "/etc/gantry/config.yaml").ResolveLayer(context.Background())
	require.NoError(t, err)

	entries := readLayerTar(t, entry)
	require.Equal(t, []string{
		"etc/",
		"etc/gantry/",
		"etc/gantry/config.yaml",
	}, entryNames(entries))
	require.Equal(t, []byte("workers: 4\n"), entries[2].content)
	require.Equal(t, int64(0o644), entries[2].header.Mode)
}

func TestFromPathSymlink(t *testing.T) {
	dir := writeTestTree(t)
	require.NoError(t, os.Symlink("hello.txt", filepath.Join(dir, "link")))

	entry, err := FromPath(dir, "/app").ResolveLayer(context.Background())
	require.NoError(t, err)

	entries := readLayerTar(t, entry)
	require.Equal(t, []string{
		"app/",
		"app/hello.txt",
		"app/link",
		"app/sub/",
		"app/sub/run.sh",
	}, entryNames(entries))
	require.Equal(t, byte(tar.TypeSymlink), entries[2].header.Typeflag)
	require.Equal(t, "hello.txt", entries[2].header.Linkname)
}

func TestFromPathReproducible(t *testing.T) {
	dir := writeTestTree(t)
	ctx := context.Background()

	first, err := FromPath(dir, "/app").ResolveLayer(ctx)
	require.NoError(t, err)
	second, err := FromPath(dir, "/app").ResolveLayer(ctx)
	require.NoError(t, err)

	require.Equal(t, first.LayerDigest(), second.LayerDigest())
	require.Equal(t, first.LayerDiffID(), second.LayerDiffID())
	require.Equal(t, first.LayerSize(), second.LayerSize())

	// Compressed and uncompressed identities differ.
	require.NotEqual(t, first.LayerDigest(), first.LayerDiffID())
}

func TestFromPathResolvesOnce(t *testing.T) {
	dir := writeTestTree(t)
	layer := FromPath(dir, "/app")
	ctx := context.Background()

	first, err := layer.ResolveLayer(ctx)
	require.NoError(t, err)

	// Changing the source after the first resolve must not change the
	// already built layer.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.txt"), []byte("late"), 0o644))
	second, err := layer.ResolveLayer(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestFromPathErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingSource", func(t *testing.T) {
		_, err := FromPath(filepath.Join(t.TempDir(), "nope"), "/app").ResolveLayer(ctx)
		require.Error(t, err)
	})

	t.Run("RootTarget", func(t *testing.T) {
		_, err := FromPath(writeTestTree(t), "/").ResolveLayer(ctx)
		require.ErrorContains(t, err, "image root")
	})
}

func TestFromPathAction(t *testing.T) {
	require.Equal(t, "copy ./build/classes /app/classes", FromPath("./build/classes", "/app/classes").Action())
}

func TestStatic(t *testing.T) {
	layer := Static("/etc/motd", []byte("welcome\n"))
	require.Equal(t, "add /etc/motd", layer.Action())

	entry, err := layer.ResolveLayer(context.Background())
	require.NoError(t, err)

	entries := readLayerTar(t, entry)
	require.Equal(t, []string{"etc/", "etc/motd"}, entryNames(entries))
	require.Equal(t, []byte("welcome\n"), entries[1].content)

	again, err := Static("/etc/motd", []byte("welcome\n")).ResolveLayer(context.Background())
	require.NoError(t, err)
	require.Equal(t, entry.LayerDigest(), again.LayerDigest())
}
