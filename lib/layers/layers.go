// Package layers builds application layers for the assembler. Layer archives
// are reproducible: entries are written in lexical order with normalized
// permissions, zeroed ownership and epoch timestamps, so the same inputs
// always produce the same digests.
package layers

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"

	"github.com/gantrybuild/gantry/lib/cache"
)

// finalize compresses a finished tar stream and wraps it in a cache entry.
// The diff-id hashes the tar, the digest hashes the gzip stream.
func finalize(tarBytes []byte) (*cache.Entry, error) {
	var compressed bytes.Buffer
	zw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := zw.Write(tarBytes); err != nil {
		return nil, fmt.Errorf("compress layer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush layer: %w", err)
	}

	diffID := digest.FromBytes(tarBytes)
	dig := digest.FromBytes(compressed.Bytes())
	content := compressed.Bytes()

	return cache.NewEntry(dig.String(), diffID.String(), int64(len(content)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(content)), nil
	}, nil)
}

// normalizeTarget cleans an in-image destination path into tar entry form:
// forward slashes, no leading slash, no trailing slash.
func normalizeTarget(target string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(target, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

// parentDirs lists every ancestor of a normalized entry path, shallowest
// first: "app/classes" -> ["app"].
func parentDirs(entry string) []string {
	var dirs []string
	for i, r := range entry {
		if r == '/' {
			dirs = append(dirs, entry[:i])
		}
	}
	return dirs
}
