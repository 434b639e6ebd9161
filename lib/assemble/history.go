package assemble

import (
	"slices"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ReconcileHistory lines a base image's declared history up with the layers
// the assembled image really has, then appends one entry per application
// layer.
//
// A base image may declare fewer non-empty history entries than it has real
// layers (layers added before history bookkeeping, or through intermediate
// caching). The gap is filled with synthetic non-empty entries stamped with
// created and an auto-generated comment. The opposite inconsistency, more
// non-empty entries than baseLayerCount, is tolerated untouched: entries
// are never truncated, reordered or removed.
//
// appCreatedBy carries one pre-formatted created-by string per application
// layer, in build order; each produces a non-empty entry authored by author.
//
// The result depends only on the inputs, never on resolution timing, and
// the existing slice is never mutated.
func ReconcileHistory(existing []ocispec.History, baseLayerCount int, appCreatedBy []string, created time.Time, author string) []ocispec.History {
	history := slices.Clone(existing)

	for i := nonEmptyHistoryCount(existing); i < baseLayerCount; i++ {
		ts := created
		history = append(history, ocispec.History{
			Created: &ts,
			Comment: "auto-generated by " + author,
		})
	}

	for _, createdBy := range appCreatedBy {
		ts := created
		history = append(history, ocispec.History{
			Created:   &ts,
			Author:    author,
			CreatedBy: createdBy,
		})
	}

	return history
}

// nonEmptyHistoryCount counts entries describing layers with real
// filesystem content.
func nonEmptyHistoryCount(history []ocispec.History) int {
	n := 0
	for _, h := range history {
		if !h.EmptyLayer {
			n++
		}
	}
	return n
}
