package playout

import (
	"context"
	"time"

	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// Generate produces up to maxItems items for the playout at playoutIndex.
// A non-repeating playout may return fewer. On error no items are returned.
func Generate(ctx context.Context, doc *schedule.Document, playoutIndex int, resolver collection.Resolver, maxItems int, opts Options) ([]PlaylistItem, error) {
	if maxItems <= 0 {
		return nil, ErrInvalidMaxItems
	}

	g, err := NewGenerator(doc, playoutIndex, resolver, opts)
	if err != nil {
		return nil, err
	}

	return g.Extend(ctx, Target{MinItems: maxItems, MaxItems: maxItems})
}

// TotalDuration sums the durations of items
func TotalDuration(items []PlaylistItem) time.Duration {
	var total time.Duration
	for _, it := range items {
		total += it.Duration
	}
	return total
}
