package collection

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// StoreResolver resolves collections from the catalog database
type StoreResolver struct {
	repos *db.Repositories
}

// NewStoreResolver creates a resolver backed by the catalog repositories
func NewStoreResolver(repos *db.Repositories) *StoreResolver {
	return &StoreResolver{repos: repos}
}

// ResolveCollection implements Resolver. Members without a positive duration
// are skipped because they cannot be scheduled.
func (r *StoreResolver) ResolveCollection(ctx context.Context, name string, order schedule.Order, seed int64) ([]MediaItem, error) {
	col, err := r.repos.Collections.GetByName(ctx, name)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
		}
		return nil, fmt.Errorf("failed to load collection %q: %w", name, err)
	}

	rows, err := r.repos.Collections.GetItemsWithMedia(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of %q: %w", name, err)
	}

	items := make([]MediaItem, 0, len(rows))
	for _, row := range rows {
		if row.Media == nil || row.Media.Duration <= 0 {
			continue
		}
		items = append(items, MediaItem{
			ID:         row.Media.ID,
			Title:      row.Media.Title,
			Duration:   row.Media.Length(),
			SourceKind: string(row.Media.SourceKind),
			SourceURL:  row.Media.SourceURL,
		})
	}

	return Arrange(items, order, seed), nil
}
