// Package collection resolves named catalog collections into ordered media
// lists for the playlist generator.
package collection

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// ErrCollectionNotFound is returned when no collection has the requested name
var ErrCollectionNotFound = errors.New("collection not found")

// IsCollectionNotFound checks if the error is a collection not found error
func IsCollectionNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}

// MediaItem is a collection member as seen by the scheduler
type MediaItem struct {
	ID         uuid.UUID     `json:"id"`
	Title      string        `json:"title"`
	Duration   time.Duration `json:"duration"`
	SourceKind string        `json:"source_kind"`
	SourceURL  string        `json:"source_url"`
}

// Resolver returns the members of a named collection.
//
// Chronological lists must be identical across calls. Shuffled lists must
// be a pure function of seed.
type Resolver interface {
	ResolveCollection(ctx context.Context, name string, order schedule.Order, seed int64) ([]MediaItem, error)
}

// Shuffle returns a seeded Fisher-Yates permutation of items. The input is
// not modified.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)
	// #nosec G404 -- deterministic scheduling order, not security sensitive
	rng := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Arrange applies order to a chronological member list
func Arrange(items []MediaItem, order schedule.Order, seed int64) []MediaItem {
	if order == schedule.OrderShuffle {
		return Shuffle(items, seed)
	}
	out := make([]MediaItem, len(items))
	copy(out, items)
	return out
}

// PassSeed derives the shuffle seed for one pass over a collection so that
// every pass has its own permutation while staying reproducible.
func PassSeed(seed int64, name string, pass int) int64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatInt(seed, 10))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(name)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(pass))
	return int64(d.Sum64() >> 1)
}
