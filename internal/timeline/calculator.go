// Package timeline maps wall-clock time onto a generated playlist, creating
// the illusion of a continuously broadcasting television channel.
package timeline

import (
	"sort"
	"time"

	"github.com/stwalsh4118/airwave/internal/playout"
)

// CalculatePosition returns what is on air at instant for a channel whose
// schedule started at epoch. It is a pure function of its inputs, safe to
// call concurrently on a shared snapshot.
//
// Returns:
//   - Position: the item on air and the offset into it
//   - error: ErrChannelNotStarted, ErrEmptyPlaylist, ErrOutsideWindow,
//     ErrPlaylistFinished, or a *CoverageError when the snapshot must be
//     extended first
func CalculatePosition(epoch, instant time.Time, pl *Playlist) (*Position, error) {
	elapsed := instant.Sub(epoch)
	if elapsed < 0 {
		return nil, ErrChannelNotStarted
	}
	if pl == nil || len(pl.Items) == 0 {
		return nil, ErrEmptyPlaylist
	}

	covered := pl.Covered()
	if covered <= 0 {
		return nil, ErrEmptyPlaylist
	}
	if elapsed < pl.Start() {
		return nil, ErrOutsideWindow
	}
	if elapsed >= covered {
		if pl.Complete {
			return nil, ErrPlaylistFinished
		}
		return nil, &CoverageError{Need: elapsed, Covered: covered}
	}

	at := elapsed
	idx := find(pl.Items, at)
	item := pl.Items[idx]
	offset := at - item.Start
	startedAt := instant.Add(-offset)

	pos := &Position{
		Item:      item,
		Index:     idx,
		Lap:       item.Lap,
		LapIndex:  item.LapIndex,
		Offset:    offset,
		StartedAt: startedAt,
		EndsAt:    startedAt.Add(item.Duration),
		State:     StatePlaying,
	}
	if item.IsOffline() {
		pos.State = StateOffline
	}
	return pos, nil
}

// find returns the index of the item whose span contains at
func find(items []playout.PlaylistItem, at time.Duration) int {
	i := sort.Search(len(items), func(i int) bool {
		return items[i].End() > at
	})
	if i == len(items) {
		return len(items) - 1
	}
	return i
}

// Upcoming returns up to n slots following the item at from, stopping at
// the end of the snapshot. from is located by its schedule offset, so it may
// come from an earlier snapshot of the same timeline.
func Upcoming(pl *Playlist, from *Position, n int) []Slot {
	if pl == nil || from == nil || n <= 0 || len(pl.Items) == 0 {
		return nil
	}

	idx := find(pl.Items, from.Item.Start)
	if pl.Items[idx].Start != from.Item.Start {
		return nil
	}

	slots := make([]Slot, 0, n)
	at := from.EndsAt
	for idx++; idx < len(pl.Items) && len(slots) < n; idx++ {
		item := pl.Items[idx]
		slots = append(slots, Slot{Item: item, StartsAt: at, EndsAt: at.Add(item.Duration)})
		at = at.Add(item.Duration)
	}
	return slots
}
