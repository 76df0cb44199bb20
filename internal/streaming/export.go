package streaming

import (
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/streaming/playlist"
	"github.com/stwalsh4118/airwave/internal/timeline"
)

// EncodeUpcoming renders the item on air and the slots after it as an HLS
// media playlist. Offline gaps have no media and are left out; the entry
// after a gap is flagged as a discontinuity. closed marks a channel that
// goes off air after the last slot.
func EncodeUpcoming(pos *timeline.Position, slots []timeline.Slot, closed bool) ([]byte, error) {
	airings := make([]timeline.Slot, 0, len(slots)+1)
	if pos != nil {
		airings = append(airings, timeline.Slot{Item: pos.Item, StartsAt: pos.StartedAt, EndsAt: pos.EndsAt})
	}
	airings = append(airings, slots...)

	var sequence uint64
	if pos != nil && pos.Index > 0 {
		sequence = uint64(pos.Index)
	}

	entries := make([]playlist.Entry, 0, len(airings))
	gap := false
	for _, a := range airings {
		if a.Item.IsOffline() || a.Item.SourceURL == "" || a.Item.Duration <= 0 {
			gap = true
			continue
		}
		entries = append(entries, playlist.Entry{
			URI:           a.Item.SourceURL,
			Title:         entryTitle(a.Item),
			Duration:      a.Item.Duration,
			StartsAt:      a.StartsAt,
			Discontinuity: gap || len(entries) > 0,
		})
		gap = false
	}

	return playlist.Encode(entries, sequence, closed)
}

func entryTitle(item playout.PlaylistItem) string {
	if item.Kind == playout.KindContent || item.Kind == "" {
		return item.Title
	}
	return item.Title + " (" + string(item.Kind) + ")"
}
