package playout

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind classifies what an emitted item is for
type ItemKind string

const (
	KindContent  ItemKind = "content"
	KindPreRoll  ItemKind = "pre_roll"
	KindMidRoll  ItemKind = "mid_roll"
	KindPostRoll ItemKind = "post_roll"
	KindFiller   ItemKind = "filler"
	// KindOffline is dead air: a gap with no media behind it
	KindOffline ItemKind = "offline"
)

// OfflineTitle is the title given to dead-air items
const OfflineTitle = "Offline"

// PlaylistItem is one entry of a generated playlist. Items are immutable
// once emitted.
type PlaylistItem struct {
	MediaID    uuid.UUID     `json:"media_id"`
	Title      string        `json:"title"`
	Duration   time.Duration `json:"duration"`
	SourceKind string        `json:"source_kind,omitempty"`
	SourceURL  string        `json:"source_url,omitempty"`
	Kind       ItemKind      `json:"kind"`
	ContentKey string        `json:"content_key,omitempty"`

	// Start is the offset of the item from the channel epoch
	Start time.Duration `json:"start"`

	// Lap counts completed passes over a repeating playout
	Lap int `json:"lap"`

	// LapIndex is the position of the item within its lap
	LapIndex int `json:"lap_index"`

	// Trimmed marks items whose logical duration was cut short to land a
	// block on its target. Playback still starts at the beginning.
	Trimmed bool `json:"trimmed,omitempty"`
}

// End returns the offset from the epoch at which the item finishes
func (p PlaylistItem) End() time.Duration {
	return p.Start + p.Duration
}

// IsOffline reports whether the item is dead air
func (p PlaylistItem) IsOffline() bool {
	return p.Kind == KindOffline
}
