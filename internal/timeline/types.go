package timeline

import (
	"sort"
	"time"

	"github.com/stwalsh4118/airwave/internal/playout"
)

// Playlist is an immutable snapshot of generated items for one channel.
// Item starts are offsets from the channel epoch. A long-running channel
// keeps only a window of its timeline, so the first item need not start at
// the epoch.
type Playlist struct {
	Items []playout.PlaylistItem `json:"items"`

	// Repeat mirrors the playout's repeat policy
	Repeat bool `json:"repeat"`

	// Complete is set once the playout has been fully generated; no item
	// follows the last one
	Complete bool `json:"complete"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Covered returns the schedule offset at which the last item ends
func (p *Playlist) Covered() time.Duration {
	if p == nil || len(p.Items) == 0 {
		return 0
	}
	return p.Items[len(p.Items)-1].End()
}

// Start returns the schedule offset of the earliest retained item
func (p *Playlist) Start() time.Duration {
	if p == nil || len(p.Items) == 0 {
		return 0
	}
	return p.Items[0].Start
}

// Append returns a new snapshot holding p's items followed by items. p is
// not modified, so readers holding it keep a consistent view.
func (p *Playlist) Append(items []playout.PlaylistItem, now time.Time) *Playlist {
	next := &Playlist{GeneratedAt: now}
	if p != nil {
		next.Repeat = p.Repeat
		next.Items = make([]playout.PlaylistItem, 0, len(p.Items)+len(items))
		next.Items = append(next.Items, p.Items...)
	}
	next.Items = append(next.Items, items...)
	return next
}

// Prune returns a snapshot without the items that end at or before since.
// The item on air at since is kept, so the window never opens a gap.
func (p *Playlist) Prune(since time.Duration) *Playlist {
	if p == nil {
		return nil
	}
	i := sort.Search(len(p.Items), func(i int) bool {
		return p.Items[i].End() > since
	})
	if i == 0 {
		return p
	}
	next := *p
	next.Items = append([]playout.PlaylistItem(nil), p.Items[i:]...)
	return &next
}

// State is the playback state of a channel at a given moment
type State string

const (
	// StateNotStarted indicates the instant is before the channel epoch
	StateNotStarted State = "not_started"

	// StatePlaying indicates a media item is on air
	StatePlaying State = "playing"

	// StateOffline indicates the schedule is in a dead-air gap
	StateOffline State = "offline"

	// StateFinished indicates a non-repeating playout has ended (off air)
	StateFinished State = "finished"

	// StateEmpty indicates the channel has nothing scheduled
	StateEmpty State = "empty"
)

// Position describes what a channel is playing at an instant
type Position struct {
	// Item is the playlist item on air
	Item playout.PlaylistItem `json:"item"`

	// Index is the item's index in the snapshot it was found in
	Index int `json:"index"`

	// Lap and LapIndex locate the item within the repeating playout
	Lap      int `json:"lap"`
	LapIndex int `json:"lap_index"`

	// Offset is how far into the item playback is
	Offset time.Duration `json:"offset"`

	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`

	State State `json:"state"`
}

// Remaining returns the time left in the current item
func (p *Position) Remaining() time.Duration {
	return p.Item.Duration - p.Offset
}

// Slot is a scheduled airing of a playlist item at wall-clock time
type Slot struct {
	Item     playout.PlaylistItem `json:"item"`
	StartsAt time.Time            `json:"starts_at"`
	EndsAt   time.Time            `json:"ends_at"`
}
