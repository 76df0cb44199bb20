// Package playout expands a schedule playout into a flat, timed playlist.
//
// Generation is resumable: a Generator keeps its walk state between calls
// to Extend, so a repeating playout can be materialized incrementally and
// every extension continues exactly where the previous one stopped.
package playout

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// DefaultMaxDepth bounds nested sequence expansion
const DefaultMaxDepth = 50

// SeedMode selects how shuffle seeds are chosen
type SeedMode int

const (
	// SeedFixed derives every shuffle from Options.Seed, so output is reproducible
	SeedFixed SeedMode = iota
	// SeedRandom draws a fresh seed for each generator
	SeedRandom
)

// String returns the string representation of SeedMode
func (m SeedMode) String() string {
	if m == SeedRandom {
		return "random"
	}
	return "fixed"
}

// ParseSeedMode converts a configuration value into a SeedMode
func ParseSeedMode(s string) (SeedMode, error) {
	switch s {
	case "", "fixed":
		return SeedFixed, nil
	case "random":
		return SeedRandom, nil
	default:
		return SeedFixed, fmt.Errorf("unknown seed mode %q (want fixed or random)", s)
	}
}

// Options tunes generation
type Options struct {
	SeedMode SeedMode
	Seed     int64

	// MaxDepth is the nested sequence ceiling (DefaultMaxDepth when zero)
	MaxDepth int

	// Strict fails generation on empty collections instead of skipping the block
	Strict bool
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Target describes how far one call to Extend should go. Extend returns once
// every requirement is met, the item cap is reached, or the playout ends.
type Target struct {
	// MinItems is the number of items this call must return
	MinItems int
	// Cover is the schedule offset the produced items must reach
	Cover time.Duration
	// Since drops items ending at or before this offset instead of returning
	// them, so a late start walks past old airings without holding them
	Since time.Duration
	// MaxItems caps the items this call returns (0 means no cap)
	MaxItems int
}

type frame struct {
	key   string
	items []schedule.Directive
	pc    int
}

type rollState struct {
	pre  *schedule.Roll
	mid  *schedule.Roll
	post *schedule.Roll
}

// Generator walks one playout of a schedule document
type Generator struct {
	doc      *schedule.Document
	playout  schedule.Playout
	resolver collection.Resolver
	opts     Options
	seed     int64
	rng      *rand.Rand
	log      zerolog.Logger

	stack         []frame
	rolls         rollState
	rollKind      ItemKind
	activeContent string
	cursors       collection.Cursors
	members       map[string][]collection.MediaItem

	elapsed  time.Duration
	lap      int
	lapIndex int
	// lapSkips counts blocks skipped this lap for an empty collection
	lapSkips int

	pending []PlaylistItem
	sink    *[]PlaylistItem

	produced int
	covered  time.Duration
	done     bool
	err      error
}

// NewGenerator prepares a generator for the playout at playoutIndex. Every
// reference reachable from the playout is checked up front so a bad document
// fails before any item is produced.
func NewGenerator(doc *schedule.Document, playoutIndex int, resolver collection.Resolver, opts Options) (*Generator, error) {
	p, err := doc.Playout(playoutIndex)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(doc, p.Sequence); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	seed := opts.Seed
	if opts.SeedMode == SeedRandom {
		seed = time.Now().UnixNano()
	}

	g := &Generator{
		doc:      doc,
		playout:  p,
		resolver: resolver,
		opts:     opts,
		seed:     seed,
		log:      logger.For("playout").With().Str("playout", p.Sequence).Logger(),
		cursors:  collection.Cursors{},
	}
	// #nosec G404 -- schedule shuffling, not security sensitive
	g.rng = rand.New(rand.NewSource(seed))
	g.sink = &g.pending

	if err := g.push(p.Sequence); err != nil {
		return nil, err
	}
	return g, nil
}

// Seed returns the seed driving this generator's shuffles
func (g *Generator) Seed() int64 {
	return g.seed
}

// Repeat reports whether the playout wraps at the end of its sequence
func (g *Generator) Repeat() bool {
	return g.playout.Repeat
}

// Produced returns the number of items generated so far, including any
// dropped by Target.Since
func (g *Generator) Produced() int {
	return g.produced
}

// Done reports whether the playout has been fully produced: a non-repeating
// playout reached its end, or a repeating one ran a lap that emitted nothing
func (g *Generator) Done() bool {
	return g.done && len(g.pending) == 0
}

// Cursors returns a copy of the collection cursors
func (g *Generator) Cursors() []collection.Cursor {
	return g.cursors.Snapshot()
}

// Extend appends items to the playlist until t is satisfied and returns only
// the new items. After an error the generator is unusable.
func (g *Generator) Extend(ctx context.Context, t Target) ([]PlaylistItem, error) {
	if g.err != nil {
		return nil, g.err
	}

	// Membership is re-read once per extension so catalog edits are picked up.
	g.members = make(map[string][]collection.MediaItem)

	var out []PlaylistItem
	for {
		for len(g.pending) > 0 && !g.satisfied(t, len(out)) && !capped(t, len(out)) {
			item := g.pending[0]
			g.pending = g.pending[1:]
			g.produced++
			g.covered = item.End()
			if item.End() > t.Since {
				out = append(out, item)
			}
		}
		if len(g.pending) == 0 {
			g.pending = nil
		}

		if g.satisfied(t, len(out)) || capped(t, len(out)) || g.Done() {
			return out, nil
		}

		if err := g.step(ctx); err != nil {
			g.err = err
			return nil, err
		}
	}
}

func (g *Generator) satisfied(t Target, n int) bool {
	return n >= t.MinItems && g.covered >= t.Cover
}

func capped(t Target, n int) bool {
	return t.MaxItems > 0 && n >= t.MaxItems
}

// step executes the next directive of the innermost frame
func (g *Generator) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(g.stack) == 0 {
		return g.endOfLap()
	}

	top := &g.stack[len(g.stack)-1]
	if top.pc >= len(top.items) {
		g.stack = g.stack[:len(g.stack)-1]
		return nil
	}

	d := top.items[top.pc]
	top.pc++
	return g.exec(ctx, top.key, d)
}

func (g *Generator) endOfLap() error {
	if g.lapIndex == 0 {
		if g.lap == 0 || g.lapSkips > 0 {
			return &GenerationError{Kind: ErrKindEmptyPlayout, Key: g.playout.Sequence}
		}
		// Nothing was skipped, so every later lap would repeat this one and
		// emit nothing: the playout has aired all it ever will.
		g.log.Warn().
			Int("lap", g.lap).
			Dur("elapsed", g.elapsed).
			Msg("Repeating playout stopped producing items")
		g.done = true
		return nil
	}

	if !g.playout.Repeat {
		g.done = true
		return nil
	}

	g.log.Debug().
		Int("lap", g.lap).
		Int("items", g.lapIndex).
		Dur("elapsed", g.elapsed).
		Msg("Playout lap complete")

	// Elapsed time and collection cursors carry over; directive state does not.
	g.lap++
	g.lapIndex = 0
	g.lapSkips = 0
	g.rolls = rollState{}
	g.activeContent = ""
	return g.push(g.playout.Sequence)
}

func (g *Generator) push(key string) error {
	seq, ok := g.doc.Sequences[key]
	if !ok {
		return &GenerationError{Kind: ErrKindUnknownReference, Key: key}
	}
	if len(g.stack) >= g.opts.MaxDepth {
		return &GenerationError{
			Kind:  ErrKindRecursionTooDeep,
			Key:   key,
			Cause: fmt.Errorf("nesting exceeds %d levels", g.opts.MaxDepth),
		}
	}
	g.stack = append(g.stack, frame{key: key, items: seq.Items})
	return nil
}

// run expands a sequence to completion before returning
func (g *Generator) run(ctx context.Context, key string) error {
	base := len(g.stack)
	if err := g.push(key); err != nil {
		return err
	}
	for len(g.stack) > base {
		if err := g.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// emit stamps an item with its schedule position and queues it
func (g *Generator) emit(item PlaylistItem) {
	if g.rollKind != "" && item.Kind == KindContent {
		item.Kind = g.rollKind
	}
	item.Start = g.elapsed
	item.Lap = g.lap
	item.LapIndex = g.lapIndex

	g.lapIndex++
	g.elapsed += item.Duration
	*g.sink = append(*g.sink, item)
}

func (g *Generator) emitOffline(gap time.Duration) {
	if gap <= 0 {
		return
	}
	g.emit(PlaylistItem{Title: OfflineTitle, Duration: gap, Kind: KindOffline})
}

func (g *Generator) emitMedia(m collection.MediaItem, kind ItemKind, contentKey, title string, duration time.Duration) {
	if title == "" {
		title = m.Title
	}
	g.emit(PlaylistItem{
		MediaID:    m.ID,
		Title:      title,
		Duration:   duration,
		SourceKind: m.SourceKind,
		SourceURL:  m.SourceURL,
		Kind:       kind,
		ContentKey: contentKey,
		Trimmed:    duration < m.Duration,
	})
}

// checkReferences verifies every key reachable from root resolves
func checkReferences(doc *schedule.Document, root string) error {
	seen := make(map[string]bool)
	var visit func(key, from string, line int) error
	visit = func(key, from string, line int) error {
		if seen[key] {
			return nil
		}
		seq, ok := doc.Sequences[key]
		if !ok {
			return &GenerationError{Kind: ErrKindUnknownReference, Key: key, Sequence: from, Line: line}
		}
		seen[key] = true

		for _, d := range seq.Items {
			if d.ContentKey != "" {
				if _, ok := doc.Content[d.ContentKey]; !ok {
					return &GenerationError{Kind: ErrKindUnknownReference, Key: d.ContentKey, Sequence: key, Line: d.Line}
				}
			}
			if ref := d.ReferencedSequence(); ref != "" {
				if err := visit(ref, key, d.Line); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return visit(root, "", 0)
}
