package playout

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

const day = 24 * time.Hour

// fillToleranceDivisor sets how far a DurationFill block may miss its
// target: a tenth of the target either way
const fillToleranceDivisor = 10

func (g *Generator) exec(ctx context.Context, seqKey string, d schedule.Directive) error {
	switch d.Kind {
	case schedule.DirectiveAllOf:
		return g.execAllOf(ctx, seqKey, d)
	case schedule.DirectiveDurationFill:
		return g.execDurationFill(ctx, seqKey, d)
	case schedule.DirectiveSequenceRef:
		return g.push(d.SequenceKey)
	case schedule.DirectiveRollToggle:
		g.toggleRoll(d.Roll)
		return nil
	case schedule.DirectivePadToNext:
		next := ceilTo(g.elapsed, d.Duration)
		return g.fillGap(ctx, seqKey, d, next-g.elapsed)
	case schedule.DirectivePadUntil:
		return g.fillGap(ctx, seqKey, d, clockGap(g.elapsed, d.Clock))
	case schedule.DirectiveWaitUntil:
		g.emitOffline(clockGap(g.elapsed, d.Clock))
		return nil
	case schedule.DirectiveSkipItems:
		ref := g.doc.Content[d.ContentKey]
		g.cursors.For(ref.Collection).Advance(d.Count)
		return nil
	case schedule.DirectiveShuffleSequence:
		return g.execShuffle(ctx, d)
	default:
		return fmt.Errorf("unsupported directive %q in sequence %q", d.Kind, seqKey)
	}
}

func (g *Generator) toggleRoll(r *schedule.Roll) {
	var armed *schedule.Roll
	if r.Enabled {
		copied := *r
		armed = &copied
	}
	switch r.Kind {
	case schedule.RollPre:
		g.rolls.pre = armed
	case schedule.RollMid:
		g.rolls.mid = armed
	case schedule.RollPost:
		g.rolls.post = armed
	}
}

// playRoll expands an armed roll sequence. Rolls are suspended while a roll
// plays so roll sequences cannot trigger themselves.
func (g *Generator) playRoll(ctx context.Context, r *schedule.Roll, kind ItemKind) error {
	if r == nil {
		return nil
	}
	if kind == KindMidRoll && !r.Expression.Truthy() {
		return nil
	}

	savedRolls, savedKind, savedContent := g.rolls, g.rollKind, g.activeContent
	g.rolls = rollState{}
	g.rollKind = kind
	defer func() {
		g.rolls, g.rollKind, g.activeContent = savedRolls, savedKind, savedContent
	}()

	return g.run(ctx, r.SequenceKey)
}

func (g *Generator) execAllOf(ctx context.Context, seqKey string, d schedule.Directive) error {
	ref := g.doc.Content[d.ContentKey]
	list, err := g.list(ctx, ref, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return g.emptyCollection(seqKey, d, ref)
	}
	g.activeContent = d.ContentKey

	rolls := g.rolls
	if err := g.playRoll(ctx, rolls.pre, KindPreRoll); err != nil {
		return err
	}
	for i := range list {
		if i > 0 {
			if err := g.playRoll(ctx, rolls.mid, KindMidRoll); err != nil {
				return err
			}
		}
		m, ok, err := g.draw(ctx, ref)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		g.emitMedia(m, KindContent, d.ContentKey, d.CustomTitle, m.Duration)
	}
	return g.playRoll(ctx, rolls.post, KindPostRoll)
}

// execDurationFill draws until the block is within tolerance of its target.
// A candidate that would overshoot the window is trimmed to land on the
// target or discarded while attempts remain. Once discards run out the
// candidate is kept only if it lands closer to the target than the block
// already is, and the block ends either way.
func (g *Generator) execDurationFill(ctx context.Context, seqKey string, d schedule.Directive) error {
	ref := g.doc.Content[d.ContentKey]
	list, err := g.list(ctx, ref, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return g.emptyCollection(seqKey, d, ref)
	}
	g.activeContent = d.ContentKey

	target := d.Duration
	tolerance := target / fillToleranceDivisor
	discards := d.DiscardAttempts
	rolls := g.rolls

	var total time.Duration
	emitted := 0
	emit := func(m collection.MediaItem, dur time.Duration) error {
		if emitted == 0 {
			if err := g.playRoll(ctx, rolls.pre, KindPreRoll); err != nil {
				return err
			}
		} else if err := g.playRoll(ctx, rolls.mid, KindMidRoll); err != nil {
			return err
		}
		g.emitMedia(m, KindContent, d.ContentKey, "", dur)
		total += dur
		emitted++
		return nil
	}

	// Every member has a positive duration, so each kept draw moves total
	// forward and each rejected one spends a discard.
	for total < target-tolerance {
		m, ok, err := g.draw(ctx, ref)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		switch {
		case total+m.Duration <= target+tolerance:
			if err := emit(m, m.Duration); err != nil {
				return err
			}
		case d.Trim:
			if err := emit(m, target-total); err != nil {
				return err
			}
		case discards > 0:
			discards--
			g.log.Debug().
				Str("content", d.ContentKey).
				Dur("candidate", m.Duration).
				Int("discards_left", discards).
				Msg("Discarded fill candidate")
		default:
			if (total + m.Duration - target).Abs() < (total - target).Abs() {
				if err := emit(m, m.Duration); err != nil {
					return err
				}
			} else {
				g.log.Debug().
					Str("content", d.ContentKey).
					Dur("candidate", m.Duration).
					Dur("total", total).
					Msg("Fill block ends short of target")
			}
			if emitted == 0 {
				return nil
			}
			return g.playRoll(ctx, rolls.post, KindPostRoll)
		}
	}

	if emitted == 0 {
		return nil
	}
	return g.playRoll(ctx, rolls.post, KindPostRoll)
}

// fillGap covers exactly gap with filler drawn from the directive's content
// (or the active content). Any remainder that filler cannot cover is offline.
func (g *Generator) fillGap(ctx context.Context, seqKey string, d schedule.Directive, gap time.Duration) error {
	if gap <= 0 {
		return nil
	}

	key := d.ContentKey
	if key == "" {
		key = g.activeContent
	}
	if key == "" {
		g.emitOffline(gap)
		return nil
	}

	ref := g.doc.Content[key]
	list, err := g.list(ctx, ref, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		if err := g.emptyCollection(seqKey, d, ref); err != nil {
			return err
		}
		g.emitOffline(gap)
		return nil
	}

	remaining := gap
	discards := d.DiscardAttempts
	for remaining > 0 {
		m, ok, err := g.draw(ctx, ref)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if m.Duration <= remaining {
			g.emitMedia(m, KindFiller, key, "", m.Duration)
			remaining -= m.Duration
			continue
		}
		if d.Trim {
			g.emitMedia(m, KindFiller, key, "", remaining)
			remaining = 0
			break
		}
		if discards == 0 {
			break
		}
		discards--
	}

	g.emitOffline(remaining)
	return nil
}

// execShuffle expands a sequence, then replays its items in a seeded order
func (g *Generator) execShuffle(ctx context.Context, d schedule.Directive) error {
	var seed int64
	if d.Seed != nil {
		seed = *d.Seed
	} else {
		seed = g.rng.Int63()
	}

	savedSink, savedElapsed, savedIndex := g.sink, g.elapsed, g.lapIndex
	var buf []PlaylistItem
	g.sink = &buf
	err := g.run(ctx, d.SequenceKey)
	g.sink, g.elapsed, g.lapIndex = savedSink, savedElapsed, savedIndex
	if err != nil {
		return err
	}

	for _, item := range collection.Shuffle(buf, seed) {
		g.emit(item)
	}
	return nil
}

func (g *Generator) emptyCollection(seqKey string, d schedule.Directive, ref schedule.ContentRef) error {
	if g.opts.Strict {
		return &GenerationError{
			Kind:     ErrKindEmptyCollection,
			Key:      ref.Key,
			Sequence: seqKey,
			Line:     d.Line,
			Cause:    fmt.Errorf("collection %q has no schedulable items", ref.Collection),
		}
	}

	g.lapSkips++
	g.log.Warn().
		Str("sequence", seqKey).
		Str("directive", string(d.Kind)).
		Str("key", ref.Key).
		Str("collection", ref.Collection).
		Int("line", d.Line).
		Msg("Skipping block: collection is empty")
	return nil
}

// list returns the members of a collection for one pass, memoized for the
// current extension. Members without a positive duration are dropped.
func (g *Generator) list(ctx context.Context, ref schedule.ContentRef, pass int) ([]collection.MediaItem, error) {
	var seed int64
	if ref.Order == schedule.OrderShuffle {
		seed = collection.PassSeed(g.seed, ref.Collection, pass)
	} else {
		pass = 0
	}

	key := fmt.Sprintf("%s\x00%s\x00%d", ref.Collection, ref.Order, pass)
	if items, ok := g.members[key]; ok {
		return items, nil
	}

	items, err := g.resolver.ResolveCollection(ctx, ref.Collection, ref.Order, seed)
	if err != nil && !collection.IsCollectionNotFound(err) {
		return nil, fmt.Errorf("failed to resolve collection %q: %w", ref.Collection, err)
	}

	usable := make([]collection.MediaItem, 0, len(items))
	for _, m := range items {
		if m.Duration > 0 {
			usable = append(usable, m)
		}
	}
	g.members[key] = usable
	return usable, nil
}

// draw returns the member under the collection's cursor and advances it
func (g *Generator) draw(ctx context.Context, ref schedule.ContentRef) (collection.MediaItem, bool, error) {
	base, err := g.list(ctx, ref, 0)
	if err != nil || len(base) == 0 {
		return collection.MediaItem{}, false, err
	}

	cur := g.cursors.For(ref.Collection)
	n := len(base)
	items := base
	if pass := cur.Pass(n); pass > 0 && ref.Order == schedule.OrderShuffle {
		if items, err = g.list(ctx, ref, pass); err != nil {
			return collection.MediaItem{}, false, err
		}
		if len(items) != n {
			items = base
		}
	}

	m := items[cur.Index(n)]
	cur.Advance(1)
	return m, true, nil
}

func ceilTo(elapsed, boundary time.Duration) time.Duration {
	if boundary <= 0 {
		return elapsed
	}
	rem := elapsed % boundary
	if rem == 0 {
		return elapsed
	}
	return elapsed + boundary - rem
}

// clockGap returns the time from elapsed to the next occurrence of clock,
// measured as an offset from midnight UTC of the epoch day
func clockGap(elapsed, clock time.Duration) time.Duration {
	return ((clock-elapsed%day)%day + day) % day
}
