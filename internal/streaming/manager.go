package streaming

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/metrics"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/schedule"
	"github.com/stwalsh4118/airwave/internal/streaming/playlist"
	"github.com/stwalsh4118/airwave/internal/timeline"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultLookahead is how far past now a snapshot is kept generated
	DefaultLookahead = 6 * time.Hour
	// DefaultHistory is how far behind now a snapshot keeps aired items
	DefaultHistory = 48 * time.Hour
	// DefaultHorizon is how far past now a position may be asked for
	DefaultHorizon = 7 * 24 * time.Hour
	// DefaultMaxItems caps the items one snapshot holds
	DefaultMaxItems = 100000
	// DefaultExportCount is the number of airings written to upcoming.m3u8
	DefaultExportCount = 24

	// maxExtendAttempts bounds extend-and-retry loops for a single query
	maxExtendAttempts = 3

	upcomingFileName = "upcoming.m3u8"
)

// Options configures the session manager
type Options struct {
	// ScheduleDir resolves relative channel schedule paths
	ScheduleDir string

	Lookahead time.Duration
	History   time.Duration
	Horizon   time.Duration
	MaxItems  int
	MaxDepth  int
	Strict    bool
	SeedMode  playout.SeedMode

	// Watch reloads sessions when any of their schedule files change
	Watch   bool
	Watcher WatcherOptions

	// RefreshSpec is a cron spec for background extension ("" disables)
	RefreshSpec string

	// ExportDir receives <channel_id>/upcoming.m3u8 on every refresh ("" disables)
	ExportDir   string
	ExportCount int
}

func (o Options) withDefaults() Options {
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.History <= 0 {
		o.History = DefaultHistory
	}
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.ExportCount <= 0 {
		o.ExportCount = DefaultExportCount
	}
	return o
}

// Manager runs one timeline session per channel. Every viewer of a channel
// shares its session, so each channel is generated once no matter how many
// people are watching.
type Manager struct {
	resolver collection.Resolver
	opts     Options
	sessions *registry
	group    singleflight.Group
	watcher  *ScheduleWatcher
	cron     *cron.Cron
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewManager creates a session manager generating from resolver
func NewManager(resolver collection.Resolver, opts Options) (*Manager, error) {
	if resolver == nil {
		return nil, fmt.Errorf("collection resolver cannot be nil")
	}

	m := &Manager{
		resolver: resolver,
		opts:     opts.withDefaults(),
		sessions: newRegistry(),
		now:      time.Now,
		log:      logger.For("streaming"),
	}

	if m.opts.RefreshSpec != "" {
		m.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := m.cron.AddFunc(m.opts.RefreshSpec, m.refreshAll); err != nil {
			return nil, fmt.Errorf("invalid refresh spec %q: %w", m.opts.RefreshSpec, err)
		}
	}

	if m.opts.Watch {
		w, err := NewScheduleWatcher(m.onScheduleChange, m.opts.Watcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create schedule watcher: %w", err)
		}
		m.watcher = w
	}

	return m, nil
}

// Open starts the background refresh and the schedule watcher
func (m *Manager) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.started {
		return nil
	}
	m.started = true

	if m.watcher != nil {
		if err := m.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start schedule watcher: %w", err)
		}
	}
	if m.cron != nil {
		m.cron.Start()
	}

	m.log.Info().
		Dur("lookahead", m.opts.Lookahead).
		Dur("history", m.opts.History).
		Dur("horizon", m.opts.Horizon).
		Int("max_items", m.opts.MaxItems).
		Str("refresh_spec", m.opts.RefreshSpec).
		Bool("watch", m.watcher != nil).
		Str("seed_mode", m.opts.SeedMode.String()).
		Msg("Session manager started")

	return nil
}

// Close stops background work and every session
func (m *Manager) Close() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	m.log.Info().Msg("Stopping session manager...")

	if m.cron != nil && started {
		<-m.cron.Stop().Done()
	}
	if m.watcher != nil {
		if err := m.watcher.Stop(); err != nil {
			m.log.Warn().Err(err).Msg("Failed to stop schedule watcher")
		}
	}

	sessions := m.sessions.List()
	for _, s := range sessions {
		if _, ok := m.sessions.Delete(s.ChannelID); ok {
			m.stopSession(s)
		}
	}

	m.log.Info().
		Int("stopped_sessions", len(sessions)).
		Msg("Session manager stopped")
}

func (m *Manager) isStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

// Start launches the session for ch and returns it. Starting a channel that
// already runs returns the running session.
func (m *Manager) Start(ctx context.Context, ch *models.Channel) (*Session, error) {
	if ch == nil {
		return nil, fmt.Errorf("channel cannot be nil")
	}
	if m.isStopped() {
		return nil, ErrManagerStopped
	}
	if !ch.Enabled {
		return nil, ErrChannelDisabled
	}
	if s, ok := m.sessions.Get(ch.ID); ok {
		return s, nil
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ChannelID:    ch.ID,
		Name:         ch.Name,
		Epoch:        ch.Epoch(),
		SchedulePath: ch.SchedulePath,
		PlayoutIndex: ch.PlayoutIndex,
		StartedAt:    m.now(),
		ctx:          sessionCtx,
		cancel:       cancel,
		state:        StateStarting,
	}

	doc, gen, pl, err := m.generate(ctx, s, "start")
	if err != nil {
		cancel()
		return nil, err
	}
	s.doc, s.gen = doc, gen
	s.snapshot.Store(pl)
	s.setState(StateActive)

	registered, added := m.sessions.PutIfAbsent(s)
	if !added {
		cancel()
		return registered, nil
	}

	metrics.ActiveSessions.Inc()
	metrics.SetViewers(ch.ID.String(), 0)
	metrics.SnapshotItems.WithLabelValues(ch.ID.String()).Set(float64(len(pl.Items)))
	m.watch(s, doc)
	m.export(s)

	m.log.Info().
		Str("channel_id", ch.ID.String()).
		Str("schedule", ch.SchedulePath).
		Int("playout_index", ch.PlayoutIndex).
		Time("epoch", s.Epoch).
		Int("items", len(pl.Items)).
		Dur("covered", pl.Covered()).
		Msg("Channel session started")

	return s, nil
}

// Stop ends a channel's session and cancels any generation in flight
func (m *Manager) Stop(channelID uuid.UUID) error {
	s, ok := m.sessions.Delete(channelID)
	if !ok {
		return ErrSessionNotFound
	}
	m.stopSession(s)
	return nil
}

func (m *Manager) stopSession(s *Session) {
	s.cancel()
	s.setState(StateStopped)
	if m.watcher != nil {
		m.watcher.Unwatch(s.ChannelID)
	}
	m.group.Forget(s.ChannelID.String())

	metrics.ActiveSessions.Dec()
	metrics.ForgetChannel(s.ChannelID.String())

	m.log.Info().
		Str("channel_id", s.ChannelID.String()).
		Msg("Channel session stopped")
}

// Session returns the running session for a channel
func (m *Manager) Session(channelID uuid.UUID) (*Session, bool) {
	return m.sessions.Get(channelID)
}

// Sessions returns every running session ordered by channel name
func (m *Manager) Sessions() []*Session {
	return m.sessions.List()
}

// Join registers a viewer and returns the channel's viewer count
func (m *Manager) Join(channelID uuid.UUID) (int, error) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	n := s.join()
	metrics.SetViewers(channelID.String(), n)
	return n, nil
}

// Leave unregisters a viewer and returns the channel's viewer count
func (m *Manager) Leave(channelID uuid.UUID) (int, error) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	n := s.leave()
	metrics.SetViewers(channelID.String(), n)
	return n, nil
}

// CurrentPosition returns what a channel is airing at instant, extending its
// snapshot first when it does not reach that far
func (m *Manager) CurrentPosition(ctx context.Context, channelID uuid.UUID, instant time.Time) (*timeline.Position, error) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.position(ctx, s, instant)
}

func (m *Manager) position(ctx context.Context, s *Session, instant time.Time) (*timeline.Position, error) {
	if err := m.checkInstant(s, instant); err != nil {
		metrics.RecordPositionQuery("rejected")
		return nil, err
	}

	extended := false
	for attempt := 0; attempt < maxExtendAttempts; attempt++ {
		pl := s.snapshot.Load()
		pos, err := timeline.CalculatePosition(s.Epoch, instant, pl)

		var coverage *timeline.CoverageError
		switch {
		case err == nil:
			if extended {
				metrics.RecordPositionQuery("extended")
			} else {
				metrics.RecordPositionQuery("hit")
			}
			return pos, nil

		case timeline.IsFinished(err):
			metrics.RecordPositionQuery("finished")
			return nil, err

		case errors.As(err, &coverage):
			if _, xerr := m.extend(ctx, s, coverage.Need+m.opts.Lookahead, 0, "extend"); xerr != nil {
				metrics.RecordPositionQuery("error")
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, xerr
			}
			extended = true

		default:
			metrics.RecordPositionQuery("error")
			return nil, err
		}
	}

	metrics.RecordPositionQuery("error")
	return nil, fmt.Errorf("snapshot still short after %d extensions: %w", maxExtendAttempts, timeline.ErrPlaylistTooShort)
}

// checkInstant bounds position queries to the window a session keeps:
// History behind now and Horizon ahead of it. Instants before the epoch are
// left to the calculator, which reports the channel as not started.
func (m *Manager) checkInstant(s *Session, instant time.Time) error {
	if instant.Before(s.Epoch) {
		return nil
	}
	now := m.now()
	if instant.Before(now.Add(-m.opts.History)) || instant.After(now.Add(m.opts.Horizon)) {
		return fmt.Errorf("%w: %s is outside [now-%s, now+%s]",
			ErrInstantOutOfRange, instant.UTC().Format(time.RFC3339), m.opts.History, m.opts.Horizon)
	}
	return nil
}

// Upcoming returns the position at instant and up to n airings after it
func (m *Manager) Upcoming(ctx context.Context, channelID uuid.UUID, instant time.Time, n int) (*timeline.Position, []timeline.Slot, error) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	pos, err := m.position(ctx, s, instant)
	if err != nil {
		return nil, nil, err
	}

	pl := s.snapshot.Load()
	if ahead := aheadOf(pl, pos); ahead < n && !pl.Complete {
		if next, err := m.extend(ctx, s, 0, n-ahead, "extend"); err == nil {
			pl = next
		} else if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
	}

	return pos, timeline.Upcoming(pl, pos, n), nil
}

// aheadOf counts the snapshot items after the one on air at pos
func aheadOf(pl *timeline.Playlist, pos *timeline.Position) int {
	ahead := 0
	for i := len(pl.Items) - 1; i >= 0 && pl.Items[i].Start > pos.Item.Start; i-- {
		ahead++
	}
	return ahead
}

// UpcomingPlaylist encodes the airing at instant and the n after it as HLS
func (m *Manager) UpcomingPlaylist(ctx context.Context, channelID uuid.UUID, instant time.Time, n int) ([]byte, error) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	pos, slots, err := m.Upcoming(ctx, channelID, instant, n)
	if err != nil {
		return nil, err
	}
	pl := s.Snapshot()
	closed := pl.Complete && !pl.Repeat && len(slots) < n
	return EncodeUpcoming(pos, slots, closed)
}

// Invalidate reparses the channel's schedule and regenerates its timeline
// from the epoch. On failure the previous snapshot stays published.
func (m *Manager) Invalidate(ctx context.Context, channelID uuid.UUID) error {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return ErrSessionNotFound
	}

	doc, gen, pl, err := m.generate(ctx, s, "invalidate")
	if err != nil {
		var serr *SessionError
		if errors.As(err, &serr) && serr.Type != ErrorTypeCanceled {
			s.recordFailure(serr, m.now())
		}
		m.log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Regeneration failed, keeping last-known-good snapshot")
		return err
	}

	s.genMu.Lock()
	s.doc, s.gen = doc, gen
	s.snapshot.Store(pl)
	s.genMu.Unlock()
	s.recordSuccess()

	metrics.SnapshotItems.WithLabelValues(channelID.String()).Set(float64(len(pl.Items)))
	m.watch(s, doc)
	m.export(s)

	m.log.Info().
		Str("channel_id", channelID.String()).
		Int("items", len(pl.Items)).
		Msg("Channel timeline regenerated")

	return nil
}

// generate builds a fresh document and generator for s and produces a
// snapshot covering now plus the lookahead
func (m *Manager) generate(ctx context.Context, s *Session, reason string) (*schedule.Document, *playout.Generator, *timeline.Playlist, error) {
	genCtx, cancel := withRequest(s.ctx, ctx)
	defer cancel()

	start := time.Now()
	doc, err := schedule.Parse(s.SchedulePath, m.opts.ScheduleDir)
	if err != nil {
		metrics.RecordGeneration(reason, time.Since(start), 0, err)
		return nil, nil, nil, ClassifyError(s.ChannelID, err)
	}

	gen, err := playout.NewGenerator(doc, s.PlayoutIndex, m.resolver, playout.Options{
		SeedMode: m.opts.SeedMode,
		Seed:     ChannelSeed(s.ChannelID),
		MaxDepth: m.opts.MaxDepth,
		Strict:   m.opts.Strict,
	})
	if err != nil {
		metrics.RecordGeneration(reason, time.Since(start), 0, err)
		return nil, nil, nil, ClassifyError(s.ChannelID, err)
	}

	now := m.now()
	items, err := gen.Extend(genCtx, playout.Target{
		MinItems: 1,
		Cover:    m.cover(s, now),
		Since:    m.since(s, now),
		MaxItems: m.opts.MaxItems,
	})
	metrics.RecordGeneration(reason, time.Since(start), len(items), err)
	if err != nil {
		return nil, nil, nil, ClassifyError(s.ChannelID, err)
	}

	return doc, gen, m.snapshotFrom(nil, items, gen), nil
}

// extend grows the session's snapshot to cover need and add at least more
// items, first pruning items that aired before the history window.
// Concurrent callers share one generation run.
func (m *Manager) extend(ctx context.Context, s *Session, need time.Duration, more int, reason string) (*timeline.Playlist, error) {
	ch := m.group.DoChan(s.ChannelID.String(), func() (any, error) {
		return m.extendLocked(s, need, more, reason)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*timeline.Playlist), nil
	}
}

func (m *Manager) extendLocked(s *Session, need time.Duration, more int, reason string) (*timeline.Playlist, error) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	cur := s.snapshot.Load()
	if (cur.Covered() >= need && more <= 0) || cur.Complete {
		return cur, nil
	}
	if err := s.ctx.Err(); err != nil {
		return nil, ErrSessionNotFound
	}

	since := m.since(s, m.now())
	kept := cur.Prune(since)
	budget := m.opts.MaxItems - len(kept.Items)
	if budget <= 0 {
		return nil, fmt.Errorf("window already holds %d items, cannot reach %s: %w",
			len(kept.Items), need, timeline.ErrPlaylistTooShort)
	}

	start := time.Now()
	items, err := s.gen.Extend(s.ctx, playout.Target{
		MinItems: more,
		Cover:    need,
		Since:    since,
		MaxItems: budget,
	})
	metrics.RecordGeneration(reason, time.Since(start), len(items), err)
	if err != nil {
		serr := ClassifyError(s.ChannelID, err)
		if serr.Type != ErrorTypeCanceled {
			s.recordFailure(serr, m.now())
		}
		m.log.Error().
			Err(err).
			Str("channel_id", s.ChannelID.String()).
			Str("error_type", serr.Type.String()).
			Dur("need", need).
			Msg("Failed to extend channel timeline")
		return nil, serr
	}

	next := m.snapshotFrom(kept, items, s.gen)
	s.snapshot.Store(next)
	metrics.SnapshotItems.WithLabelValues(s.ChannelID.String()).Set(float64(len(next.Items)))

	m.log.Debug().
		Str("channel_id", s.ChannelID.String()).
		Str("reason", reason).
		Int("added", len(items)).
		Int("pruned", len(cur.Items)-len(kept.Items)).
		Dur("window_start", next.Start()).
		Dur("covered", next.Covered()).
		Msg("Channel timeline extended")

	return next, nil
}

func (m *Manager) snapshotFrom(prev *timeline.Playlist, items []playout.PlaylistItem, gen *playout.Generator) *timeline.Playlist {
	next := prev.Append(items, m.now())
	next.Repeat = gen.Repeat()
	next.Complete = gen.Done()
	return next
}

// cover returns the schedule offset a snapshot must reach to serve now
// plus the lookahead
func (m *Manager) cover(s *Session, now time.Time) time.Duration {
	elapsed := now.Sub(s.Epoch)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed + m.opts.Lookahead
}

// since returns the schedule offset before which aired items are dropped
func (m *Manager) since(s *Session, now time.Time) time.Duration {
	since := now.Sub(s.Epoch) - m.opts.History
	if since < 0 {
		return 0
	}
	return since
}

// refreshAll keeps every snapshot a lookahead ahead of now
func (m *Manager) refreshAll() {
	for _, s := range m.sessions.List() {
		m.refresh(s)
	}
}

func (m *Manager) refresh(s *Session) {
	// A failed generator cannot resume; rebuild from the file instead.
	if s.LastError() != nil {
		_ = m.Invalidate(s.ctx, s.ChannelID)
		return
	}

	if _, err := m.extend(s.ctx, s, m.cover(s, m.now()), 0, "refresh"); err != nil {
		return
	}
	m.export(s)
}

func (m *Manager) onScheduleChange(channelID uuid.UUID) {
	s, ok := m.sessions.Get(channelID)
	if !ok {
		return
	}
	_ = m.Invalidate(s.ctx, channelID)
}

func (m *Manager) watch(s *Session, doc *schedule.Document) {
	if m.watcher == nil || len(doc.Sources) == 0 {
		return
	}
	if err := m.watcher.Watch(s.ChannelID, doc.Sources); err != nil {
		m.log.Warn().
			Err(err).
			Str("channel_id", s.ChannelID.String()).
			Msg("Failed to watch schedule files")
	}
}

// export writes the channel's upcoming airings to the export directory
func (m *Manager) export(s *Session) {
	if m.opts.ExportDir == "" {
		return
	}

	content, err := m.UpcomingPlaylist(s.ctx, s.ChannelID, m.now(), m.opts.ExportCount)
	if err != nil {
		m.log.Debug().
			Err(err).
			Str("channel_id", s.ChannelID.String()).
			Msg("Skipping upcoming playlist export")
		return
	}

	path := filepath.Join(m.opts.ExportDir, s.ChannelID.String(), upcomingFileName)
	if err := playlist.WriteFile(path, content); err != nil {
		m.log.Warn().
			Err(err).
			Str("channel_id", s.ChannelID.String()).
			Str("path", path).
			Msg("Failed to export upcoming playlist")
	}
}

// ChannelSeed derives a channel's fixed shuffle seed from its ID
func ChannelSeed(channelID uuid.UUID) int64 {
	return int64(xxhash.Sum64(channelID[:]) & math.MaxInt64)
}

// withRequest derives a context canceled by either the session or the caller
func withRequest(sessionCtx, reqCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(sessionCtx)
	stop := context.AfterFunc(reqCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
