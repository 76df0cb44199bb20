package streaming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/schedule"
	"github.com/stwalsh4118/airwave/internal/timeline"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const loopSchedule = `
content:
  - key: c1
    collection: Clips
    order: chronological
sequence:
  - key: s1
    items:
      - all: c1
playout:
  - sequence: s1
    repeat: true
`

const onceSchedule = `
content:
  - key: c1
    collection: Clips
    order: chronological
sequence:
  - key: s1
    items:
      - all: c1
playout:
  - sequence: s1
`

// testClock is a settable clock shared by a manager and its test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testClips(n int) []collection.MediaItem {
	clips := make([]collection.MediaItem, n)
	for i := range clips {
		clips[i] = collection.MediaItem{
			ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("clip-%d", i))),
			Title:      fmt.Sprintf("clip-%d", i),
			Duration:   10 * time.Minute,
			SourceKind: string(models.SourceDirect),
			SourceURL:  fmt.Sprintf("https://cdn.example.com/clip-%d.mp4", i),
		}
	}
	return clips
}

func writeSchedule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestManager(t *testing.T, opts Options) (*Manager, *collection.StaticResolver, *testClock) {
	t.Helper()
	resolver := collection.NewStaticResolver(map[string][]collection.MediaItem{"Clips": testClips(3)})
	if opts.Lookahead == 0 {
		opts.Lookahead = 30 * time.Minute
	}
	m, err := NewManager(resolver, opts)
	require.NoError(t, err)

	clock := &testClock{now: testEpoch}
	m.now = clock.Now
	t.Cleanup(m.Close)
	return m, resolver, clock
}

func testChannel(schedulePath string) *models.Channel {
	ch := models.NewChannel("Test Channel", schedulePath, 0, testEpoch.Add(9*time.Hour))
	return ch
}

func TestManager_StartAndCurrentPosition(t *testing.T) {
	dir := t.TempDir()
	path := writeSchedule(t, dir, "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, testEpoch, s.Epoch)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 3, len(s.Snapshot().Items))
	assert.True(t, s.Snapshot().Repeat)

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(25*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "clip-2", pos.Item.Title)
	assert.Equal(t, 5*time.Minute, pos.Offset)
	assert.Equal(t, timeline.StatePlaying, pos.State)

	again, err := m.Start(context.Background(), ch)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Len(t, m.Sessions(), 1)
}

func TestManager_ExtendsOnDemand(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)
	before := s.Snapshot()

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(5*time.Hour+3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "clip-0", pos.Item.Title)
	assert.Equal(t, 30, pos.Index)
	assert.Equal(t, 10, pos.Lap)
	assert.Equal(t, 3*time.Minute, pos.Offset)

	after := s.Snapshot()
	assert.Greater(t, len(after.Items), len(before.Items))
	assert.GreaterOrEqual(t, after.Covered(), 5*time.Hour+30*time.Minute)
	// The earlier snapshot is never mutated
	assert.Len(t, before.Items, 3)
}

func TestManager_ConcurrentViewersShareOneTimeline(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	instant := testEpoch.Add(48*time.Hour + 17*time.Minute)
	const viewers = 32

	positions := make([]*timeline.Position, viewers)
	errs := make([]error, viewers)
	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.Join(ch.ID)
			positions[i], errs[i] = m.CurrentPosition(context.Background(), ch.ID, instant)
		}(i)
	}
	wg.Wait()

	for i := 0; i < viewers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, positions[0].Item, positions[i].Item)
		assert.Equal(t, positions[0].Offset, positions[i].Offset)
	}
	assert.Equal(t, "clip-1", positions[0].Item.Title)
	assert.Equal(t, 7*time.Minute, positions[0].Offset)

	s, ok := m.Session(ch.ID)
	require.True(t, ok)
	assert.Equal(t, viewers, s.Viewers())
}

func TestManager_PositionMatchesOneShotGeneration(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, resolver, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	doc, err := schedule.Parse(path, "")
	require.NoError(t, err)
	items, err := playout.Generate(context.Background(), doc, 0, resolver, 200, playout.Options{Seed: ChannelSeed(ch.ID)})
	require.NoError(t, err)
	full := &timeline.Playlist{Items: items, Repeat: true}

	for _, offset := range []time.Duration{0, 9 * time.Minute, 3 * time.Hour, 20*time.Hour + 59*time.Second} {
		want, err := timeline.CalculatePosition(testEpoch, testEpoch.Add(offset), full)
		require.NoError(t, err)
		got, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(offset))
		require.NoError(t, err)
		assert.Equal(t, want.Item, got.Item, "offset %s", offset)
		assert.Equal(t, want.Offset, got.Offset, "offset %s", offset)
	}
}

func TestManager_NonRepeatingChannelFinishes(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "once.yaml", onceSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(25*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "clip-2", pos.Item.Title)

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(2*time.Hour))
	assert.ErrorIs(t, err, timeline.ErrPlaylistFinished)
	assert.True(t, s.Snapshot().Complete)
	assert.Len(t, s.Snapshot().Items, 3)
}

func TestManager_StartErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeSchedule(t, dir, "loop.yaml", loopSchedule)
	broken := writeSchedule(t, dir, "broken.yaml", "content: [")
	dangling := writeSchedule(t, dir, "dangling.yaml", strings.ReplaceAll(loopSchedule, "all: c1", "all: ghost"))

	m, _, _ := newTestManager(t, Options{})

	t.Run("nil channel", func(t *testing.T) {
		_, err := m.Start(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("disabled channel", func(t *testing.T) {
		ch := testChannel(good)
		ch.Enabled = false
		_, err := m.Start(context.Background(), ch)
		assert.ErrorIs(t, err, ErrChannelDisabled)
	})

	t.Run("unparseable schedule", func(t *testing.T) {
		ch := testChannel(broken)
		_, err := m.Start(context.Background(), ch)
		require.Error(t, err)

		var serr *SessionError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, ErrorTypeSchedule, serr.Type)
		assert.True(t, schedule.IsParseError(err, schedule.ParseErrSyntax))
		_, ok := m.Session(ch.ID)
		assert.False(t, ok)
	})

	t.Run("unknown reference", func(t *testing.T) {
		ch := testChannel(dangling)
		_, err := m.Start(context.Background(), ch)
		require.Error(t, err)

		var serr *SessionError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, ErrorTypeGeneration, serr.Type)
		assert.True(t, playout.IsGenerationError(err, playout.ErrKindUnknownReference))
	})

	t.Run("missing playout", func(t *testing.T) {
		ch := testChannel(good)
		ch.PlayoutIndex = 4
		_, err := m.Start(context.Background(), ch)
		assert.ErrorIs(t, err, schedule.ErrPlayoutNotFound)
	})

	t.Run("stopped manager", func(t *testing.T) {
		m2, _, _ := newTestManager(t, Options{})
		m2.Close()
		_, err := m2.Start(context.Background(), testChannel(good))
		assert.ErrorIs(t, err, ErrManagerStopped)
	})
}

func TestManager_Stop(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	require.NoError(t, m.Stop(ch.ID))
	assert.Equal(t, StateStopped, s.State())
	assert.Error(t, s.ctx.Err())

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Stop(ch.ID), ErrSessionNotFound)
}

func TestManager_JoinLeave(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	n, err := m.Join(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = m.Join(ch.ID)
	assert.Equal(t, 2, n)

	n, _ = m.Leave(ch.ID)
	assert.Equal(t, 1, n)
	n, _ = m.Leave(ch.ID)
	assert.Equal(t, 0, n)
	n, _ = m.Leave(ch.ID)
	assert.Equal(t, 0, n)

	_, err = m.Join(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Leave(uuid.New())
	assert.True(t, IsSessionNotFound(err))
}

func TestManager_InvalidateReloadsSchedule(t *testing.T) {
	dir := t.TempDir()
	path := writeSchedule(t, dir, "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	writeSchedule(t, dir, "loop.yaml", strings.ReplaceAll(loopSchedule, "all: c1", "all: c1\n        custom_title: Marathon"))
	require.NoError(t, m.Invalidate(context.Background(), ch.ID))

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(12*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Marathon", pos.Item.Title)
	assert.Equal(t, StateActive, s.State())

	// A broken edit keeps the last good timeline on air
	good := s.Snapshot()
	writeSchedule(t, dir, "loop.yaml", "sequence: [")
	err = m.Invalidate(context.Background(), ch.ID)
	require.Error(t, err)
	assert.Equal(t, StateDegraded, s.State())
	require.NotNil(t, s.LastError())
	assert.Equal(t, ErrorTypeSchedule, s.LastError().Type)
	assert.Same(t, good, s.Snapshot())

	pos, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(12*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Marathon", pos.Item.Title)

	assert.ErrorIs(t, m.Invalidate(context.Background(), uuid.New()), ErrSessionNotFound)
}

func TestManager_ExtendFailureKeepsLastKnownGood(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, resolver, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, s.Snapshot().Covered())

	// The collection empties out, so the next lap cannot be generated
	resolver.Put("Clips", nil)

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(5*time.Hour+4*time.Minute))
	require.Error(t, err)
	assert.True(t, playout.IsGenerationError(err, playout.ErrKindEmptyPlayout))

	assert.Equal(t, StateDegraded, s.State())
	require.NotNil(t, s.LastError())
	assert.True(t, playout.IsGenerationError(s.LastError(), playout.ErrKindEmptyPlayout))
	assert.Len(t, s.Snapshot().Items, 3)

	// Instants the snapshot already covers are still served
	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(14*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "clip-1", pos.Item.Title)
}

const primeTimeSchedule = `
content:
  - key: c1
    collection: Clips
    order: chronological
sequence:
  - key: s1
    items:
      - all: c1
      - wait_until: "20:00:00"
playout:
  - sequence: s1
    repeat: true
`

func TestManager_WindowSlidesInsteadOfWrapping(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "prime.yaml", primeTimeSchedule)
	m, _, clock := newTestManager(t, Options{MaxItems: 8, History: time.Hour, Lookahead: time.Hour})

	day2 := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	clock.Set(day2)

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)
	require.LessOrEqual(t, len(s.Snapshot().Items), 8)

	pos, err := m.CurrentPosition(context.Background(), ch.ID, day2.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, timeline.StatePlaying, pos.State)
	assert.Equal(t, "clip-1", pos.Item.Title)
	assert.Equal(t, 2, pos.Lap)

	// Two days on, the old window has been dropped rather than replayed
	day4 := time.Date(2024, 1, 4, 20, 0, 0, 0, time.UTC)
	clock.Set(day4)

	pos, err = m.CurrentPosition(context.Background(), ch.ID, day4.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, timeline.StatePlaying, pos.State)
	assert.Equal(t, "clip-1", pos.Item.Title)
	assert.Equal(t, 4, pos.Lap)
	assert.Equal(t, time.Duration(0), pos.Offset)

	pl := s.Snapshot()
	assert.LessOrEqual(t, len(pl.Items), 8)
	assert.Greater(t, pl.Start(), 48*time.Hour)
	assert.Equal(t, StateActive, s.State())
}

func TestManager_RejectsInstantOutsideWindow(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, clock := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.AddDate(76, 0, 0))
	assert.ErrorIs(t, err, ErrInstantOutOfRange)
	assert.Len(t, s.Snapshot().Items, 3, "a rejected query generates nothing")

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(DefaultHorizon+time.Minute))
	assert.ErrorIs(t, err, ErrInstantOutOfRange)

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(-time.Minute))
	assert.ErrorIs(t, err, timeline.ErrChannelNotStarted)

	clock.Set(testEpoch.Add(72 * time.Hour))
	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInstantOutOfRange)

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "clip-0", pos.Item.Title)
}

func TestManager_RefreshPrunesAiredItems(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, clock := newTestManager(t, Options{History: time.Hour})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	clock.Set(testEpoch.Add(5 * time.Hour))
	m.refreshAll()

	pl := s.Snapshot()
	assert.Equal(t, 4*time.Hour, pl.Start())
	assert.Equal(t, 5*time.Hour+30*time.Minute, pl.Covered())
	assert.Len(t, pl.Items, 9)
	assert.Equal(t, 4*time.Hour, s.Info().WindowStart)

	pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(4*time.Hour+15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "clip-1", pos.Item.Title)

	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrInstantOutOfRange)
}

func TestManager_Upcoming(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	pos, slots, err := m.Upcoming(context.Background(), ch.ID, testEpoch.Add(15*time.Minute), 5)
	require.NoError(t, err)
	assert.Equal(t, "clip-1", pos.Item.Title)
	require.Len(t, slots, 5)
	assert.Equal(t, "clip-2", slots[0].Item.Title)
	assert.Equal(t, testEpoch.Add(20*time.Minute), slots[0].StartsAt)
	assert.Equal(t, "clip-0", slots[1].Item.Title)
	assert.Equal(t, testEpoch.Add(70*time.Minute), slots[4].EndsAt)

	content, err := m.UpcomingPlaylist(context.Background(), ch.ID, testEpoch.Add(15*time.Minute), 5)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "#EXTM3U")
	assert.Contains(t, text, "https://cdn.example.com/clip-1.mp4")
	assert.NotContains(t, text, "#EXT-X-ENDLIST")
}

func TestManager_ExportWritesUpcomingPlaylist(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	exportDir := t.TempDir()
	m, _, _ := newTestManager(t, Options{ExportDir: exportDir, ExportCount: 4})

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(exportDir, ch.ID.String(), upcomingFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "clip-0")
	assert.Equal(t, 5, strings.Count(string(content), "#EXTINF"))
}

func TestManager_RefreshKeepsLookahead(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, clock := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	clock.Set(testEpoch.Add(10 * time.Hour))
	m.refreshAll()
	assert.GreaterOrEqual(t, s.Snapshot().Covered(), 10*time.Hour+30*time.Minute)
}

func TestManager_RefreshRebuildsFailedSession(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, resolver, _ := newTestManager(t, Options{})

	ch := testChannel(path)
	s, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	resolver.Put("Clips", nil)
	_, err = m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(3*time.Hour))
	require.Error(t, err)
	require.Equal(t, StateDegraded, s.State())

	resolver.Put("Clips", testClips(3))
	m.refreshAll()
	assert.Equal(t, StateActive, s.State())
	assert.Nil(t, s.LastError())
}

func TestManager_InvalidRefreshSpec(t *testing.T) {
	_, err := NewManager(collection.NewStaticResolver(nil), Options{RefreshSpec: "not a spec"})
	assert.Error(t, err)

	_, err = NewManager(nil, Options{})
	assert.Error(t, err)
}

func TestManager_OpenClose(t *testing.T) {
	path := writeSchedule(t, t.TempDir(), "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{RefreshSpec: "@every 1h", Watch: true, Watcher: WatcherOptions{PollOnly: true}})
	require.NoError(t, m.Open())
	require.NoError(t, m.Open())

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, m.watcher.Watching(ch.ID))

	m.Close()
	assert.Empty(t, m.Sessions())
	assert.ErrorIs(t, m.Open(), ErrManagerStopped)
}

func TestManager_WatchInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeSchedule(t, dir, "loop.yaml", loopSchedule)
	m, _, _ := newTestManager(t, Options{
		Watch:   true,
		Watcher: WatcherOptions{Debounce: 20 * time.Millisecond, PollInterval: 20 * time.Millisecond, PollOnly: true},
	})
	require.NoError(t, m.Open())

	ch := testChannel(path)
	_, err := m.Start(context.Background(), ch)
	require.NoError(t, err)

	// Guarantee a visible modification time change
	future := time.Now().Add(time.Minute)
	writeSchedule(t, dir, "loop.yaml", strings.ReplaceAll(loopSchedule, "all: c1", "all: c1\n        custom_title: Rerun"))
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		pos, err := m.CurrentPosition(context.Background(), ch.ID, testEpoch.Add(time.Minute))
		return err == nil && pos.Item.Title == "Rerun"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestChannelSeed(t *testing.T) {
	id := uuid.MustParse("6f1c3c3e-6d0b-4f0a-9b1e-3c3e6d0b4f0a")
	assert.Equal(t, ChannelSeed(id), ChannelSeed(id))
	assert.GreaterOrEqual(t, ChannelSeed(id), int64(0))
	assert.NotEqual(t, ChannelSeed(id), ChannelSeed(uuid.New()))
}
