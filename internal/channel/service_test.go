package channel

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

const validSchedule = `
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

const danglingSchedule = `
sequence:
  - key: s1
    items:
      - all: missing
playout:
  - sequence: s1
`

// recordingSessions records session starts and stops without generating playlists
type recordingSessions struct {
	mu      sync.Mutex
	started []uuid.UUID
	stopped []uuid.UUID
	live    map[uuid.UUID]bool
}

func newRecordingSessions() *recordingSessions {
	return &recordingSessions{live: make(map[uuid.UUID]bool)}
}

func (r *recordingSessions) Start(_ context.Context, ch *models.Channel) (*streaming.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, ch.ID)
	r.live[ch.ID] = true
	return &streaming.Session{ChannelID: ch.ID, Name: ch.Name}, nil
}

func (r *recordingSessions) Stop(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[id] {
		return streaming.ErrSessionNotFound
	}
	delete(r.live, id)
	r.stopped = append(r.stopped, id)
	return nil
}

func (r *recordingSessions) isLive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[id]
}

func (r *recordingSessions) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

// setupTestService creates a service with a test database and schedule directory
func setupTestService(t *testing.T) (*ChannelService, *recordingSessions, string, func()) {
	// Create temporary database
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile, db.Options{EnableWAL: true})
	require.NoError(t, err)

	// Run migrations
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	migrationsPath := "file://../../migrations"
	err = db.RunMigrations(sqlDB, migrationsPath)
	require.NoError(t, err)

	scheduleDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(scheduleDir, "main.yaml"), []byte(validSchedule), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(scheduleDir, "dangling.yaml"), []byte(danglingSchedule), 0644))

	sessions := newRecordingSessions()
	repos := db.NewRepositories(database)
	service := NewChannelService(repos, sessions, scheduleDir)

	cleanup := func() {
		_ = database.Close()
	}

	return service, sessions, scheduleDir, cleanup
}

func params(name string) CreateParams {
	return CreateParams{
		Name:         name,
		SchedulePath: "main.yaml",
		StartTime:    time.Now().UTC(),
		Enabled:      true,
	}
}

func TestNewChannelService(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	assert.NotNil(t, service)
	assert.NotNil(t, service.repos)
}

func TestCreateChannel_Success(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	icon := "icon.png"
	p := params("Test Channel")
	p.Icon = &icon

	channel, err := service.CreateChannel(ctx, p)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, channel.ID)
	assert.Equal(t, "Test Channel", channel.Name)
	assert.Equal(t, &icon, channel.Icon)
	assert.Equal(t, "main.yaml", channel.SchedulePath)
	assert.True(t, channel.Enabled)
	assert.True(t, sessions.isLive(channel.ID))
}

func TestCreateChannel_DisabledStaysOffAir(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	p := params("Dark Channel")
	p.Enabled = false

	channel, err := service.CreateChannel(context.Background(), p)

	require.NoError(t, err)
	assert.False(t, sessions.isLive(channel.ID))
	assert.Equal(t, 0, sessions.startCount())
}

func TestCreateChannel_DuplicateName(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	// Create first channel
	_, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	// Try to create second channel with same name
	_, err = service.CreateChannel(ctx, params("Test Channel"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChannelName)
}

func TestCreateChannel_DuplicateNameCaseInsensitive(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	// Try to create second channel with different case
	_, err = service.CreateChannel(ctx, params("test channel"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChannelName)
}

func TestCreateChannel_InvalidStartTime(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	p := params("Future Channel")
	// Start time more than 1 year in the future
	p.StartTime = time.Now().UTC().Add(400 * 24 * time.Hour)

	_, err := service.CreateChannel(context.Background(), p)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStartTime)
}

func TestCreateChannel_StartTimeExactlyOneYear(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	p := params("One Year Future")
	p.StartTime = time.Now().UTC().Add(365 * 24 * time.Hour)

	channel, err := service.CreateChannel(context.Background(), p)

	// This should succeed as it's at the boundary
	require.NoError(t, err)
	assert.NotNil(t, channel)
}

func TestCreateChannel_InvalidSchedule(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	tests := []struct {
		name    string
		path    string
		playout int
		stage   string
	}{
		{"missing file", "nope.yaml", 0, "parse"},
		{"playout out of range", "main.yaml", 3, "playout"},
		{"dangling reference", "dangling.yaml", 0, "validate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params("Channel " + tt.name)
			p.SchedulePath = tt.path
			p.PlayoutIndex = tt.playout

			_, err := service.CreateChannel(context.Background(), p)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchedule)

			var se *ScheduleError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, tt.path, se.Path)
			assert.Equal(t, tt.playout, se.Playout)
		})
	}
	assert.Equal(t, 0, sessions.startCount())
}

func TestGetByID_Success(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	created, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	channel, err := service.GetByID(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, channel.ID)
	assert.Equal(t, created.Name, channel.Name)
}

func TestGetByID_NotFound(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.GetByID(context.Background(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestList(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	channels, err := service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)

	for _, name := range []string{"Channel 1", "Channel 2", "Channel 3"} {
		_, err := service.CreateChannel(ctx, params(name))
		require.NoError(t, err)
	}

	channels, err = service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 3)
}

func TestUpdateChannel_Success(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Original Name"))
	require.NoError(t, err)

	channel.Name = "Updated Name"
	channel.StartTime = time.Now().UTC().Add(-time.Hour)

	err = service.UpdateChannel(ctx, channel)
	require.NoError(t, err)

	updated, err := service.GetByID(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Name", updated.Name)

	// Playout restarted
	assert.Equal(t, 2, sessions.startCount())
	assert.True(t, sessions.isLive(channel.ID))
}

func TestUpdateChannel_DisableTakesOffAir(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Going Dark"))
	require.NoError(t, err)

	channel.Enabled = false
	require.NoError(t, service.UpdateChannel(ctx, channel))
	assert.False(t, sessions.isLive(channel.ID))
}

func TestUpdateChannel_DuplicateName(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateChannel(ctx, params("Channel 1"))
	require.NoError(t, err)
	channel2, err := service.CreateChannel(ctx, params("Channel 2"))
	require.NoError(t, err)

	// Try to update channel2 with channel1's name
	channel2.Name = "Channel 1"
	err = service.UpdateChannel(ctx, channel2)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChannelName)
}

func TestUpdateChannel_SameNameDifferentCase(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	// Update to same name with different case (should succeed)
	channel.Name = "TEST CHANNEL"
	require.NoError(t, service.UpdateChannel(ctx, channel))
}

func TestUpdateChannel_InvalidSchedule(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	channel.SchedulePath = "dangling.yaml"
	err = service.UpdateChannel(ctx, channel)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	stored, err := service.GetByID(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, "main.yaml", stored.SchedulePath)
}

func TestUpdateChannel_NotFound(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	channel := models.NewChannel("Ghost", "main.yaml", 0, time.Now().UTC())
	err := service.UpdateChannel(context.Background(), channel)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestDeleteChannel_Success(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	require.NoError(t, service.DeleteChannel(ctx, channel.ID))
	assert.False(t, sessions.isLive(channel.ID))

	_, err = service.GetByID(ctx, channel.ID)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestDeleteChannel_NotFound(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	err := service.DeleteChannel(context.Background(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestRestartPlayout(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	p := params("Test Channel")
	p.StartTime = time.Now().UTC().Add(-48 * time.Hour)
	channel, err := service.CreateChannel(ctx, p)
	require.NoError(t, err)

	before := time.Now().UTC()
	session, err := service.RestartPlayout(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.ID, session.ChannelID)
	assert.Equal(t, 2, sessions.startCount())
	assert.True(t, sessions.isLive(channel.ID))

	// Restart starts the channel over from now
	restarted, err := service.GetByID(ctx, channel.ID)
	require.NoError(t, err)
	assert.False(t, restarted.StartTime.Before(before.Truncate(time.Second)))
}

func TestRestartPlayout_Disabled(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	p := params("Dark Channel")
	p.Enabled = false
	channel, err := service.CreateChannel(ctx, p)
	require.NoError(t, err)

	_, err = service.RestartPlayout(ctx, channel.ID)
	assert.ErrorIs(t, err, ErrChannelDisabled)

	_, err = service.RestartPlayout(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestStartAll(t *testing.T) {
	service, sessions, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateChannel(ctx, params("Channel 1"))
	require.NoError(t, err)
	dark := params("Channel 2")
	dark.Enabled = false
	_, err = service.CreateChannel(ctx, dark)
	require.NoError(t, err)

	started, err := service.StartAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, sessions.startCount())
}

func TestChannelService_WithManager(t *testing.T) {
	service, _, scheduleDir, cleanup := setupTestService(t)
	defer cleanup()

	clips := []collection.MediaItem{{
		ID:         uuid.New(),
		Title:      "Pilot",
		Duration:   30 * time.Minute,
		SourceKind: string(models.SourceDirect),
		SourceURL:  "https://cdn.example.com/pilot.mp4",
	}}
	manager, err := streaming.NewManager(
		collection.NewStaticResolver(map[string][]collection.MediaItem{"Clips": clips}),
		streaming.Options{ScheduleDir: scheduleDir, Lookahead: time.Hour},
	)
	require.NoError(t, err)
	defer manager.Close()
	service.sessions = manager

	ctx := context.Background()
	channel, err := service.CreateChannel(ctx, params("Live"))
	require.NoError(t, err)

	pos, err := manager.CurrentPosition(ctx, channel.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Pilot", pos.Item.Title)

	require.NoError(t, service.DeleteChannel(ctx, channel.ID))
	_, ok := manager.Session(channel.ID)
	assert.False(t, ok)
}

func TestValidateNameUniqueness_WithWhitespace(t *testing.T) {
	service, _, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.CreateChannel(ctx, params("Test Channel"))
	require.NoError(t, err)

	// Try to create channel with extra whitespace (should fail)
	_, err = service.CreateChannel(ctx, params("  Test Channel  "))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChannelName)
}
