package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/schedule"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

// Maximum allowed future time for channel start time (1 year)
const maxStartTimeFuture = 365 * 24 * time.Hour

// Sessions starts and stops channel timeline sessions
type Sessions interface {
	Start(ctx context.Context, ch *models.Channel) (*streaming.Session, error)
	Stop(channelID uuid.UUID) error
}

// CreateParams holds the fields of a new channel
type CreateParams struct {
	Name         string
	Icon         *string
	SchedulePath string
	PlayoutIndex int
	StartTime    time.Time
	Enabled      bool
}

// ChannelService handles business logic for channel operations
type ChannelService struct {
	repos       *db.Repositories
	sessions    Sessions
	scheduleDir string
}

// NewChannelService creates a new channel service instance. sessions may be
// nil, in which case channels are stored without going on air.
func NewChannelService(repos *db.Repositories, sessions Sessions, scheduleDir string) *ChannelService {
	return &ChannelService{
		repos:       repos,
		sessions:    sessions,
		scheduleDir: scheduleDir,
	}
}

// CreateChannel creates a new channel with validation and puts it on air
// when enabled
func (s *ChannelService) CreateChannel(ctx context.Context, params CreateParams) (*models.Channel, error) {
	// Validate name uniqueness
	if err := s.validateNameUniqueness(ctx, params.Name, uuid.Nil); err != nil {
		logger.Log.Warn().
			Str("name", params.Name).
			Msg("Channel creation failed: duplicate name")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Validate start time
	if err := s.validateStartTime(params.StartTime); err != nil {
		logger.Log.Warn().
			Time("start_time", params.StartTime).
			Msg("Channel creation failed: invalid start time")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Validate schedule
	if err := s.ValidateSchedule(params.SchedulePath, params.PlayoutIndex); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("schedule", params.SchedulePath).
			Msg("Channel creation failed: invalid schedule")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	channel := models.NewChannel(params.Name, params.SchedulePath, params.PlayoutIndex, params.StartTime)
	channel.Icon = params.Icon
	channel.Enabled = params.Enabled

	// Save to database
	if err := s.repos.Channels.Create(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", params.Name).
			Msg("Failed to create channel in database")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Str("schedule", channel.SchedulePath).
		Msg("Channel created successfully")

	s.goOnAir(ctx, channel)
	return channel, nil
}

// GetByID retrieves a channel by its ID
func (s *ChannelService) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	channel, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// List retrieves all channels
func (s *ChannelService) List(ctx context.Context) ([]*models.Channel, error) {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(channels)).
		Msg("Listed channels")

	return channels, nil
}

// UpdateChannel updates an existing channel with validation. Playout is
// restarted so schedule, playout index, and start time changes take effect.
func (s *ChannelService) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	// Load existing channel
	existing, err := s.GetByID(ctx, channel.ID)
	if err != nil {
		return err
	}

	// Validate name uniqueness if name changed
	if !strings.EqualFold(existing.Name, channel.Name) {
		if err := s.validateNameUniqueness(ctx, channel.Name, channel.ID); err != nil {
			logger.Log.Warn().
				Str("channel_id", channel.ID.String()).
				Str("name", channel.Name).
				Msg("Channel update failed: duplicate name")
			return fmt.Errorf("failed to update channel: %w", err)
		}
	}

	// Validate start time if changed
	if !existing.StartTime.Equal(channel.StartTime) {
		if err := s.validateStartTime(channel.StartTime); err != nil {
			logger.Log.Warn().
				Str("channel_id", channel.ID.String()).
				Time("start_time", channel.StartTime).
				Msg("Channel update failed: invalid start time")
			return fmt.Errorf("failed to update channel: %w", err)
		}
	}

	// Validate schedule if it changed
	if existing.SchedulePath != channel.SchedulePath || existing.PlayoutIndex != channel.PlayoutIndex {
		if err := s.ValidateSchedule(channel.SchedulePath, channel.PlayoutIndex); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", channel.ID.String()).
				Str("schedule", channel.SchedulePath).
				Msg("Channel update failed: invalid schedule")
			return fmt.Errorf("failed to update channel: %w", err)
		}
	}

	channel.StartTime = channel.StartTime.UTC()
	channel.CreatedAt = existing.CreatedAt
	channel.UpdatedAt = time.Now().UTC()

	// Save to database
	if err := s.repos.Channels.Update(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channel.ID.String()).
			Msg("Failed to update channel in database")
		return fmt.Errorf("failed to update channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Msg("Channel updated successfully")

	s.goOffAir(channel.ID)
	s.goOnAir(ctx, channel)
	return nil
}

// DeleteChannel deletes a channel by its ID
func (s *ChannelService) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	// Verify channel exists
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	s.goOffAir(id)

	if err := s.repos.Channels.Delete(ctx, id); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel from database")
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted successfully")

	return nil
}

// RestartPlayout starts the channel over: its start time moves to now and a
// fresh session is built from the current schedule file
func (s *ChannelService) RestartPlayout(ctx context.Context, id uuid.UUID) (*streaming.Session, error) {
	channel, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !channel.Enabled {
		return nil, ErrChannelDisabled
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("failed to restart playout: no session manager")
	}

	now := time.Now().UTC()
	if err := s.repos.Channels.Rewind(ctx, id, now); err != nil {
		return nil, fmt.Errorf("failed to restart playout: %w", err)
	}
	channel.StartTime = now
	channel.UpdatedAt = now

	s.goOffAir(id)

	log := logger.ForChannel("channel", id.String())
	session, err := s.sessions.Start(ctx, channel)
	if err != nil {
		log.Error().Err(err).Msg("Failed to restart channel playout")
		return nil, fmt.Errorf("failed to restart playout: %w", err)
	}

	log.Info().Time("epoch", channel.Epoch()).Msg("Channel playout restarted")

	return session, nil
}

// StartAll puts every enabled channel on air and returns how many started
func (s *ChannelService) StartAll(ctx context.Context) (int, error) {
	if s.sessions == nil {
		return 0, nil
	}

	channels, err := s.repos.Channels.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list enabled channels: %w", err)
	}

	started := 0
	for _, ch := range channels {
		if _, err := s.sessions.Start(ctx, ch); err != nil {
			logger.Log.Error().
				Err(err).
				Str("channel_id", ch.ID.String()).
				Str("name", ch.Name).
				Msg("Failed to start channel")
			continue
		}
		started++
	}

	logger.Log.Info().
		Int("started", started).
		Int("enabled", len(channels)).
		Msg("Channels on air")

	return started, nil
}

// ValidateSchedule checks that the schedule parses, has the playout, and
// references only keys it defines
func (s *ChannelService) ValidateSchedule(schedulePath string, playoutIndex int) error {
	fail := func(stage string, err error) error {
		return &ScheduleError{Path: schedulePath, Playout: playoutIndex, Stage: stage, Err: err}
	}
	doc, err := schedule.Parse(schedulePath, s.scheduleDir)
	if err != nil {
		return fail("parse", err)
	}
	if _, err := doc.Playout(playoutIndex); err != nil {
		return fail("playout", err)
	}
	if err := doc.Validate(); err != nil {
		return fail("validate", err)
	}
	return nil
}

func (s *ChannelService) goOnAir(ctx context.Context, channel *models.Channel) {
	if s.sessions == nil || !channel.Enabled {
		return
	}
	if _, err := s.sessions.Start(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channel.ID.String()).
			Msg("Channel saved but failed to go on air")
	}
}

func (s *ChannelService) goOffAir(id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Stop(id); err != nil && !errors.Is(err, streaming.ErrSessionNotFound) {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to stop channel session")
	}
}

// validateNameUniqueness checks if a channel name is unique (case-insensitive)
// excludeID allows excluding a specific channel ID (for updates)
func (s *ChannelService) validateNameUniqueness(ctx context.Context, name string, excludeID uuid.UUID) error {
	taken, err := s.repos.Channels.NameTaken(ctx, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to validate name uniqueness: %w", err)
	}
	if taken {
		return ErrDuplicateChannelName
	}
	return nil
}

// validateStartTime checks if the start time is not more than 1 year in the future
func (s *ChannelService) validateStartTime(startTime time.Time) error {
	maxAllowed := time.Now().UTC().Add(maxStartTimeFuture)
	if startTime.After(maxAllowed) {
		return ErrInvalidStartTime
	}
	return nil
}
