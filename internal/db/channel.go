// Package db is the SQLite catalog: media, collections and the channels
// that air them.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/models"
)

// channelColumns are the columns Update writes, zero values included
var channelColumns = []string{"name", "icon", "schedule_path", "playout_index", "start_time", "enabled", "updated_at"}

// ChannelRepository stores channel definitions
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a new channel
func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("failed to create channel %q: %w", channel.Name, MapGormError(err))
	}
	return nil
}

// GetByID retrieves a channel by its UUID
func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// List retrieves all channels, newest first
func (r *ChannelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	result := r.db.WithContext(ctx).Order("created_at DESC").Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// ListEnabled retrieves channels that should be on air, oldest first
func (r *ChannelRepository) ListEnabled(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	result := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at ASC").Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list enabled channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// NameTaken reports whether another channel already uses name, compared
// case-insensitively with surrounding spaces ignored. excludeID is skipped
// so a channel can keep its own name on update.
func (r *ChannelRepository) NameTaken(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("LOWER(TRIM(name)) = LOWER(TRIM(?)) AND id <> ?", name, excludeID.String()).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check channel name: %w", MapGormError(result.Error))
	}
	return count > 0, nil
}

// Update writes every editable column of channel
func (r *ChannelRepository) Update(ctx context.Context, channel *models.Channel) error {
	channel.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Where("id = ?", channel.ID.String()).
		Select(channelColumns).
		Updates(channel)
	if result.Error != nil {
		return fmt.Errorf("failed to update channel: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rewind moves a channel's start time, which moves its schedule epoch
func (r *ChannelRepository) Rewind(ctx context.Context, id uuid.UUID, start time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{"start_time": start.UTC(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to rewind channel: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a channel by its UUID
func (r *ChannelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Channel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete channel: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
