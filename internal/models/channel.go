package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a virtual TV channel driven by a schedule file
type Channel struct {
	ID           uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name         string    `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	Icon         *string   `json:"icon,omitempty" gorm:"type:text;column:icon"`
	SchedulePath string    `json:"schedule_path" gorm:"type:text;not null;column:schedule_path" validate:"required"`
	PlayoutIndex int       `json:"playout_index" gorm:"type:integer;not null;default:0;column:playout_index" validate:"gte=0"`
	// StartTime is the channel's identity instant. The timeline epoch is
	// midnight UTC of this day; changing it restarts playout for every viewer.
	StartTime time.Time `json:"start_time" gorm:"type:datetime;not null;column:start_time" validate:"required"`
	Enabled   bool      `json:"enabled" gorm:"type:integer;not null;column:enabled"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates a new enabled Channel with generated UUID and timestamps
func NewChannel(name, schedulePath string, playoutIndex int, startTime time.Time) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:           uuid.New(),
		Name:         name,
		SchedulePath: schedulePath,
		PlayoutIndex: playoutIndex,
		StartTime:    startTime.UTC(),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Epoch returns midnight UTC of the channel's start day
func (c *Channel) Epoch() time.Time {
	st := c.StartTime.UTC()
	return time.Date(st.Year(), st.Month(), st.Day(), 0, 0, 0, 0, time.UTC)
}
