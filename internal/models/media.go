package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies where a media item's playable stream comes from
type SourceKind string

const (
	SourceYouTube    SourceKind = "youtube"
	SourceArchiveOrg SourceKind = "archive_org"
	SourceDirect     SourceKind = "direct"
)

// IsValid reports whether the source kind is known
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceYouTube, SourceArchiveOrg, SourceDirect:
		return true
	}
	return false
}

// Media represents a catalog clip. Duration is authoritative for scheduling.
type Media struct {
	ID         uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	Title      string     `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	Duration   int64      `json:"duration" gorm:"type:integer;not null;column:duration" validate:"required,gt=0"` // seconds
	SourceKind SourceKind `json:"source_kind" gorm:"type:text;not null;column:source_kind" validate:"required"`
	SourceURL  string     `json:"source_url" gorm:"type:text;not null;uniqueIndex;column:source_url" validate:"required"`
	CreatedAt  time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMedia creates a new Media with generated UUID and timestamp
func NewMedia(title string, duration int64, kind SourceKind, sourceURL string) *Media {
	return &Media{
		ID:         uuid.New(),
		Title:      title,
		Duration:   duration,
		SourceKind: kind,
		SourceURL:  sourceURL,
		CreatedAt:  time.Now().UTC(),
	}
}

// DurationString returns duration in HH:MM:SS format
func (m *Media) DurationString() string {
	hours := m.Duration / 3600
	minutes := (m.Duration % 3600) / 60
	seconds := m.Duration % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Length returns the duration as a time.Duration
func (m *Media) Length() time.Duration {
	return time.Duration(m.Duration) * time.Second
}
