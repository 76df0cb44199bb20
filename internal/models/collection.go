package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection is a named, ordered group of media items referenced by schedules
type Collection struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name      string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name" validate:"required,min=1,max=255"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewCollection creates a new Collection with generated UUID and timestamp
func NewCollection(name string) *Collection {
	return &Collection{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// CollectionItem places a media item at a position within a collection.
// Position defines chronological order.
type CollectionItem struct {
	ID           uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	CollectionID uuid.UUID `json:"collection_id" gorm:"type:text;not null;column:collection_id" validate:"required"`
	MediaID      uuid.UUID `json:"media_id" gorm:"type:text;not null;column:media_id" validate:"required"`
	Position     int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	Media *Media `json:"media,omitempty" gorm:"foreignKey:MediaID;references:ID"`
}

// NewCollectionItem creates a new CollectionItem with generated UUID and timestamp
func NewCollectionItem(collectionID, mediaID uuid.UUID, position int) *CollectionItem {
	return &CollectionItem{
		ID:           uuid.New(),
		CollectionID: collectionID,
		MediaID:      mediaID,
		Position:     position,
		CreatedAt:    time.Now().UTC(),
	}
}
