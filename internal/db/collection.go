package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/models"
	"gorm.io/gorm"
)

// CollectionRepository handles database operations for collections and
// their membership
type CollectionRepository struct {
	db *DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// ReorderItem represents a collection item position update
type ReorderItem struct {
	ID       uuid.UUID
	Position int
}

// Create inserts a new collection into the database
func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	result := r.db.WithContext(ctx).Create(collection)
	if result.Error != nil {
		return fmt.Errorf("failed to create collection: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a collection by its UUID
func (r *CollectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&collection)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &collection, nil
}

// GetByName retrieves a collection by its unique name
func (r *CollectionRepository) GetByName(ctx context.Context, name string) (*models.Collection, error) {
	var collection models.Collection
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&collection)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &collection, nil
}

// List retrieves all collections ordered by name
func (r *CollectionRepository) List(ctx context.Context) ([]*models.Collection, error) {
	var collections []*models.Collection
	result := r.db.WithContext(ctx).Order("name ASC").Find(&collections)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list collections: %w", MapGormError(result.Error))
	}
	return collections, nil
}

// Delete deletes a collection by its UUID (membership cascades)
func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Collection{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete collection: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddItem appends media to the end of a collection
func (r *CollectionRepository) AddItem(ctx context.Context, collectionID, mediaID uuid.UUID) (*models.CollectionItem, error) {
	var item *models.CollectionItem
	err := r.db.inTransaction(ctx, func(tx *gorm.DB) error {
		var next int64
		if err := tx.Model(&models.CollectionItem{}).
			Where("collection_id = ?", collectionID.String()).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return MapGormError(err)
		}

		item = models.NewCollectionItem(collectionID, mediaID, int(next))
		if err := tx.Create(item).Error; err != nil {
			return MapGormError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add collection item: %w", err)
	}
	return item, nil
}

// RemoveItem deletes a collection item by its UUID
func (r *CollectionRepository) RemoveItem(ctx context.Context, collectionID, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND collection_id = ?", itemID.String(), collectionID.String()).
		Delete(&models.CollectionItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete collection item: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemsWithMedia retrieves a collection's members with joined media data,
// ordered by position
func (r *CollectionRepository) GetItemsWithMedia(ctx context.Context, collectionID uuid.UUID) ([]*models.CollectionItem, error) {
	var items []*models.CollectionItem
	result := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID.String()).
		Preload("Media").
		Order("position ASC").
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get collection items with media: %w", MapGormError(result.Error))
	}
	return items, nil
}

// Reorder updates positions for multiple collection items in a transaction
func (r *CollectionRepository) Reorder(ctx context.Context, collectionID uuid.UUID, items []ReorderItem) error {
	return r.db.inTransaction(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			result := tx.Model(&models.CollectionItem{}).
				Where("id = ? AND collection_id = ?", item.ID.String(), collectionID.String()).
				Update("position", item.Position)
			if result.Error != nil {
				return fmt.Errorf("failed to update position for item %s: %w", item.ID, MapGormError(result.Error))
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("collection item %s not found or does not belong to collection", item.ID)
			}
		}
		return nil
	})
}
