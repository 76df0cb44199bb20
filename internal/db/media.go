package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/models"
	"gorm.io/gorm"
)

// MediaFilter narrows a media listing. Zero fields match everything.
type MediaFilter struct {
	Kind models.SourceKind
	// Title matches case-insensitively anywhere in the title
	Title  string
	Limit  int
	Offset int
}

func (f MediaFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Kind != "" {
		q = q.Where("source_kind = ?", f.Kind)
	}
	if t := strings.TrimSpace(f.Title); t != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(t))+"%")
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// MediaRepository stores catalog clips
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a clip. A second clip with the same source URL fails with
// a ConstraintError on "media.source_url".
func (r *MediaRepository) Create(ctx context.Context, media *models.Media) error {
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		return fmt.Errorf("failed to add %q to catalog: %w", media.Title, MapGormError(err))
	}
	return nil
}

// GetByID retrieves a clip by its UUID
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&media).Error; err != nil {
		return nil, MapGormError(err)
	}
	return &media, nil
}

// List returns one page of clips matching f, newest first, along with the
// number of clips matching f across all pages
func (r *MediaRepository) List(ctx context.Context, f MediaFilter) ([]*models.Media, int64, error) {
	var total int64
	if err := f.apply(r.db.WithContext(ctx).Model(&models.Media{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count media: %w", MapGormError(err))
	}

	q := f.apply(r.db.WithContext(ctx)).Order("created_at DESC").Order("title")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var page []*models.Media
	if err := q.Find(&page).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list media: %w", MapGormError(err))
	}
	return page, total, nil
}

// Update rewrites a clip's title, duration and source. Collections that
// draw it pick up the new duration the next time they are resolved.
func (r *MediaRepository) Update(ctx context.Context, media *models.Media) error {
	result := r.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("id = ?", media.ID.String()).
		Updates(map[string]any{
			"title":       media.Title,
			"duration":    media.Duration,
			"source_kind": media.SourceKind,
			"source_url":  media.SourceURL,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a clip; its collection memberships cascade with it
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Media{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Missing returns the ids that have no clip in the catalog, in input order
func (r *MediaRepository) Missing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	want := make([]string, len(ids))
	for i, id := range ids {
		want[i] = id.String()
	}

	var found []string
	if err := r.db.WithContext(ctx).Model(&models.Media{}).Where("id IN ?", want).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up media: %w", MapGormError(err))
	}

	have := make(map[string]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	var missing []uuid.UUID
	for i, id := range ids {
		if _, ok := have[want[i]]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
