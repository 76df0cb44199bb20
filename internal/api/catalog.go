package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

const (
	defaultMediaLimit = 20
	maxMediaLimit     = 10000
)

// Request/Response DTOs

// CreateMediaRequest represents a request to add a clip to the catalog
type CreateMediaRequest struct {
	Title      string `json:"title" binding:"required"`
	Duration   int64  `json:"duration" binding:"required,gt=0"`
	SourceKind string `json:"source_kind" binding:"required"`
	SourceURL  string `json:"source_url" binding:"required"`
}

// UpdateMediaRequest represents a request to update media metadata
type UpdateMediaRequest struct {
	Title      *string `json:"title,omitempty"`
	Duration   *int64  `json:"duration,omitempty" binding:"omitempty,gt=0"`
	SourceKind *string `json:"source_kind,omitempty"`
	SourceURL  *string `json:"source_url,omitempty"`
}

// MediaListResponse represents a paginated list of media items
type MediaListResponse struct {
	Items  []*models.Media `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CreateCollectionRequest represents a request to create a collection
type CreateCollectionRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddCollectionItemRequest appends a media item to a collection
type AddCollectionItemRequest struct {
	MediaID string `json:"media_id" binding:"required"`
}

// ReorderCollectionRequest represents a request to reorder collection items
type ReorderCollectionRequest struct {
	Items []ReorderItem `json:"items" binding:"required,min=1"`
}

// ReorderItem represents an item position in a reorder request
type ReorderItem struct {
	ItemID   string `json:"item_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// CollectionResponse represents a collection with its ordered members
type CollectionResponse struct {
	*models.Collection
	Items         []*models.CollectionItem `json:"items"`
	TotalDuration int64                    `json:"total_duration_seconds"`
}

// CollectionListResponse represents a list of collections
type CollectionListResponse struct {
	Collections []*models.Collection `json:"collections"`
}

// collectionInvalidator drops cached collection listings
type collectionInvalidator interface {
	Invalidate(ctx context.Context, names ...string)
}

// CatalogHandler handles media and collection requests
type CatalogHandler struct {
	repos *db.Repositories
	cache collectionInvalidator
}

// NewCatalogHandler creates a new catalog handler. cache may be nil.
func NewCatalogHandler(repos *db.Repositories, cache collectionInvalidator) *CatalogHandler {
	return &CatalogHandler{repos: repos, cache: cache}
}

func (h *CatalogHandler) invalidate(ctx context.Context, names ...string) {
	if h.cache != nil && len(names) > 0 {
		h.cache.Invalidate(ctx, names...)
	}
}

// invalidateAll drops every collection listing; media edits can affect any of them
func (h *CatalogHandler) invalidateAll(ctx context.Context) {
	if h.cache == nil {
		return
	}
	collections, err := h.repos.Collections.List(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to list collections for cache invalidation")
		return
	}
	names := make([]string, len(collections))
	for i, col := range collections {
		names[i] = col.Name
	}
	h.invalidate(ctx, names...)
}

func writeQueryFailed(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "query_failed",
		Message: message,
	})
}

func writeNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: what + " not found",
	})
}

// ListMedia handles GET /api/media?kind=&q=&limit=&offset=
func (h *CatalogHandler) ListMedia(c *gin.Context) {
	limit := queryInt(c, "limit", defaultMediaLimit, 1, maxMediaLimit)
	offset := queryInt(c, "offset", 0, 0, math.MaxInt32)
	filter := db.MediaFilter{
		Kind:   models.SourceKind(c.Query("kind")),
		Title:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_source_kind",
			Message: "Unknown source kind: " + string(filter.Kind),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, total, err := h.repos.Media.List(ctx, filter)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Str("kind", string(filter.Kind)).
			Msg("Failed to list media")
		writeQueryFailed(c, "Failed to retrieve media list")
		return
	}

	c.JSON(http.StatusOK, MediaListResponse{
		Items:  items,
		Total:  int(total),
		Limit:  limit,
		Offset: offset,
	})
}

// CreateMedia handles POST /api/media
func (h *CatalogHandler) CreateMedia(c *gin.Context) {
	var req CreateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	kind := models.SourceKind(req.SourceKind)
	if !kind.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_source_kind",
			Message: "source_kind must be youtube, archive_org, or direct",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item := models.NewMedia(req.Title, req.Duration, kind, req.SourceURL)
	if err := h.repos.Media.Create(ctx, item); err != nil {
		if db.IsDuplicate(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_source",
				Message: "Media with this source URL already exists",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("source_url", req.SourceURL).
			Msg("Failed to create media")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create media",
		})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetMedia handles GET /api/media/:id
func (h *CatalogHandler) GetMedia(c *gin.Context) {
	id, ok := parseID(c, "id", "media")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Media")
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to get media by ID")
		writeQueryFailed(c, "Failed to retrieve media")
		return
	}

	c.JSON(http.StatusOK, item)
}

// UpdateMedia handles PUT /api/media/:id
func (h *CatalogHandler) UpdateMedia(c *gin.Context) {
	id, ok := parseID(c, "id", "media")
	if !ok {
		return
	}

	var req UpdateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Media")
			return
		}
		writeQueryFailed(c, "Failed to retrieve media")
		return
	}

	// Apply partial updates
	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Duration != nil {
		item.Duration = *req.Duration
	}
	if req.SourceKind != nil {
		kind := models.SourceKind(*req.SourceKind)
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_source_kind",
				Message: "source_kind must be youtube, archive_org, or direct",
			})
			return
		}
		item.SourceKind = kind
	}
	if req.SourceURL != nil {
		item.SourceURL = *req.SourceURL
	}

	if err := h.repos.Media.Update(ctx, item); err != nil {
		if db.IsDuplicate(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_source",
				Message: "Media with this source URL already exists",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to update media")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update media",
		})
		return
	}

	h.invalidateAll(ctx)
	c.JSON(http.StatusOK, item)
}

// DeleteMedia handles DELETE /api/media/:id
func (h *CatalogHandler) DeleteMedia(c *gin.Context) {
	id, ok := parseID(c, "id", "media")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Media.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Media")
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to delete media")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete media",
		})
		return
	}

	h.invalidateAll(ctx)
	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Media deleted successfully",
	})
}

// ListCollections handles GET /api/collections
func (h *CatalogHandler) ListCollections(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	collections, err := h.repos.Collections.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list collections")
		writeQueryFailed(c, "Failed to retrieve collection list")
		return
	}

	c.JSON(http.StatusOK, CollectionListResponse{Collections: collections})
}

// CreateCollection handles POST /api/collections
func (h *CatalogHandler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	col := models.NewCollection(req.Name)
	if err := h.repos.Collections.Create(ctx, col); err != nil {
		if db.IsDuplicate(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_name",
				Message: "A collection with this name already exists",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to create collection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create collection",
		})
		return
	}

	h.invalidate(ctx, col.Name)
	c.JSON(http.StatusCreated, col)
}

// GetCollection handles GET /api/collections/:id
func (h *CatalogHandler) GetCollection(c *gin.Context) {
	id, ok := parseID(c, "id", "collection")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	col, err := h.repos.Collections.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Collection")
			return
		}
		writeQueryFailed(c, "Failed to retrieve collection")
		return
	}

	items, err := h.repos.Collections.GetItemsWithMedia(ctx, id)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("collection_id", id.String()).
			Msg("Failed to get collection items")
		writeQueryFailed(c, "Failed to retrieve collection items")
		return
	}

	var total int64
	for _, item := range items {
		if item.Media != nil {
			total += item.Media.Duration
		}
	}

	c.JSON(http.StatusOK, CollectionResponse{
		Collection:    col,
		Items:         items,
		TotalDuration: total,
	})
}

// DeleteCollection handles DELETE /api/collections/:id
func (h *CatalogHandler) DeleteCollection(c *gin.Context) {
	id, ok := parseID(c, "id", "collection")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	col, err := h.repos.Collections.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Collection")
			return
		}
		writeQueryFailed(c, "Failed to retrieve collection")
		return
	}

	if err := h.repos.Collections.Delete(ctx, id); err != nil {
		logger.Log.Error().
			Err(err).
			Str("collection_id", id.String()).
			Msg("Failed to delete collection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete collection",
		})
		return
	}

	h.invalidate(ctx, col.Name)
	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Collection deleted successfully",
	})
}

// AddCollectionItem handles POST /api/collections/:id/items
func (h *CatalogHandler) AddCollectionItem(c *gin.Context) {
	id, ok := parseID(c, "id", "collection")
	if !ok {
		return
	}

	var req AddCollectionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	mediaID, err := uuid.Parse(req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid media ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Both rows are checked inside the insert's transaction
	var (
		col     *models.Collection
		item    *models.CollectionItem
		missing string
	)
	err = h.repos.Transaction(ctx, func(tx *db.Repositories) error {
		var err error
		if col, err = tx.Collections.GetByID(ctx, id); err != nil {
			missing = "Collection"
			return err
		}
		gone, err := tx.Media.Missing(ctx, []uuid.UUID{mediaID})
		if err != nil {
			return err
		}
		if len(gone) > 0 {
			missing = "Media"
			return db.ErrNotFound
		}
		item, err = tx.Collections.AddItem(ctx, id, mediaID)
		return err
	})
	if err != nil {
		if db.IsNotFound(err) && missing != "" {
			writeNotFound(c, missing)
			return
		}
		logger.Log.Error().
			Err(err).
			Str("collection_id", id.String()).
			Str("media_id", mediaID.String()).
			Msg("Failed to add collection item")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "add_failed",
			Message: "Failed to add media to collection",
		})
		return
	}

	h.invalidate(ctx, col.Name)
	c.JSON(http.StatusCreated, item)
}

// RemoveCollectionItem handles DELETE /api/collections/:id/items/:item_id
func (h *CatalogHandler) RemoveCollectionItem(c *gin.Context) {
	id, ok := parseID(c, "id", "collection")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "item_id", "item")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	col, err := h.repos.Collections.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Collection")
			return
		}
		writeQueryFailed(c, "Failed to retrieve collection")
		return
	}

	if err := h.repos.Collections.RemoveItem(ctx, id, itemID); err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Collection item")
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to remove collection item",
		})
		return
	}

	h.invalidate(ctx, col.Name)
	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Collection item removed successfully",
	})
}

// ReorderCollection handles PUT /api/collections/:id/items/reorder
func (h *CatalogHandler) ReorderCollection(c *gin.Context) {
	id, ok := parseID(c, "id", "collection")
	if !ok {
		return
	}

	var req ReorderCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	items := make([]db.ReorderItem, len(req.Items))
	for i, item := range req.Items {
		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_id",
				Message: "Invalid item ID format: " + item.ItemID,
			})
			return
		}
		items[i] = db.ReorderItem{ID: itemID, Position: item.Position}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	col, err := h.repos.Collections.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			writeNotFound(c, "Collection")
			return
		}
		writeQueryFailed(c, "Failed to retrieve collection")
		return
	}

	if err := h.repos.Collections.Reorder(ctx, id, items); err != nil {
		logger.Log.Error().
			Err(err).
			Str("collection_id", id.String()).
			Msg("Failed to reorder collection")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "reorder_failed",
			Message: err.Error(),
		})
		return
	}

	h.invalidate(ctx, col.Name)
	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Collection reordered successfully",
	})
}

// SetupCatalogRoutes registers media and collection routes
func SetupCatalogRoutes(apiGroup *gin.RouterGroup, repos *db.Repositories, cache collectionInvalidator) {
	handler := NewCatalogHandler(repos, cache)

	media := apiGroup.Group("/media")
	{
		media.GET("", handler.ListMedia)
		media.POST("", handler.CreateMedia)
		media.GET("/:id", handler.GetMedia)
		media.PUT("/:id", handler.UpdateMedia)
		media.DELETE("/:id", handler.DeleteMedia)
	}

	collections := apiGroup.Group("/collections")
	{
		collections.GET("", handler.ListCollections)
		collections.POST("", handler.CreateCollection)
		collections.GET("/:id", handler.GetCollection)
		collections.DELETE("/:id", handler.DeleteCollection)
		collections.POST("/:id/items", handler.AddCollectionItem)
		collections.PUT("/:id/items/reorder", handler.ReorderCollection)
		collections.DELETE("/:id/items/:item_id", handler.RemoveCollectionItem)
	}
}
