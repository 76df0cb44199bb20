package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/airwave/internal/channel"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Name         string     `json:"name" binding:"required"`
	Icon         *string    `json:"icon,omitempty"`
	SchedulePath string     `json:"schedule_path" binding:"required"`
	PlayoutIndex int        `json:"playout_index" binding:"gte=0"`
	StartTime    *time.Time `json:"start_time" binding:"required"`
	Enabled      *bool      `json:"enabled,omitempty"`
}

// UpdateChannelRequest represents a request to update a channel (partial update)
type UpdateChannelRequest struct {
	Name         *string    `json:"name,omitempty"`
	Icon         *string    `json:"icon,omitempty"`
	SchedulePath *string    `json:"schedule_path,omitempty"`
	PlayoutIndex *int       `json:"playout_index,omitempty" binding:"omitempty,gte=0"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	Enabled      *bool      `json:"enabled,omitempty"`
}

// ChannelResponse represents a channel in API responses
type ChannelResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Icon         *string   `json:"icon,omitempty"`
	SchedulePath string    `json:"schedule_path"`
	PlayoutIndex int       `json:"playout_index"`
	StartTime    time.Time `json:"start_time"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Channels []*ChannelResponse `json:"channels"`
}

// ChannelHandler handles channel-related API requests
type ChannelHandler struct {
	channelService *channel.ChannelService
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(channelService *channel.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

// toChannelResponse converts a channel model to API response format
func toChannelResponse(ch *models.Channel) *ChannelResponse {
	return &ChannelResponse{
		ID:           ch.ID.String(),
		Name:         ch.Name,
		Icon:         ch.Icon,
		SchedulePath: ch.SchedulePath,
		PlayoutIndex: ch.PlayoutIndex,
		StartTime:    ch.StartTime,
		Enabled:      ch.Enabled,
		CreatedAt:    ch.CreatedAt,
		UpdatedAt:    ch.UpdatedAt,
	}
}

// writeChannelError maps channel service validation errors to responses.
// It reports false when err is not a validation error.
func writeChannelError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, channel.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Channel not found",
		})
	case errors.Is(err, channel.ErrDuplicateChannelName):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_name",
			Message: "A channel with this name already exists",
		})
	case errors.Is(err, channel.ErrInvalidStartTime):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_start_time",
			Message: "Start time cannot be more than 1 year in the future",
		})
	case errors.Is(err, channel.ErrInvalidSchedule):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_schedule",
			Message: err.Error(),
		})
	case errors.Is(err, channel.ErrChannelDisabled):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "channel_disabled",
			Message: "Channel is disabled",
		})
	default:
		return false
	}
	return true
}

// CreateChannel handles POST /api/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	// Default enabled to true if not specified
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	newChannel, err := h.channelService.CreateChannel(ctx, channel.CreateParams{
		Name:         req.Name,
		Icon:         req.Icon,
		SchedulePath: req.SchedulePath,
		PlayoutIndex: req.PlayoutIndex,
		StartTime:    *req.StartTime,
		Enabled:      enabled,
	})
	if err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to create channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create channel",
		})
		return
	}

	c.JSON(http.StatusCreated, toChannelResponse(newChannel))
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	channels, err := h.channelService.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel list",
		})
		return
	}

	// Convert to response format
	responses := make([]*ChannelResponse, len(channels))
	for i, ch := range channels {
		responses[i] = toChannelResponse(ch)
	}

	c.JSON(http.StatusOK, ChannelListResponse{
		Channels: responses,
	})
}

// GetChannel handles GET /api/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(ch))
}

// UpdateChannel handles PUT /api/channels/:id
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	// Load existing channel
	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel for update")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	// Apply partial updates
	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.Icon != nil {
		ch.Icon = req.Icon
	}
	if req.SchedulePath != nil {
		ch.SchedulePath = *req.SchedulePath
	}
	if req.PlayoutIndex != nil {
		ch.PlayoutIndex = *req.PlayoutIndex
	}
	if req.StartTime != nil {
		ch.StartTime = *req.StartTime
	}
	if req.Enabled != nil {
		ch.Enabled = *req.Enabled
	}

	// Save updates
	if err := h.channelService.UpdateChannel(ctx, ch); err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to update channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update channel",
		})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(ch))
}

// DeleteChannel handles DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.channelService.DeleteChannel(ctx, id); err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete channel",
		})
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Channel deleted successfully",
	})
}

// RestartPlayout handles POST /api/channels/:id/restart
func (h *ChannelHandler) RestartPlayout(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	session, err := h.channelService.RestartPlayout(ctx, id)
	if err != nil {
		if writeChannelError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to restart playout")

		var serr *streaming.SessionError
		if errors.As(err, &serr) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "restart_failed",
				Message: serr.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "restart_failed",
			Message: "Failed to restart playout",
		})
		return
	}

	c.JSON(http.StatusOK, session.Info())
}

// SetupChannelRoutes registers channel-related routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, channelService *channel.ChannelService) {
	handler := NewChannelHandler(channelService)

	channels := apiGroup.Group("/channels")
	{
		channels.GET("", handler.ListChannels)
		channels.POST("", handler.CreateChannel)
		channels.GET("/:id", handler.GetChannel)
		channels.PUT("/:id", handler.UpdateChannel)
		channels.DELETE("/:id", handler.DeleteChannel)
		channels.POST("/:id/restart", handler.RestartPlayout)
	}
}

