package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

const defaultPreviewItems = 100

// PreviewRequest asks for the first items a schedule would generate.
// Exactly one of Path (relative to the schedule directory) or YAML is set.
type PreviewRequest struct {
	Path         string     `json:"path,omitempty"`
	YAML         string     `json:"yaml,omitempty"`
	PlayoutIndex int        `json:"playout_index" binding:"gte=0"`
	MaxItems     int        `json:"max_items,omitempty" binding:"gte=0"`
	Seed         *int64     `json:"seed,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}

// PreviewItem is a generated item, with wall-clock times when a start time was given
type PreviewItem struct {
	playout.PlaylistItem
	StartsAt *time.Time `json:"starts_at,omitempty"`
}

// PreviewResponse lists generated items
type PreviewResponse struct {
	Items         []PreviewItem `json:"items"`
	Count         int           `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	Repeat        bool          `json:"repeat"`
	Seed          *int64        `json:"seed,omitempty"`
}

// ScheduleHandler renders schedule previews
type ScheduleHandler struct {
	resolver    collection.Resolver
	scheduleDir string
	maxItems    int
	opts        playout.Options
}

// NewScheduleHandler creates a schedule preview handler. maxItems caps a
// single preview; opts carries generation limits shared with channel sessions.
func NewScheduleHandler(resolver collection.Resolver, scheduleDir string, maxItems int, opts playout.Options) *ScheduleHandler {
	return &ScheduleHandler{
		resolver:    resolver,
		scheduleDir: scheduleDir,
		maxItems:    maxItems,
		opts:        opts,
	}
}

// writeScheduleError maps parse and generation failures to 422 responses
func writeScheduleError(c *gin.Context, err error) bool {
	var perr *schedule.ParseError
	var gerr *playout.GenerationError
	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "schedule_" + perr.Kind.String(),
			Message: perr.Error(),
		})
	case errors.Is(err, schedule.ErrPlayoutNotFound):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "playout_not_found",
			Message: err.Error(),
		})
	case errors.Is(err, schedule.ErrUnresolvedReference):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "unresolved_reference",
			Message: err.Error(),
		})
	case errors.As(err, &gerr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   gerr.Kind.String(),
			Message: gerr.Error(),
		})
	default:
		return false
	}
	return true
}

// Preview handles POST /api/schedules/preview
func (h *ScheduleHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	if (req.Path == "") == (req.YAML == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Exactly one of path or yaml is required",
		})
		return
	}
	if req.Path != "" && !filepath.IsLocal(req.Path) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_path",
			Message: "Schedule path must be relative to the schedule directory",
		})
		return
	}

	maxItems := req.MaxItems
	if maxItems == 0 {
		maxItems = defaultPreviewItems
	}
	if maxItems > h.maxItems {
		maxItems = h.maxItems
	}

	var (
		doc *schedule.Document
		err error
	)
	if req.Path != "" {
		doc, err = schedule.Parse(req.Path, h.scheduleDir)
	} else {
		doc, err = schedule.ParseBytes([]byte(req.YAML), h.scheduleDir)
	}
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		if !writeScheduleError(c, err) {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "parse_failed",
				Message: "Failed to load schedule",
			})
		}
		return
	}

	pl, err := doc.Playout(req.PlayoutIndex)
	if err != nil {
		writeScheduleError(c, err)
		return
	}

	opts := h.opts
	if req.Seed != nil {
		opts.SeedMode = playout.SeedFixed
		opts.Seed = *req.Seed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	items, err := playout.Generate(ctx, doc, req.PlayoutIndex, h.resolver, maxItems, opts)
	if err != nil {
		if writeScheduleError(c, err) {
			return
		}

		logger.Log.Error().
			Err(err).
			Str("schedule", req.Path).
			Msg("Failed to generate schedule preview")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "generation_failed",
			Message: err.Error(),
		})
		return
	}

	previews := make([]PreviewItem, len(items))
	for i, item := range items {
		previews[i] = PreviewItem{PlaylistItem: item}
		if req.StartTime != nil {
			at := req.StartTime.Add(item.Start)
			previews[i].StartsAt = &at
		}
	}

	response := PreviewResponse{
		Items:         previews,
		Count:         len(items),
		TotalDuration: playout.TotalDuration(items),
		Repeat:        pl.Repeat,
	}
	if opts.SeedMode == playout.SeedFixed {
		seed := opts.Seed
		response.Seed = &seed
	}
	c.JSON(http.StatusOK, response)
}

// SetupScheduleRoutes registers schedule routes
func SetupScheduleRoutes(apiGroup *gin.RouterGroup, handler *ScheduleHandler) {
	apiGroup.POST("/schedules/preview", handler.Preview)
}
