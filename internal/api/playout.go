package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/source"
	"github.com/stwalsh4118/airwave/internal/streaming"
	"github.com/stwalsh4118/airwave/internal/streaming/playlist"
	"github.com/stwalsh4118/airwave/internal/timeline"
)

const (
	defaultUpcomingCount = 10
	maxUpcomingCount     = 500
)

// playoutManager defines the session operations PlayoutHandler needs
type playoutManager interface {
	Session(channelID uuid.UUID) (*streaming.Session, bool)
	Sessions() []*streaming.Session
	CurrentPosition(ctx context.Context, channelID uuid.UUID, instant time.Time) (*timeline.Position, error)
	Upcoming(ctx context.Context, channelID uuid.UUID, instant time.Time, n int) (*timeline.Position, []timeline.Slot, error)
	UpcomingPlaylist(ctx context.Context, channelID uuid.UUID, instant time.Time, n int) ([]byte, error)
	Invalidate(ctx context.Context, channelID uuid.UUID) error
	Join(channelID uuid.UUID) (int, error)
	Leave(channelID uuid.UUID) (int, error)
}

// NowResponse describes what a channel is airing and where to play it
type NowResponse struct {
	ChannelID     string             `json:"channel_id"`
	Position      *timeline.Position `json:"position"`
	Remaining     time.Duration      `json:"remaining"`
	PlayableURL   string             `json:"playable_url,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	PlayableError string             `json:"playable_error,omitempty"`
}

// UpcomingResponse lists the current airing and those after it
type UpcomingResponse struct {
	ChannelID string             `json:"channel_id"`
	Position  *timeline.Position `json:"position"`
	Upcoming  []timeline.Slot    `json:"upcoming"`
}

// ViewerResponse reports a channel's viewer count
type ViewerResponse struct {
	ChannelID string `json:"channel_id"`
	Viewers   int    `json:"viewers"`
}

// SessionListResponse lists running channel sessions
type SessionListResponse struct {
	Sessions []streaming.SessionInfo `json:"sessions"`
}

// PlayoutHandler answers position queries against channel sessions
type PlayoutHandler struct {
	manager playoutManager
	sources source.Resolver
}

// NewPlayoutHandler creates a new playout handler. sources may be nil, in
// which case /now omits the playable URL.
func NewPlayoutHandler(manager playoutManager, sources source.Resolver) *PlayoutHandler {
	return &PlayoutHandler{manager: manager, sources: sources}
}

// instantOf reads the optional "at" query parameter (RFC 3339)
func instantOf(c *gin.Context) (time.Time, bool) {
	raw := c.Query("at")
	if raw == "" {
		return time.Now(), true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instant",
			Message: "Query parameter 'at' must be RFC 3339",
		})
		return time.Time{}, false
	}
	return at, true
}

// writePositionError maps session and timeline errors to responses
func writePositionError(c *gin.Context, channelID uuid.UUID, err error) {
	var serr *streaming.SessionError
	switch {
	case errors.Is(err, streaming.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_on_air",
			Message: "Channel is not on air",
		})
	case errors.Is(err, timeline.ErrChannelNotStarted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "not_started",
			Message: "Channel has not started broadcasting yet",
		})
	case errors.Is(err, streaming.ErrInstantOutOfRange), errors.Is(err, timeline.ErrOutsideWindow):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "instant_out_of_range",
			Message: "Query parameter 'at' is too far from the current time",
		})
	case errors.Is(err, timeline.ErrEmptyPlaylist):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "empty",
			Message: "Channel has nothing to air",
		})
	case timeline.IsFinished(err):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "finished",
			Message: "Channel playout has finished",
		})
	case errors.Is(err, playlist.ErrNoEntries):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "nothing_playable",
			Message: "No playable items in range",
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "Timed out computing channel position",
		})
	case errors.As(err, &serr):
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Channel timeline unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "generation_failed",
			Message: serr.Error(),
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Msg("Failed to compute channel position")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "position_failed",
			Message: "Failed to compute channel position",
		})
	}
}

// Now handles GET /api/channels/:id/now
func (h *PlayoutHandler) Now(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}
	at, ok := instantOf(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	pos, err := h.manager.CurrentPosition(ctx, id, at)
	if err != nil {
		writePositionError(c, id, err)
		return
	}

	response := NowResponse{
		ChannelID: id.String(),
		Position:  pos,
		Remaining: pos.Remaining(),
	}

	if h.sources != nil && !pos.Item.IsOffline() && pos.Item.SourceURL != "" {
		resolved, err := h.sources.Resolve(ctx, models.SourceKind(pos.Item.SourceKind), pos.Item.SourceURL)
		if err != nil {
			// The airing is still reported; only playback is unavailable
			logger.Log.Warn().
				Err(err).
				Str("channel_id", id.String()).
				Str("source_url", pos.Item.SourceURL).
				Msg("Failed to resolve playable URL")
			response.PlayableError = err.Error()
		} else {
			response.PlayableURL = resolved.PlayableURL
			if !resolved.ExpiresAt.IsZero() {
				expires := resolved.ExpiresAt
				response.ExpiresAt = &expires
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

// Upcoming handles GET /api/channels/:id/upcoming
func (h *PlayoutHandler) Upcoming(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}
	at, ok := instantOf(c)
	if !ok {
		return
	}
	n := queryInt(c, "count", defaultUpcomingCount, 0, maxUpcomingCount)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	pos, slots, err := h.manager.Upcoming(ctx, id, at, n)
	if err != nil {
		writePositionError(c, id, err)
		return
	}

	if slots == nil {
		slots = []timeline.Slot{}
	}
	c.JSON(http.StatusOK, UpcomingResponse{
		ChannelID: id.String(),
		Position:  pos,
		Upcoming:  slots,
	})
}

// UpcomingPlaylist handles GET /api/channels/:id/upcoming.m3u8
func (h *PlayoutHandler) UpcomingPlaylist(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}
	at, ok := instantOf(c)
	if !ok {
		return
	}
	n := queryInt(c, "count", streaming.DefaultExportCount, 1, maxUpcomingCount)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	content, err := h.manager.UpcomingPlaylist(ctx, id, at, n)
	if err != nil {
		writePositionError(c, id, err)
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", content)
}

// Session handles GET /api/channels/:id/session
func (h *PlayoutHandler) Session(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	s, found := h.manager.Session(id)
	if !found {
		writePositionError(c, id, streaming.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// ListSessions handles GET /api/sessions
func (h *PlayoutHandler) ListSessions(c *gin.Context) {
	sessions := h.manager.Sessions()
	infos := make([]streaming.SessionInfo, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	c.JSON(http.StatusOK, SessionListResponse{Sessions: infos})
}

// Invalidate handles POST /api/channels/:id/invalidate
func (h *PlayoutHandler) Invalidate(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.manager.Invalidate(ctx, id); err != nil {
		writePositionError(c, id, err)
		return
	}

	s, found := h.manager.Session(id)
	if !found {
		writePositionError(c, id, streaming.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// Join handles POST /api/channels/:id/viewers
func (h *PlayoutHandler) Join(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	n, err := h.manager.Join(id)
	if err != nil {
		writePositionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, ViewerResponse{ChannelID: id.String(), Viewers: n})
}

// Leave handles DELETE /api/channels/:id/viewers
func (h *PlayoutHandler) Leave(c *gin.Context) {
	id, ok := parseID(c, "id", "channel")
	if !ok {
		return
	}

	n, err := h.manager.Leave(id)
	if err != nil {
		writePositionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, ViewerResponse{ChannelID: id.String(), Viewers: n})
}

// SetupPlayoutRoutes registers position and session routes
func SetupPlayoutRoutes(apiGroup *gin.RouterGroup, manager playoutManager, sources source.Resolver) {
	handler := NewPlayoutHandler(manager, sources)

	apiGroup.GET("/sessions", handler.ListSessions)

	channels := apiGroup.Group("/channels/:id")
	{
		channels.GET("/now", handler.Now)
		channels.GET("/upcoming", handler.Upcoming)
		channels.GET("/upcoming.m3u8", handler.UpcomingPlaylist)
		channels.GET("/session", handler.Session)
		channels.POST("/invalidate", handler.Invalidate)
		channels.POST("/viewers", handler.Join)
		channels.DELETE("/viewers", handler.Leave)
	}
}
