package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/airwave/internal/cache"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Cache    string                 `json:"cache,omitempty"`
	Sessions int                    `json:"sessions"`
	Degraded []string               `json:"degraded,omitempty"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// sessionLister reports the running channel sessions
type sessionLister interface {
	Sessions() []*streaming.Session
}

// healthChecker is implemented by caches backed by a remote store
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       *db.DB
	sessions sessionLister
	cache    cache.Cache
}

// NewHealthHandler creates a new health check handler. sessions and c may be nil.
func NewHealthHandler(database *db.DB, sessions sessionLister, c cache.Cache) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions, cache: c}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}

	if h.sessions != nil {
		sessions := h.sessions.Sessions()
		response.Sessions = len(sessions)
		for _, s := range sessions {
			if s.State() == streaming.StateDegraded {
				response.Degraded = append(response.Degraded, s.ChannelID.String())
			}
		}
	}

	// A cache outage degrades lookups but does not fail requests
	if h.cache != nil {
		response.Cache = "healthy"
		response.Details["cache_stats"] = h.cache.Stats()
		if checker, ok := h.cache.(healthChecker); ok {
			if err := checker.HealthCheck(ctx); err != nil {
				response.Cache = "unhealthy"
				response.Details["cache_error"] = err.Error()
			}
		}
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	if stats, err := h.db.Stats(ctx); err == nil {
		response.Details["catalog"] = stats
	} else {
		response.Details["catalog_error"] = err.Error()
	}
	if len(response.Degraded) > 0 || response.Cache == "unhealthy" {
		response.Status = "degraded"
	}
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, sessions sessionLister, c cache.Cache) {
	handler := NewHealthHandler(database, sessions, c)
	apiGroup.GET("/health", handler.Check)
}
