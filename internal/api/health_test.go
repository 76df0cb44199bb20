package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/cache"
	"github.com/stwalsh4118/airwave/internal/models"
)

func TestHealthCheck(t *testing.T) {
	database, _, cleanup := setupTestDB(t)
	defer cleanup()

	manager := newTestManager(t, setupScheduleDir(t))
	_, err := manager.Start(context.Background(), models.NewChannel("Loop", "loop.yaml", 0, apiEpoch))
	require.NoError(t, err)

	mc := cache.NewMemoryCache(time.Minute)
	defer mc.Stop()

	router, apiGroup := newRouter()
	SetupHealthRoutes(apiGroup, database, manager, mc)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.Database)
	assert.Equal(t, "healthy", resp.Cache)
	assert.Equal(t, 1, resp.Sessions)
	assert.Empty(t, resp.Degraded)

	catalog, ok := resp.Details["catalog"].(map[string]interface{})
	require.True(t, ok, "catalog stats missing from %v", resp.Details)
	assert.Contains(t, catalog, "media")
	assert.Contains(t, catalog, "channels")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	database, _, cleanup := setupTestDB(t)
	defer cleanup()

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer rc.Close()

	router, apiGroup := newRouter()
	SetupHealthRoutes(apiGroup, database, nil, rc)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, w).Cache)

	mr.Close()
	w = doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Cache)
	assert.Contains(t, resp.Details, "cache_error")
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	database, _, cleanup := setupTestDB(t)
	cleanup()

	router, apiGroup := newRouter()
	SetupHealthRoutes(apiGroup, database, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Database)
}
