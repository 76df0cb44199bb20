package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/playout"
)

const shuffleSchedule = `
content:
  - key: c1
    collection: Clips
    order: shuffle
sequence:
  - key: s1
    items:
      - all: c1
playout:
  - sequence: s1
    repeat: true
`

// setupScheduleRouter creates a router with the preview route over three test clips
func setupScheduleRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()

	dir := setupScheduleDir(t)
	resolver := collection.NewStaticResolver(map[string][]collection.MediaItem{"Clips": testClips(3)})
	handler := NewScheduleHandler(resolver, dir, 50, playout.Options{})

	router, apiGroup := newRouter()
	SetupScheduleRoutes(apiGroup, handler)
	return router, dir
}

func TestPreview_FromPath(t *testing.T) {
	router, _ := setupScheduleRouter(t)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	w := doJSON(t, router, http.MethodPost, "/api/schedules/preview", map[string]any{
		"path":       "loop.yaml",
		"max_items":  7,
		"start_time": start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PreviewResponse](t, w)
	assert.Equal(t, 7, resp.Count)
	assert.Equal(t, 70*time.Minute, resp.TotalDuration)
	assert.True(t, resp.Repeat)
	assert.Equal(t, "clip-0", resp.Items[6].Title)
	require.NotNil(t, resp.Items[6].StartsAt)
	assert.Equal(t, start.Add(time.Hour), resp.Items[6].StartsAt.UTC())
}

func TestPreview_CappedByHandlerLimit(t *testing.T) {
	router, _ := setupScheduleRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/schedules/preview", map[string]any{
		"path":      "loop.yaml",
		"max_items": 5000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, decode[PreviewResponse](t, w).Count)
}

func TestPreview_InlineSeedIsReproducible(t *testing.T) {
	router, _ := setupScheduleRouter(t)

	body := map[string]any{"yaml": shuffleSchedule, "max_items": 9, "seed": 42}
	first := decode[PreviewResponse](t, doJSON(t, router, http.MethodPost, "/api/schedules/preview", body))
	second := decode[PreviewResponse](t, doJSON(t, router, http.MethodPost, "/api/schedules/preview", body))

	require.Len(t, first.Items, 9)
	require.NotNil(t, first.Seed)
	assert.Equal(t, int64(42), *first.Seed)
	for i := range first.Items {
		assert.Equal(t, first.Items[i].Title, second.Items[i].Title)
	}
}

func TestPreview_Errors(t *testing.T) {
	router, dir := setupScheduleRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("content: [\n"), 0644))

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{"neither source", map[string]any{}, http.StatusBadRequest, "invalid_request"},
		{"both sources", map[string]any{"path": "loop.yaml", "yaml": loopSchedule}, http.StatusBadRequest, "invalid_request"},
		{"escaping path", map[string]any{"path": "../etc/passwd"}, http.StatusBadRequest, "invalid_path"},
		{"syntax error", map[string]any{"path": "broken.yaml"}, http.StatusUnprocessableEntity, "schedule_syntax"},
		{"missing playout", map[string]any{"path": "loop.yaml", "playout_index": 2}, http.StatusUnprocessableEntity, "playout_not_found"},
		{"unknown collection", map[string]any{"yaml": `
content:
  - key: c1
    collection: Nope
    order: chronological
sequence:
  - key: s1
    items:
      - all: c1
playout:
  - sequence: s1
`}, http.StatusUnprocessableEntity, "empty_playout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/schedules/preview", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantError, decode[ErrorResponse](t, w).Error)
		})
	}
}
