package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/source"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

// stubSources resolves every URL to a fixed CDN path, or fails with err
type stubSources struct {
	err error
}

func (s stubSources) Resolve(_ context.Context, _ models.SourceKind, sourceURL string) (*source.Resolved, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &source.Resolved{
		PlayableURL: strings.Replace(sourceURL, "cdn.example.com", "edge.example.com", 1),
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// apiEpoch is midnight UTC today, the epoch of a channel started today
var apiEpoch = time.Now().UTC().Truncate(24 * time.Hour)

// setupPlayoutRouter starts one looping channel at apiEpoch
func setupPlayoutRouter(t *testing.T, sources source.Resolver) (*gin.Engine, *streaming.Manager, uuid.UUID) {
	t.Helper()

	dir := setupScheduleDir(t)
	manager := newTestManager(t, dir)

	ch := models.NewChannel("Loop", "loop.yaml", 0, apiEpoch)
	_, err := manager.Start(context.Background(), ch)
	require.NoError(t, err)

	router, apiGroup := newRouter()
	SetupPlayoutRoutes(apiGroup, manager, sources)
	return router, manager, ch.ID
}

func at(d time.Duration) string {
	return apiEpoch.Add(d).Format(time.RFC3339)
}

func TestNow(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, stubSources{})

	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/now?at="+at(25*time.Minute), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[NowResponse](t, w)
	assert.Equal(t, "clip-2", resp.Position.Item.Title)
	assert.Equal(t, 5*time.Minute, resp.Position.Offset)
	assert.Equal(t, 5*time.Minute, resp.Remaining)
	assert.Equal(t, "https://edge.example.com/clip-2.mp4", resp.PlayableURL)
	require.NotNil(t, resp.ExpiresAt)
	assert.Empty(t, resp.PlayableError)
}

func TestNow_WrapsAcrossLaps(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, nil)

	// 3 x 10 minute clips: 95 minutes in is lap 3, clip-0, 5 minutes in
	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/now?at="+at(95*time.Minute), nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[NowResponse](t, w)
	assert.Equal(t, "clip-0", resp.Position.Item.Title)
	assert.Equal(t, 3, resp.Position.Lap)
	assert.Equal(t, 5*time.Minute, resp.Position.Offset)
	assert.Empty(t, resp.PlayableURL)
}

func TestNow_FarFutureGeneratesNothing(t *testing.T) {
	router, manager, id := setupPlayoutRouter(t, nil)

	s, ok := manager.Session(id)
	require.True(t, ok)
	before := s.Snapshot()

	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/now?at=2100-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "instant_out_of_range", decode[ErrorResponse](t, w).Error)
	assert.Same(t, before, s.Snapshot())
}

func TestNow_ResolveFailureStillReportsAiring(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, stubSources{err: source.ErrUnavailable})

	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/now?at="+at(time.Minute), nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[NowResponse](t, w)
	assert.Equal(t, "clip-0", resp.Position.Item.Title)
	assert.Empty(t, resp.PlayableURL)
	assert.Contains(t, resp.PlayableError, source.ErrUnavailable.Error())
}

func TestNow_Errors(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantError  string
	}{
		{"invalid id", "/api/channels/nope/now", http.StatusBadRequest, "invalid_id"},
		{"invalid instant", "/api/channels/" + id.String() + "/now?at=yesterday", http.StatusBadRequest, "invalid_instant"},
		{"not on air", "/api/channels/" + uuid.NewString() + "/now", http.StatusNotFound, "not_on_air"},
		{"before epoch", "/api/channels/" + id.String() + "/now?at=" + at(-time.Minute), http.StatusConflict, "not_started"},
		{"far future", "/api/channels/" + id.String() + "/now?at=2100-01-01T00:00:00Z", http.StatusBadRequest, "instant_out_of_range"},
		{"far future upcoming", "/api/channels/" + id.String() + "/upcoming?at=2100-01-01T00:00:00Z", http.StatusBadRequest, "instant_out_of_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestUpcoming(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/upcoming?count=4&at="+at(12*time.Minute), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[UpcomingResponse](t, w)
	assert.Equal(t, "clip-1", resp.Position.Item.Title)
	require.Len(t, resp.Upcoming, 4)

	want := []string{"clip-2", "clip-0", "clip-1", "clip-2"}
	for i, slot := range resp.Upcoming {
		assert.Equal(t, want[i], slot.Item.Title)
		assert.Equal(t, apiEpoch.Add(time.Duration(20+10*i)*time.Minute), slot.StartsAt.UTC())
	}
}

func TestUpcomingPlaylist(t *testing.T) {
	router, _, id := setupPlayoutRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/channels/"+id.String()+"/upcoming.m3u8?count=3&at="+at(time.Minute), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "#EXTM3U"))
	assert.Equal(t, 4, strings.Count(body, "#EXTINF"))
	assert.Contains(t, body, "https://cdn.example.com/clip-0.mp4")
	assert.NotContains(t, body, "#EXT-X-ENDLIST")
}

func TestSessionsAndViewers(t *testing.T) {
	router, manager, id := setupPlayoutRouter(t, nil)
	base := "/api/channels/" + id.String()

	w := doJSON(t, router, http.MethodPost, base+"/viewers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[ViewerResponse](t, w).Viewers)

	w = doJSON(t, router, http.MethodPost, base+"/viewers", nil)
	assert.Equal(t, 2, decode[ViewerResponse](t, w).Viewers)

	w = doJSON(t, router, http.MethodDelete, base+"/viewers", nil)
	assert.Equal(t, 1, decode[ViewerResponse](t, w).Viewers)

	w = doJSON(t, router, http.MethodGet, base+"/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[streaming.SessionInfo](t, w)
	assert.Equal(t, 1, info.Viewers)
	assert.Equal(t, "Loop", info.Name)
	assert.True(t, info.Repeat)

	w = doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[SessionListResponse](t, w).Sessions, 1)

	w = doJSON(t, router, http.MethodPost, base+"/invalidate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, streaming.StateActive, decode[streaming.SessionInfo](t, w).State)

	require.NoError(t, manager.Stop(id))
	w = doJSON(t, router, http.MethodPost, base+"/viewers", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWritePositionError_Fallthrough(t *testing.T) {
	router, apiGroup := newRouter()
	apiGroup.GET("/boom", func(c *gin.Context) {
		writePositionError(c, uuid.Nil, errors.New("boom"))
	})

	w := doJSON(t, router, http.MethodGet, "/api/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "position_failed", decode[ErrorResponse](t, w).Error)
}
