package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

const loopSchedule = `
content:
  - key: c1
    collection: Clips
    order: chronological
sequence:
  - key: s1
    items:
      - all: c1
playout:
  - sequence: s1
    repeat: true
`

// setupTestDB creates a test database in memory
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories, func()) {
	t.Helper()

	// Create in-memory database
	database, err := db.New(":memory:", db.Options{})
	require.NoError(t, err)

	// Run migrations
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	err = db.RunMigrations(sqlDB, "file://../../migrations")
	require.NoError(t, err)

	repos := db.NewRepositories(database)

	cleanup := func() {
		_ = database.Close()
	}

	return database, repos, cleanup
}

// setupScheduleDir writes the looping test schedule to a temp directory
func setupScheduleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loop.yaml"), []byte(loopSchedule), 0644))
	return dir
}

// testClips returns n ten-minute clips with direct source URLs
func testClips(n int) []collection.MediaItem {
	clips := make([]collection.MediaItem, n)
	for i := range clips {
		clips[i] = collection.MediaItem{
			ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("clip-%d", i))),
			Title:      fmt.Sprintf("clip-%d", i),
			Duration:   10 * time.Minute,
			SourceKind: string(models.SourceDirect),
			SourceURL:  fmt.Sprintf("https://cdn.example.com/clip-%d.mp4", i),
		}
	}
	return clips
}

// newTestManager creates a session manager over three test clips
func newTestManager(t *testing.T, scheduleDir string) *streaming.Manager {
	t.Helper()
	resolver := collection.NewStaticResolver(map[string][]collection.MediaItem{"Clips": testClips(3)})
	m, err := streaming.NewManager(resolver, streaming.Options{
		ScheduleDir: scheduleDir,
		Lookahead:   time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// doJSON performs a request against router, encoding body as JSON when set
func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorded response body
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newRouter() (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router, router.Group("/api")
}

