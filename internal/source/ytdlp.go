package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

// Timeout for yt-dlp execution
const defaultYtDlpTimeout = 45 * time.Second

// ErrYtDlpNotFound is returned when the yt-dlp binary is not available
var ErrYtDlpNotFound = errors.New("yt-dlp not found in PATH")

// ytDlpResult is the subset of yt-dlp's --dump-json output we use
type ytDlpResult struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	URL      string  `json:"url"`
}

// YtDlp resolves YouTube URLs by running yt-dlp
type YtDlp struct {
	path    string
	timeout time.Duration
}

// NewYtDlp creates a resolver running the binary at path ("yt-dlp" when empty)
func NewYtDlp(path string, timeout time.Duration) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = defaultYtDlpTimeout
	}
	return &YtDlp{path: path, timeout: timeout}
}

// CheckInstalled checks that the yt-dlp binary can be found
func (y *YtDlp) CheckInstalled() error {
	if _, err := exec.LookPath(y.path); err != nil {
		return ErrYtDlpNotFound
	}
	return nil
}

// Resolve implements Resolver
func (y *YtDlp) Resolve(ctx context.Context, _ models.SourceKind, sourceURL string) (*Resolved, error) {
	if err := checkHTTPURL(sourceURL); err != nil {
		return nil, err
	}
	if err := y.CheckInstalled(); err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("source_url", sourceURL).
		Msg("Resolving source with yt-dlp")

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	// #nosec G204 -- binary path comes from configuration, url is validated above
	cmd := exec.CommandContext(ctx,
		y.path,
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"-f", "best[ext=mp4]/best",
		"--",
		sourceURL,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Log.Error().
				Str("source_url", sourceURL).
				Msg("yt-dlp execution timed out")
			return nil, fmt.Errorf("%w: yt-dlp timed out", ErrUnavailable)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			logger.Log.Error().
				Str("source_url", sourceURL).
				Str("stderr", stderr).
				Msg("yt-dlp execution failed")

			if isUnavailableVideo(stderr) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, stderr)
			}
			return nil, fmt.Errorf("%w: yt-dlp: %s", ErrUnavailable, stderr)
		}

		return nil, fmt.Errorf("failed to run yt-dlp: %w", err)
	}

	var result ytDlpResult
	if err := json.Unmarshal(output, &result); err != nil {
		logger.Log.Error().
			Err(err).
			Str("source_url", sourceURL).
			Msg("Failed to parse yt-dlp JSON output")
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("%w: yt-dlp returned no stream url", ErrNotFound)
	}

	return &Resolved{
		PlayableURL: result.URL,
		Title:       result.Title,
		Duration:    time.Duration(result.Duration * float64(time.Second)),
		ExpiresAt:   streamExpiry(result.URL),
	}, nil
}

func isUnavailableVideo(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{"video unavailable", "private video", "has been removed", "does not exist"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// streamExpiry reads the expire query parameter googlevideo URLs carry
func streamExpiry(stream string) time.Time {
	u, err := url.Parse(stream)
	if err != nil {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(u.Query().Get("expire"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
