package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// DefaultArchiveBaseURL is the public Internet Archive endpoint
const DefaultArchiveBaseURL = "https://archive.org"

// playableExtensions in order of preference
var playableExtensions = []string{".mp4", ".webm", ".ogv", ".mkv"}

type archiveMetadata struct {
	Files    []archiveFile `json:"files"`
	Metadata struct {
		Title any `json:"title"` // string or list of strings
	} `json:"metadata"`
}

type archiveFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Length string `json:"length"`
}

// ArchiveOrg resolves Internet Archive item and file URLs through the
// metadata API
type ArchiveOrg struct {
	baseURL string
	client  *http.Client
}

// NewArchiveOrg creates a resolver against baseURL (DefaultArchiveBaseURL when empty)
func NewArchiveOrg(baseURL string, client *http.Client) *ArchiveOrg {
	if baseURL == "" {
		baseURL = DefaultArchiveBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArchiveOrg{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Resolve implements Resolver
func (a *ArchiveOrg) Resolve(ctx context.Context, _ models.SourceKind, sourceURL string) (*Resolved, error) {
	identifier, file, err := parseArchiveURL(sourceURL)
	if err != nil {
		return nil, err
	}

	meta, err := a.fetchMetadata(ctx, identifier)
	if err != nil {
		return nil, err
	}

	f, ok := pickFile(meta.Files, file)
	if !ok {
		return nil, fmt.Errorf("%w: no playable file in archive item %q", ErrNotFound, identifier)
	}

	resolved := &Resolved{
		PlayableURL: a.baseURL + "/download/" + url.PathEscape(identifier) + "/" + escapePath(f.Name),
		Title:       titleOf(meta),
		Duration:    parseLength(f.Length),
	}

	logger.Log.Debug().
		Str("identifier", identifier).
		Str("file", f.Name).
		Dur("duration", resolved.Duration).
		Msg("Resolved archive.org source")

	return resolved, nil
}

func (a *ArchiveOrg) fetchMetadata(ctx context.Context, identifier string) (*archiveMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/metadata/"+url.PathEscape(identifier), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: archive item %q", ErrNotFound, identifier)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: metadata api returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("metadata api returned %d for %q", resp.StatusCode, identifier)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", ErrUnavailable, err)
	}

	var meta archiveMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse archive metadata: %w", err)
	}
	// Unknown identifiers come back as an empty object with status 200.
	if len(meta.Files) == 0 {
		return nil, fmt.Errorf("%w: archive item %q", ErrNotFound, identifier)
	}
	return &meta, nil
}

// parseArchiveURL accepts /details/<id>[/<file>], /download/<id>/<file>,
// or a bare identifier
func parseArchiveURL(raw string) (identifier, file string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty archive url", ErrInvalidURL)
	}
	if !strings.Contains(raw, "/") {
		return raw, "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || (parts[0] != "details" && parts[0] != "download") || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q is not an archive item url", ErrInvalidURL, raw)
	}
	if len(parts) > 2 {
		file = strings.Join(parts[2:], "/")
	}
	return parts[1], file, nil
}

func pickFile(files []archiveFile, want string) (archiveFile, bool) {
	if want != "" {
		for _, f := range files {
			if f.Name == want {
				return f, true
			}
		}
		return archiveFile{}, false
	}
	for _, ext := range playableExtensions {
		for _, f := range files {
			if strings.EqualFold(path.Ext(f.Name), ext) {
				return f, true
			}
		}
	}
	return archiveFile{}, false
}

func titleOf(meta *archiveMetadata) string {
	switch t := meta.Metadata.Title.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// parseLength reads seconds ("1234.5") or clock ("20:34", "1:02:03") lengths
func parseLength(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if strings.Count(s, ":") == 1 {
		s = "0:" + s
	}
	d, err := schedule.ParseHMS(s)
	if err != nil {
		return 0
	}
	return d
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
