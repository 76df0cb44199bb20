// Package playlist encodes a channel's upcoming airings as an HLS media
// playlist, one entry per scheduled item.
package playlist

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/stwalsh4118/airwave/internal/logger"
)

// ErrNoEntries is returned when there is nothing to encode
var ErrNoEntries = errors.New("playlist has no entries")

// Entry is one scheduled airing
type Entry struct {
	URI      string        // Playable or source URL of the item
	Title    string        // Written to the EXTINF title
	Duration time.Duration // Logical duration on the timeline
	StartsAt time.Time     // Written as EXT-X-PROGRAM-DATE-TIME

	// Discontinuity marks a change of source before this entry
	Discontinuity bool
}

// Build creates a media playlist from entries. mediaSequence numbers the
// first entry; closed appends EXT-X-ENDLIST for channels that go off air.
func Build(entries []Entry, mediaSequence uint64, closed bool) (*m3u8.MediaPlaylist, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	// winsize 0 keeps every entry in the encoded output
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(entries)))
	if err != nil {
		return nil, fmt.Errorf("failed to create media playlist: %w", err)
	}
	pl.SeqNo = mediaSequence

	var maxDuration float64
	for i, e := range entries {
		if e.URI == "" {
			return nil, fmt.Errorf("entry %d: uri cannot be empty", i)
		}
		if e.Duration <= 0 {
			return nil, fmt.Errorf("entry %d: duration must be greater than 0", i)
		}

		seconds := e.Duration.Seconds()
		maxDuration = math.Max(maxDuration, seconds)

		seg := &m3u8.MediaSegment{
			SeqId:           mediaSequence + uint64(i),
			URI:             e.URI,
			Duration:        seconds,
			Title:           e.Title,
			Discontinuity:   e.Discontinuity,
			ProgramDateTime: e.StartsAt,
		}
		if err := pl.AppendSegment(seg); err != nil {
			return nil, fmt.Errorf("failed to append entry %d: %w", i, err)
		}
	}

	pl.TargetDuration = uint(math.Ceil(maxDuration))
	if closed {
		pl.Closed = true
	}
	return pl, nil
}

// Encode builds the playlist and returns its m3u8 text
func Encode(entries []Entry, mediaSequence uint64, closed bool) ([]byte, error) {
	pl, err := Build(entries, mediaSequence, closed)
	if err != nil {
		return nil, err
	}
	buf := pl.Encode()
	if buf == nil {
		return nil, fmt.Errorf("failed to encode playlist")
	}
	return buf.Bytes(), nil
}

// WriteFile writes content to path atomically: readers see either the old
// file or the new one, never a partial write
func WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".playlist-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tempFile != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	tempFile = nil

	logger.Log.Debug().
		Str("path", path).
		Int("bytes", len(content)).
		Msg("Playlist written atomically")

	return nil
}
