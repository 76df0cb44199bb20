package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChannelNotStarted is returned when the instant is before the channel epoch
	ErrChannelNotStarted = errors.New("channel has not started broadcasting yet")

	// ErrEmptyPlaylist is returned when a channel has no playlist items
	ErrEmptyPlaylist = errors.New("channel playlist is empty")

	// ErrPlaylistFinished is returned when a non-repeating playout has ended.
	// It is a terminal state (off air), not a failure.
	ErrPlaylistFinished = errors.New("channel playlist has finished (non-repeating)")

	// ErrOutsideWindow is returned when the instant falls before the oldest
	// item the snapshot still retains
	ErrOutsideWindow = errors.New("instant precedes the retained timeline window")

	// ErrPlaylistTooShort is returned when the snapshot does not reach the
	// instant and must be extended before the query is retried
	ErrPlaylistTooShort = errors.New("channel playlist does not cover the requested instant")
)

// CoverageError reports how far a snapshot must be extended
type CoverageError struct {
	// Need is the schedule offset the snapshot must cover
	Need time.Duration
	// Covered is the offset the snapshot currently reaches
	Covered time.Duration
}

// Error implements the error interface
func (e *CoverageError) Error() string {
	return fmt.Sprintf("%v: need %s, have %s", ErrPlaylistTooShort, e.Need, e.Covered)
}

// Unwrap implements error unwrapping for errors.Is
func (e *CoverageError) Unwrap() error {
	return ErrPlaylistTooShort
}

// IsFinished checks if the error means the channel is off air
func IsFinished(err error) bool {
	return errors.Is(err, ErrPlaylistFinished)
}

// IsTooShort checks if the error asks for the snapshot to be extended
func IsTooShort(err error) bool {
	return errors.Is(err, ErrPlaylistTooShort)
}
