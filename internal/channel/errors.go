package channel

import (
	"errors"
	"fmt"
)

// Channel service errors
var (
	ErrDuplicateChannelName = errors.New("channel name already exists")
	ErrInvalidStartTime     = errors.New("start time cannot be more than 1 year in the future")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrInvalidSchedule      = errors.New("invalid channel schedule")
	ErrChannelDisabled      = errors.New("channel is disabled")
)

// ScheduleError reports why a channel's schedule file cannot drive its
// playout. It matches ErrInvalidSchedule.
type ScheduleError struct {
	Path    string
	Playout int
	// Stage is "parse", "playout" or "validate"
	Stage string
	Err   error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%v: %s playout %d (%s): %v", ErrInvalidSchedule, e.Path, e.Playout, e.Stage, e.Err)
}

func (e *ScheduleError) Is(target error) bool {
	return target == ErrInvalidSchedule
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
