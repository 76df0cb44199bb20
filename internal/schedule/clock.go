package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var errBadHMS = errors.New("expected HH:MM:SS")

// ParseHMS parses an "HH:MM:SS" (or "H:MM:SS") string into a duration.
// Minutes and seconds must be below 60; hours are unbounded.
func ParseHMS(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, errBadHMS
	}

	values := make([]int64, 3)
	for i, p := range parts {
		if p == "" {
			return 0, errBadHMS
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, errBadHMS
		}
		values[i] = n
	}

	if values[1] >= 60 || values[2] >= 60 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}

	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second, nil
}

// ParseClock parses a time of day in "HH:MM:SS" form as an offset from midnight
func ParseClock(s string) (time.Duration, error) {
	d, err := ParseHMS(s)
	if err != nil {
		return 0, err
	}
	if d >= day {
		return 0, fmt.Errorf("time of day must be before 24:00:00")
	}
	return d, nil
}

// FormatHMS renders a duration as HH:MM:SS, truncating sub-second precision
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
