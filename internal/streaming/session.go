package streaming

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/schedule"
	"github.com/stwalsh4118/airwave/internal/timeline"
)

// Session is the running timeline of one channel. Position reads load the
// published snapshot without locking; only generation takes genMu.
type Session struct {
	ChannelID    uuid.UUID
	Name         string
	Epoch        time.Time
	SchedulePath string
	PlayoutIndex int
	StartedAt    time.Time

	snapshot atomic.Pointer[timeline.Playlist]
	viewers  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	// genMu guards the generator and the document it was built from
	genMu sync.Mutex
	gen   *playout.Generator
	doc   *schedule.Document

	mu        sync.RWMutex
	state     SessionState
	lastErr   *SessionError
	lastErrAt time.Time
}

// SessionInfo is a point-in-time summary of a session
type SessionInfo struct {
	ChannelID   uuid.UUID     `json:"channel_id"`
	Name        string        `json:"name"`
	State       SessionState  `json:"state"`
	Viewers     int           `json:"viewers"`
	Items       int           `json:"items"`
	Covered     time.Duration `json:"covered"`
	Repeat      bool          `json:"repeat"`
	Complete    bool          `json:"complete"`
	WindowStart time.Duration `json:"window_start"`
	Seed        int64         `json:"seed"`
	GeneratedAt time.Time     `json:"generated_at"`
	StartedAt   time.Time     `json:"started_at"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt *time.Time    `json:"last_error_at,omitempty"`
}

// Snapshot returns the published playlist snapshot
func (s *Session) Snapshot() *timeline.Playlist {
	return s.snapshot.Load()
}

// Viewers returns the number of joined viewers
func (s *Session) Viewers() int {
	return int(s.viewers.Load())
}

// State returns the session state
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the most recent generation failure, nil once healthy
func (s *Session) LastError() *SessionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Seed returns the shuffle seed the current generator runs with
func (s *Session) Seed() int64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gen == nil {
		return 0
	}
	return s.gen.Seed()
}

// Sources returns every schedule file the current document was built from
func (s *Session) Sources() []string {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.doc == nil {
		return nil
	}
	return append([]string(nil), s.doc.Sources...)
}

// Info summarizes the session
func (s *Session) Info() SessionInfo {
	pl := s.Snapshot()
	info := SessionInfo{
		ChannelID: s.ChannelID,
		Name:      s.Name,
		State:     s.State(),
		Viewers:   s.Viewers(),
		Seed:      s.Seed(),
		StartedAt: s.StartedAt,
	}
	if pl != nil {
		info.Items = len(pl.Items)
		info.Covered = pl.Covered()
		info.Repeat = pl.Repeat
		info.Complete = pl.Complete
		info.WindowStart = pl.Start()
		info.GeneratedAt = pl.GeneratedAt
	}
	if lastErr := s.LastError(); lastErr != nil {
		s.mu.RLock()
		at := s.lastErrAt
		s.mu.RUnlock()
		info.LastError = lastErr.Error()
		info.LastErrorAt = &at
	}
	return info
}

// setState moves the session to newState when the transition is allowed
func (s *Session) setState(newState SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == newState {
		return true
	}
	if !s.state.CanTransitionTo(newState) {
		return false
	}
	s.state = newState
	return true
}

// recordFailure marks the session degraded while it keeps serving its snapshot
func (s *Session) recordFailure(err *SessionError, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = at
	if s.state.CanTransitionTo(StateDegraded) {
		s.state = StateDegraded
	}
}

// recordSuccess clears any failure and marks the session active
func (s *Session) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
	s.lastErrAt = time.Time{}
	if s.state.CanTransitionTo(StateActive) {
		s.state = StateActive
	}
}

// join adds a viewer and returns the new count
func (s *Session) join() int {
	return int(s.viewers.Add(1))
}

// leave removes a viewer and returns the new count, never going below zero
func (s *Session) leave() int {
	for {
		cur := s.viewers.Load()
		if cur <= 0 {
			return 0
		}
		if s.viewers.CompareAndSwap(cur, cur-1) {
			return int(cur - 1)
		}
	}
}
