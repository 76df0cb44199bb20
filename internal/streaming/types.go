// Package streaming runs one timeline session per on-air channel: it owns the
// channel's generator, publishes immutable playlist snapshots, and answers
// position queries for every viewer from the same computation.
package streaming

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SessionState represents the health of a channel timeline session
type SessionState string

// Session state constants
const (
	StateStarting SessionState = "starting" // First snapshot being generated
	StateActive   SessionState = "active"   // Snapshot current, generator healthy
	StateDegraded SessionState = "degraded" // Last regeneration failed, serving last-known-good
	StateStopped  SessionState = "stopped"  // Session removed, context canceled
)

// String returns the string representation of the session state
func (s SessionState) String() string {
	return string(s)
}

// IsValid checks if the session state is a known valid value
func (s SessionState) IsValid() bool {
	switch s {
	case StateStarting, StateActive, StateDegraded, StateStopped:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a transition from current state to newState is valid
func (s SessionState) CanTransitionTo(newState SessionState) bool {
	switch s {
	case StateStarting:
		return newState == StateActive || newState == StateStopped
	case StateActive:
		return newState == StateDegraded || newState == StateStopped
	case StateDegraded:
		return newState == StateActive || newState == StateStopped
	default:
		return false
	}
}

// registry holds the running sessions keyed by channel ID
type registry struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

func newRegistry() *registry {
	return &registry{sessions: make(map[uuid.UUID]*Session)}
}

// Get retrieves a session by channel ID (thread-safe)
func (r *registry) Get(channelID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[channelID]
	return s, ok
}

// PutIfAbsent stores s unless a session already exists for its channel and
// returns the session that ended up registered
func (r *registry) PutIfAbsent(s *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.ChannelID]; ok {
		return existing, false
	}
	r.sessions[s.ChannelID] = s
	return s, true
}

// Delete removes and returns the session for a channel ID (thread-safe)
func (r *registry) Delete(channelID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channelID]
	if ok {
		delete(r.sessions, channelID)
	}
	return s, ok
}

// List returns all sessions ordered by channel name (thread-safe)
func (r *registry) List() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Name != sessions[j].Name {
			return sessions[i].Name < sessions[j].Name
		}
		return sessions[i].ChannelID.String() < sessions[j].ChannelID.String()
	})
	return sessions
}

// Len returns the number of running sessions
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
