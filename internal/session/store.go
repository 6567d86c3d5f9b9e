// Package session keeps the loaded dashboards in memory. A session lives
// from its load until it is explicitly deleted; nothing persists across
// process restarts.
package session

import (
	"sort"
	"sync"

	"github.com/opsdash/servicekpi/internal/report"
)

// Store is an in-memory session registry. The mutex also serializes
// report computation against concurrent loads, keeping the pipeline's
// one-request-at-a-time semantics.
type Store struct {
	sessions map[string]*report.Session
	mu       sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*report.Session)}
}

// Put registers a session under its id.
func (s *Store) Put(sess *report.Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*report.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete removes a session. It reports whether one existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// IDs returns the registered session ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
