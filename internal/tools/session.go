package tools

import (
	"context"
	"sync"
	"time"

	"github.com/lazypower/mnemo/internal/store"
)

// DefaultSessionID is used when a caller does not identify itself.
const DefaultSessionID = "default"

// Session holds per-caller state: the current project.
type Session struct {
	ID string

	mu      sync.Mutex
	project string

	lastSeen time.Time // guarded by Sessions.mu
}

// Project returns the current project.
func (s *Session) Project() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// SetProject changes the current project.
func (s *Session) SetProject(name string) {
	s.mu.Lock()
	s.project = name
	s.mu.Unlock()
}

// Sessions is a registry of sessions keyed by ID.
type Sessions struct {
	mu       sync.Mutex
	initial  string
	sessions map[string]*Session
}

// NewSessions creates a registry whose new sessions start in initialProject.
func NewSessions(initialProject string) *Sessions {
	if initialProject == "" {
		initialProject = store.DefaultProject
	}
	return &Sessions{initial: initialProject, sessions: make(map[string]*Session)}
}

// Get returns the session with the given ID, creating it if needed.
func (s *Sessions) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, project: s.initial}
		s.sessions[id] = sess
	}
	sess.lastSeen = time.Now()
	return sess
}

// Forget drops a session.
func (s *Sessions) Forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// PruneIdle forgets sessions not used since before. The default session is
// kept. It returns the number of sessions dropped.
func (s *Sessions) PruneIdle(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if id != DefaultSessionID && sess.lastSeen.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep prunes sessions idle for longer than idle every interval until ctx
// is done.
func (s *Sessions) Sweep(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.PruneIdle(now.Add(-idle))
		}
	}
}

// ProjectDeleted moves every session whose current project is name back to
// the default project.
func (s *Sessions) ProjectDeleted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initial == name {
		s.initial = store.DefaultProject
	}
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.project == name {
			sess.project = store.DefaultProject
		}
		sess.mu.Unlock()
	}
}
