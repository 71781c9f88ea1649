package memory

import (
	"context"
	"sync"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.LiveSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.LiveSession),
	}
}

// Add registers a session; an id can only be registered once.
func (s *SessionStore) Add(session *app.LiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrSessionExists
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(sessionID string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Exists(_ context.Context, sessionID string) (bool, error) {
	_, ok := s.Get(sessionID)
	return ok, nil
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
