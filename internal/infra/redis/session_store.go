package redis

import (
	"context"
	"sync"
	"time"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps live sessions in process and marks them in Redis so
// other instances (and operators) can see which session ids are alive. A
// session's Host never leaves the instance that created it; other instances
// only reach it through the Redis bus.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.LiveSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.LiveSession),
	}
}

// Add claims the liveness key; an id already marked by any instance is rejected.
func (s *SessionStore) Add(session *app.LiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrSessionExists
	}
	claimed, err := s.client.SetNX(context.Background(), s.key(session.ID), session.DeckID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
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

// Exists checks the local map first and falls back to the liveness key, so
// sessions hosted by another instance are visible too.
func (s *SessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	if _, ok := s.Get(sessionID); ok {
		return true, nil
	}
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Refresh extends the liveness marker of every local session.
func (s *SessionStore) Refresh(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Expire(ctx, s.key(id), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// KeepAlive refreshes markers every half TTL until ctx is done.
func (s *SessionStore) KeepAlive(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
