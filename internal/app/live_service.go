package app

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Add(session *LiveSession) error
	Get(sessionID string) (*LiveSession, bool)
	// Exists reports whether sessionID is live on any instance sharing the
	// repository, not only this one.
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(sessionID string)
}

// DeckReader loads authored decks (from cache/backing store).
type DeckReader interface {
	GetDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// LiveSession binds one Host to its id and host key. The host key is the
// capability handed to whoever created the session; holding it is what makes
// a connection the presenter.
type LiveSession struct {
	ID        string
	DeckID    string
	Title     string
	CreatedAt time.Time

	hostKey string
	host    *Host

	mu           sync.Mutex
	hostAttached bool
	finals       *domain.FinalArtifacts
}

// NewLiveSession is exported for infrastructure layers and tests that need to seed sessions.
func NewLiveSession(id string, deck domain.Deck, host *Host, hostKey string) *LiveSession {
	return &LiveSession{
		ID:        id,
		DeckID:    deck.ID,
		Title:     deck.Title,
		CreatedAt: time.Now(),
		hostKey:   hostKey,
		host:      host,
	}
}

func (s *LiveSession) Host() *Host {
	return s.host
}

// CheckHostKey reports whether key grants the host role.
func (s *LiveSession) CheckHostKey(key string) error {
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.hostKey)) != 1 {
		return domain.ErrHostKeyMismatch
	}
	return nil
}

// attachHost hands the host role to one connection at a time.
func (s *LiveSession) attachHost(key string) (func(), error) {
	if err := s.CheckHostKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostAttached {
		return nil, domain.ErrHostAttached
	}
	s.hostAttached = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			s.hostAttached = false
			s.mu.Unlock()
		})
	}
	return release, nil
}

// Finals returns the generated artifacts, if any.
func (s *LiveSession) Finals() (domain.FinalArtifacts, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finals == nil {
		return domain.FinalArtifacts{}, false
	}
	return *s.finals, true
}

func (s *LiveSession) setFinals(a domain.FinalArtifacts) {
	s.mu.Lock()
	s.finals = &a
	s.mu.Unlock()
}

// Close shuts the host down.
func (s *LiveSession) Close() error {
	if s.host == nil {
		return nil
	}
	return s.host.Close()
}

// LiveOptions tunes session construction.
type LiveOptions struct {
	Scheduler    Scheduler
	TickInterval time.Duration
	Clock        func() time.Time
	Logger       zerolog.Logger
}

// LiveService owns live sessions. It is the only place a Host is built, so
// each session has exactly one state machine for its lifetime.
type LiveService struct {
	sessions SessionRepository
	decks    DeckReader
	bus      channel.Bus
	opts     LiveOptions
	log      zerolog.Logger
}

func NewLiveService(sessions SessionRepository, decks DeckReader, bus channel.Bus, opts LiveOptions) *LiveService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &LiveService{
		sessions: sessions,
		decks:    decks,
		bus:      bus,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "live_service").Logger(),
	}
}

// CreateSession starts a lobby for deckID and returns it with its host key.
func (s *LiveService) CreateSession(ctx context.Context, deckID string) (*LiveSession, string, error) {
	deck, err := s.decks.GetDeck(ctx, deckID)
	if err != nil {
		return nil, "", err
	}

	id := uuid.NewString()
	ch, err := s.bus.Open(ctx, channel.SessionName(id))
	if err != nil {
		return nil, "", err
	}
	host, err := NewHost(HostOptions{
		SessionID:    id,
		Questions:    deck.Questions,
		Channel:      ch,
		Scheduler:    s.opts.Scheduler,
		TickInterval: s.opts.TickInterval,
		Clock:        s.opts.Clock,
		Logger:       s.opts.Logger,
	})
	if err != nil {
		_ = ch.Close()
		return nil, "", err
	}

	hostKey := uuid.NewString()
	session := NewLiveSession(id, deck, host, hostKey)
	session.CreatedAt = s.opts.Clock()
	if err := s.sessions.Add(session); err != nil {
		_ = host.Close()
		return nil, "", err
	}
	s.log.Info().Str("session_id", id).Str("deck_id", deck.ID).Int("questions", len(deck.Questions)).Msg("session created")
	return session, hostKey, nil
}

// Session looks up a live session.
func (s *LiveService) Session(sessionID string) (*LiveSession, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// AttachHost grants the presenter role for sessionID to the caller holding
// hostKey. The returned release func must be called when the caller leaves.
func (s *LiveService) AttachHost(_ context.Context, sessionID, hostKey string) (*Host, func(), error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	release, err := session.attachHost(hostKey)
	if err != nil {
		return nil, nil, err
	}
	return session.host, release, nil
}

// OpenStudent connects a new participant to sessionID on its own channel
// endpoint. The session's host may run on another instance as long as both
// share the repository and the bus.
func (s *LiveService) OpenStudent(ctx context.Context, sessionID string) (*StudentClient, error) {
	ok, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	ch, err := s.bus.Open(ctx, channel.SessionName(sessionID))
	if err != nil {
		return nil, err
	}
	return NewStudentClient(ch, StudentOptions{Clock: s.opts.Clock, Logger: s.opts.Logger}), nil
}

// EndSession tears a session down. Only the host key holder may end it.
func (s *LiveService) EndSession(_ context.Context, sessionID, hostKey string) error {
	session, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	if err := session.CheckHostKey(hostKey); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	s.log.Info().Str("session_id", sessionID).Msg("session ended")
	return session.Close()
}
