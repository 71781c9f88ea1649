package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"aiquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DeckLoader fetches decks from a backing store (e.g., Postgres).
type DeckLoader interface {
	LoadDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// DeckWriter is implemented by loaders that can also persist decks.
type DeckWriter interface {
	SaveDeck(ctx context.Context, deck domain.Deck) error
}

// DeckRepository caches decks with TTL to avoid repeated DB hits.
type DeckRepository struct {
	loader DeckLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedDeck
}

type cachedDeck struct {
	deck      domain.Deck
	expiresAt time.Time
}

func NewDeckRepository(loader DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDeck),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	if deck, ok := r.cached(deckID); ok {
		return deck, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		if deck, ok := r.cached(deckID); ok {
			return deck, nil
		}
		deck, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}
		r.store(deck)
		return deck, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

// SaveDeck writes through to the loader and refreshes the cached copy.
func (r *DeckRepository) SaveDeck(ctx context.Context, deck domain.Deck) error {
	w, ok := r.loader.(DeckWriter)
	if !ok {
		return domain.ErrReadOnlyDecks
	}
	if err := w.SaveDeck(ctx, deck); err != nil {
		return err
	}
	r.store(deck)
	return nil
}

// Invalidate drops deckID from the cache.
func (r *DeckRepository) Invalidate(deckID string) {
	r.mu.Lock()
	delete(r.cache, deckID)
	r.mu.Unlock()
}

func (r *DeckRepository) cached(deckID string) (domain.Deck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[deckID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Deck{}, false
	}
	return entry.deck, true
}

func (r *DeckRepository) store(deck domain.Deck) {
	r.mu.Lock()
	r.cache[deck.ID] = cachedDeck{
		deck:      deck,
		expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
	}
	r.mu.Unlock()
}

func (r *DeckRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticDeckStore keeps decks in a map. It backs demos, tests and the
// database-less server mode.
type StaticDeckStore struct {
	mu    sync.RWMutex
	decks map[string]domain.Deck
}

func NewStaticDeckStore(decks map[string]domain.Deck) *StaticDeckStore {
	copied := make(map[string]domain.Deck, len(decks))
	for id, d := range decks {
		copied[id] = d
	}
	return &StaticDeckStore{decks: copied}
}

func (s *StaticDeckStore) LoadDeck(_ context.Context, deckID string) (domain.Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if deck, ok := s.decks[deckID]; ok {
		return deck, nil
	}
	return domain.Deck{}, domain.ErrDeckNotFound
}

func (s *StaticDeckStore) SaveDeck(_ context.Context, deck domain.Deck) error {
	s.mu.Lock()
	s.decks[deck.ID] = deck
	s.mu.Unlock()
	return nil
}
