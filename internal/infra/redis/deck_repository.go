package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"aiquiz-service/internal/domain"
	"aiquiz-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DeckRepository caches whole decks as JSON under deck:{deckID} and falls
// back to a loader on cache miss. Cache errors degrade to the loader.
type DeckRepository struct {
	client *redis.Client
	loader memory.DeckLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDeckRepository(client *redis.Client, loader memory.DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	if deck, ok := r.cached(ctx, deckID); ok {
		return deck, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if deck, ok := r.cached(ctx, deckID); ok {
			return deck, nil
		}
		deck, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}
		r.store(ctx, deck)
		return deck, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

// SaveDeck persists through the loader and overwrites the cached copy.
func (r *DeckRepository) SaveDeck(ctx context.Context, deck domain.Deck) error {
	w, ok := r.loader.(memory.DeckWriter)
	if !ok {
		return domain.ErrReadOnlyDecks
	}
	if err := w.SaveDeck(ctx, deck); err != nil {
		return err
	}
	r.store(ctx, deck)
	return nil
}

func (r *DeckRepository) cached(ctx context.Context, deckID string) (domain.Deck, bool) {
	raw, err := r.client.Get(ctx, r.key(deckID)).Bytes()
	if err != nil {
		return domain.Deck{}, false
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return domain.Deck{}, false
	}
	return deck, true
}

func (r *DeckRepository) store(ctx context.Context, deck domain.Deck) {
	raw, err := json.Marshal(deck)
	if err != nil {
		return
	}
	// best effort; the loader stays authoritative
	_ = r.client.Set(ctx, r.key(deck.ID), raw, r.ttlWithJitter()).Err()
}

func (r *DeckRepository) key(deckID string) string {
	return "deck:" + deckID
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
