package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"aiquiz-service/internal/domain"
)

func TestDeckRepositoryCaches(t *testing.T) {
	loader := &countingLoader{DeckLoader: NewStaticDeckStore(map[string]domain.Deck{"deck-1": sampleDeck()})}
	repo := NewDeckRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		deck, err := repo.GetDeck(context.Background(), "deck-1")
		if err != nil {
			t.Fatalf("get deck: %v", err)
		}
		if len(deck.Questions) != 1 {
			t.Fatalf("unexpected deck %+v", deck)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}
}

func TestDeckRepositoryExpires(t *testing.T) {
	loader := &countingLoader{DeckLoader: NewStaticDeckStore(map[string]domain.Deck{"deck-1": sampleDeck()})}
	repo := NewDeckRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetDeck(context.Background(), "deck-1"); err != nil {
		t.Fatalf("get deck: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetDeck(context.Background(), "deck-1"); err != nil {
		t.Fatalf("get deck after ttl: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.calls)
	}
}

func TestDeckRepositorySaveWritesThrough(t *testing.T) {
	store := NewStaticDeckStore(nil)
	repo := NewDeckRepository(store, time.Minute)

	deck := sampleDeck()
	if err := repo.SaveDeck(context.Background(), deck); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.LoadDeck(context.Background(), deck.ID); err != nil {
		t.Fatalf("expected deck in backing store: %v", err)
	}
	if _, ok := repo.cached(deck.ID); !ok {
		t.Fatalf("saved deck should be cached")
	}
}

func TestDeckRepositoryReadOnlyLoader(t *testing.T) {
	repo := NewDeckRepository(loaderFunc(func(context.Context, string) (domain.Deck, error) {
		return domain.Deck{}, domain.ErrDeckNotFound
	}), time.Minute)

	if err := repo.SaveDeck(context.Background(), sampleDeck()); !errors.Is(err, domain.ErrReadOnlyDecks) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if _, err := repo.GetDeck(context.Background(), "missing"); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	DeckLoader
	calls int
}

func (l *countingLoader) LoadDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	l.calls++
	return l.DeckLoader.LoadDeck(ctx, deckID)
}

type loaderFunc func(ctx context.Context, deckID string) (domain.Deck, error)

func (f loaderFunc) LoadDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	return f(ctx, deckID)
}

func sampleDeck() domain.Deck {
	return domain.Deck{
		ID:    "deck-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:               "q1",
				Kind:             domain.KindMultipleChoice,
				Prompt:           "What is 2 + 2?",
				Options:          []string{"3", "4"},
				CorrectAnswer:    "4",
				TimeLimitSeconds: 15,
			},
		},
	}
}
