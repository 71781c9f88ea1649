package app

import (
	"context"
	"strings"
	"time"

	"aiquiz-service/internal/domain"
	"github.com/google/uuid"
)

// DeckRepository reads and stores decks.
type DeckRepository interface {
	DeckReader
	SaveDeck(ctx context.Context, deck domain.Deck) error
}

// DeckService is the editor's persistence entry point.
type DeckService struct {
	decks DeckRepository
	now   func() time.Time
}

func NewDeckService(decks DeckRepository) *DeckService {
	return &DeckService{decks: decks, now: time.Now}
}

// Save normalises and validates deck, assigning missing ids, then stores it.
// Nothing is written when validation fails.
func (s *DeckService) Save(ctx context.Context, deck domain.Deck) (domain.Deck, error) {
	deck = NormalizeDeck(deck)
	if err := deck.Validate(); err != nil {
		return domain.Deck{}, err
	}
	deck.UpdatedAt = s.now().UTC()
	if err := s.decks.SaveDeck(ctx, deck); err != nil {
		return domain.Deck{}, err
	}
	return deck, nil
}

func (s *DeckService) Get(ctx context.Context, deckID string) (domain.Deck, error) {
	return s.decks.GetDeck(ctx, deckID)
}

// NormalizeDeck fills ids and default time limits and clears options of
// short-answer questions.
func NormalizeDeck(deck domain.Deck) domain.Deck {
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	deck.Title = strings.TrimSpace(deck.Title)
	questions := make([]domain.Question, len(deck.Questions))
	for i, q := range deck.Questions {
		questions[i] = NormalizeQuestion(q)
	}
	deck.Questions = questions
	return deck
}

// NormalizeQuestion applies question defaults without touching the answer key.
func NormalizeQuestion(q domain.Question) domain.Question {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.TimeLimitSeconds <= 0 {
		q.TimeLimitSeconds = domain.DefaultTimeLimitSeconds
	}
	if q.Kind == domain.KindShortAnswer {
		q.Options = []string{}
	}
	return q
}
