package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aiquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DeckStore keeps authored decks as JSONB in the decks table.
type DeckStore struct {
	pool *pgxpool.Pool
}

func NewDeckStore(pool *pgxpool.Pool) *DeckStore {
	return &DeckStore{pool: pool}
}

func (s *DeckStore) LoadDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM decks WHERE id=$1`, deckID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deck{}, domain.ErrDeckNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("load deck: %w", err)
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return domain.Deck{}, fmt.Errorf("unmarshal deck: %w", err)
	}
	return deck, nil
}

func (s *DeckStore) SaveDeck(ctx context.Context, deck domain.Deck) error {
	raw, err := json.Marshal(deck)
	if err != nil {
		return fmt.Errorf("marshal deck: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO decks (id, title, data, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		deck.ID, deck.Title, raw, deck.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	return nil
}
