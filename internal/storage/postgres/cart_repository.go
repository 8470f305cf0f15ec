package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saveitforlater/checkout/internal/domain"
)

// cartRepository хранит корзины как JSONB-документ на владельца.
type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartStore.
func NewCartRepository(store *Store) domain.CartStore {
	return &cartRepository{db: store.DB()}
}

// Get возвращает корзину владельца; отсутствующая строка — пустая корзина.
func (r *cartRepository) Get(ctx context.Context, ownerID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT lines, updated_at
		FROM carts
		WHERE owner_id = $1
	`, ownerID).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{OwnerID: ownerID}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart lines: %w", err)
	}
	return domain.Cart{OwnerID: ownerID, Lines: lines, UpdatedAt: updatedAt}, nil
}

// Save перезаписывает корзину целиком (upsert).
func (r *cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := json.Marshal(cart.Lines)
	if err != nil {
		return fmt.Errorf("encode cart lines: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (owner_id, lines, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (owner_id)
		DO UPDATE SET lines = EXCLUDED.lines, updated_at = NOW()
	`, cart.OwnerID, raw); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

// Clear удаляет корзину владельца.
func (r *cartRepository) Clear(ctx context.Context, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

var _ domain.CartStore = (*cartRepository)(nil)
