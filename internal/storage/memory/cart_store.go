package memory

import (
	"context"
	"time"

	"github.com/saveitforlater/checkout/internal/domain"
)

// cartStore — in-memory хранилище корзин поверх общего Store.
type cartStore struct {
	store *Store
}

// NewCartStore возвращает in-memory хранилище корзин.
func NewCartStore(store *Store) domain.CartStore {
	return &cartStore{store: store}
}

func cloneCart(cart domain.Cart) domain.Cart {
	clone := cart
	clone.Lines = make([]domain.CartLine, len(cart.Lines))
	copy(clone.Lines, cart.Lines)
	return clone
}

// Get возвращает корзину владельца; отсутствующая корзина — пустая.
func (s *cartStore) Get(_ context.Context, ownerID string) (domain.Cart, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	cart, ok := s.store.carts[ownerID]
	if !ok {
		return domain.Cart{OwnerID: ownerID}, nil
	}
	return cloneCart(cart), nil
}

// Save перезаписывает корзину целиком.
func (s *cartStore) Save(_ context.Context, cart domain.Cart) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	cart.UpdatedAt = time.Now().UTC()
	s.store.carts[cart.OwnerID] = cloneCart(cart)
	return nil
}

// Clear удаляет корзину владельца.
func (s *cartStore) Clear(_ context.Context, ownerID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	delete(s.store.carts, ownerID)
	return nil
}
