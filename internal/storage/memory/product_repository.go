package memory

import (
	"context"

	"github.com/saveitforlater/checkout/internal/domain"
)

// productRepository — in-memory каталог поверх общего Store.
type productRepository struct {
	store *Store
}

// NewProductRepository возвращает in-memory каталожный репозиторий.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{store: store}
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Create добавляет товар в каталог.
func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.products[product.ID] = product
	return nil
}

// AdjustStock изменяет остаток на delta. Отрицательная delta не может
// увести остаток ниже нуля.
func (r *productRepository) AdjustStock(_ context.Context, id string, delta int32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.StockQuantity+delta < 0 {
		return &domain.InsufficientStockError{
			ProductName: product.Name,
			Requested:   -delta,
			Available:   product.StockQuantity,
		}
	}
	product.StockQuantity += delta
	product.Version++
	r.store.products[id] = product
	return nil
}
