// Package memory — in-memory реализация хранилищ для локальной разработки
// и тестов. Заказы, товары и корзины живут под общим мьютексом, поэтому
// составная операция ConfirmPaid атомарна так же, как транзакция в postgres.
package memory

import (
	"sync"

	"github.com/saveitforlater/checkout/internal/domain"
)

// Store держит общие данные для всех in-memory репозиториев.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	products map[string]domain.Product
	carts    map[string]domain.Cart
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
	}
}
