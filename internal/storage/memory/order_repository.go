package memory

import (
	"context"
	"sort"

	"github.com/saveitforlater/checkout/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository поверх общего Store.
type orderRepository struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

// cloneOrder копирует агрегат вместе со срезом позиций, чтобы избежать
// непредсказуемых мутаций через общий backing array.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = make([]domain.OrderItem, len(order.Items))
	copy(clone.Items, order.Items)
	return clone
}

// Create сохраняет новый заказ, если его id и номер ещё свободны.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.orders[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	for _, existing := range r.store.orders {
		if existing.Number == order.Number {
			return domain.ErrOrderAlreadyExists
		}
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает страницу заказов клиента, новые первыми.
func (r *orderRepository) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}
	return paginate(sortNewestFirst(result), limit, offset), nil
}

// ListAll возвращает страницу всех заказов, новые первыми.
func (r *orderRepository) ListAll(_ context.Context, limit, offset int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		result = append(result, cloneOrder(order))
	}
	return paginate(sortNewestFirst(result), limit, offset), nil
}

// Save перезаписывает агрегат, проверяя версию (optimistic locking).
// Позиции заказа неизменяемы: сохранённые позиции не трогаем.
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.saveLocked(order)
}

func (r *orderRepository) saveLocked(order domain.Order) error {
	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	next := cloneOrder(order)
	next.Items = current.Items
	next.Version = order.Version + 1
	r.store.orders[order.ID] = next
	return nil
}

// ConfirmPaid атомарно списывает сток по позициям, сохраняет агрегат
// (version CAS) и очищает корзину владельца. Один мьютекс на всё —
// нехватка стока или конфликт версии не оставляют частичных изменений.
func (r *orderRepository) ConfirmPaid(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	// Сначала сверяем весь сток, затем списываем: никаких частичных декрементов.
	for _, item := range order.Items {
		product, ok := r.store.products[item.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if product.StockQuantity < item.Qty {
			return &domain.InsufficientStockError{
				ProductName: product.Name,
				Requested:   item.Qty,
				Available:   product.StockQuantity,
			}
		}
	}
	for _, item := range order.Items {
		product := r.store.products[item.ProductID]
		product.StockQuantity -= item.Qty
		product.Version++
		r.store.products[item.ProductID] = product
	}

	if err := r.saveLocked(order); err != nil {
		// Недостижимо после ранней проверки версии, но откатывать нечего
		// нельзя — восстанавливаем сток явно.
		for _, item := range order.Items {
			product := r.store.products[item.ProductID]
			product.StockQuantity += item.Qty
			r.store.products[item.ProductID] = product
		}
		return err
	}

	delete(r.store.carts, order.CustomerID)
	return nil
}

func sortNewestFirst(orders []domain.Order) []domain.Order {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders
}

func paginate(orders []domain.Order, limit, offset int) []domain.Order {
	if offset >= len(orders) {
		return []domain.Order{}
	}
	orders = orders[offset:]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}
