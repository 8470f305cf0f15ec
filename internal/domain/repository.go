package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
// Заказ, его позиции и платёж сохраняются как единый агрегат:
// каждая операция записи атомарна для всего графа.
type OrderRepository interface {
	// Create сохраняет новый заказ с позициями и платежом.
	// Возвращает ошибку, если запись с таким ID уже существует.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, error)
	// ListAll возвращает все заказы, новые первыми (административная выборка).
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
	// Save применяет обновления к агрегату с учётом optimistic locking
	// по Order.Version. Позиции заказа неизменяемы и не перезаписываются.
	Save(ctx context.Context, order Order) error
	// ConfirmPaid атомарно выполняет побочные эффекты подтверждающего
	// перехода: условное списание стока по каждой позиции, сохранение
	// агрегата (version CAS) и очистку корзины владельца. Всё или ничего:
	// нехватка стока, конфликт версии или сбой откатывают операцию целиком.
	ConfirmPaid(ctx context.Context, order Order) error
}

// ProductRepository описывает каталожное хранилище. Ядро читает товары
// и меняет только счётчик стока.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Create добавляет товар в каталог (используется сидированием и тестами).
	Create(ctx context.Context, product Product) error
	// AdjustStock изменяет остаток на delta (пополнение или коррекция).
	AdjustStock(ctx context.Context, id string, delta int32) error
}
