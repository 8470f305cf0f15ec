// Package stock реализует Stock Ledger — единственный компонент, которому
// разрешено менять складские остатки каталога.
package stock

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
)

// Ledger сверяет и списывает складские остатки. Атомарность списания
// обеспечивает хранилище (row-lock в postgres, общий мьютекс в памяти);
// Ledger отвечает за протокол: reserve-проверка без списания и
// идемпотентный per-order commit.
type Ledger struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	logger   *log.Entry
}

// NewLedger создаёт Stock Ledger поверх каталожного и заказного хранилищ.
func NewLedger(products domain.ProductRepository, orders domain.OrderRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "stock-ledger")
	}
	return &Ledger{products: products, orders: orders, logger: logger}
}

// Reserve проверяет доступность стока по каждой строке корзины, ничего
// не списывая. Отдельной операции release нет: неуспешная авторизация
// просто никогда не доходит до Commit. Первая нехватка возвращается как
// InsufficientStockError с деталями requested/available.
func (l *Ledger) Reserve(ctx context.Context, lines []domain.CartLine) error {
	for _, line := range lines {
		product, err := l.products.Get(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if product.StockQuantity < line.Qty {
			l.logger.WithFields(log.Fields{
				"product_id": product.ID,
				"requested":  line.Qty,
				"available":  product.StockQuantity,
			}).Warn("stock reservation check failed")
			return &domain.InsufficientStockError{
				ProductName: product.Name,
				Requested:   line.Qty,
				Available:   product.StockQuantity,
			}
		}
	}
	return nil
}

// ReserveItems — reserve-проверка по уже замороженным позициям заказа.
// Используется перед отложенной оплатой: доступность могла уехать с момента
// создания заказа.
func (l *Ledger) ReserveItems(ctx context.Context, items []domain.OrderItem) error {
	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.CartLine{ProductID: item.ProductID, Qty: item.Qty})
	}
	return l.Reserve(ctx, lines)
}

// Commit окончательно списывает сток заказа. Идемпотентен per-order:
// повторный вызов для заказа с уже списанным стоком — no-op. Списание,
// сохранение агрегата и очистка корзины выполняются одной единицей работы
// в OrderRepository.ConfirmPaid; условное списание там же повторно
// сверяет остаток, закрывая гонку между Reserve и Commit.
func (l *Ledger) Commit(ctx context.Context, order *domain.Order) error {
	if order.StockCommitted {
		l.logger.WithField("order_id", order.ID).Debug("stock already committed, skipping")
		return nil
	}

	order.StockCommitted = true
	if err := l.orders.ConfirmPaid(ctx, *order); err != nil {
		order.StockCommitted = false
		return err
	}
	order.Version++
	return nil
}

// Adjust корректирует остаток товара: пополнение поставкой, возврат позиций
// отменённого заказа, ручная коррекция.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int32) error {
	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
	}).Info("adjusting stock")
	return l.products.AdjustStock(ctx, productID, delta)
}
