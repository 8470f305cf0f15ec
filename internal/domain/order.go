package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата подтверждена, сток списан.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю (терминальный).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён (терминальный).
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — по заказу оформлен возврат (терминальный).
	OrderStatusRefunded OrderStatus = "refunded"
)

// Address — почтовый адрес доставки или выставления счёта.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem — неизменяемый снимок товарной позиции на момент оформления заказа.
// Каталожные правки цены или названия не меняют уже размещённый заказ.
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	SKU         string
	Qty         int32
	// Price — цена за единицу, зафиксированная при добавлении в корзину.
	Price decimal.Decimal
	// Subtotal всегда равен Price * Qty.
	Subtotal  decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует заказ, его позиции и платёж.
type Order struct {
	ID         string
	Number     string
	CustomerID string
	Status     OrderStatus
	// Total — сумма Subtotal всех позиций, фиксируется при создании
	// и после этого не пересчитывается.
	Total decimal.Decimal

	ShippingAddress Address
	BillingAddress  Address
	CustomerEmail   string
	CustomerPhone   string
	Notes           string

	Items   []OrderItem
	Payment Payment

	// StockCommitted выставляется ровно один раз — переходом,
	// который списывает сток. Защищает от повторного списания.
	StockCommitted bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotItem замораживает строку корзины в позицию заказа.
// Цена берётся из корзины (price-at-addition), имя и SKU — из каталога.
func SnapshotItem(line CartLine, product Product, now time.Time) OrderItem {
	price := line.PriceAtAdd
	if price.IsZero() {
		price = product.EffectivePrice()
	}
	return OrderItem{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Qty:         line.Qty,
		Price:       price,
		Subtotal:    price.Mul(decimal.NewFromInt32(line.Qty)),
		CreatedAt:   now,
	}
}

// NewOrderNumber генерирует человекочитаемый номер заказа.
// Формат: ORD-YYYYMMDD-XXXX, суффикс случайный, последовательность не гарантируется.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.Total.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: price * qty.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !item.Subtotal.Equal(item.Price.Mul(decimal.NewFromInt32(item.Qty))) {
			errs = append(errs, ErrItemSubtotalMismatch)
		}
		calc = calc.Add(item.Subtotal)
	}
	if !calc.Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	if payErrs := o.Payment.Validate(); len(payErrs) > 0 {
		errs = append(errs, payErrs...)
	}
	if !o.Payment.Amount.Equal(o.Total) {
		errs = append(errs, ErrPaymentAmountMismatch)
	}

	return errs
}

// IsTerminal сообщает, достиг ли заказ терминального статуса.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// KnownOrderStatus проверяет, что значение принадлежит перечислению статусов.
func KnownOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}
