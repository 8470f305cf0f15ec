package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа по заказу.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан вместе с заказом, авторизация не выполнялась.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusProcessing — платёж захвачен обработчиком; защищает от двойной оплаты.
	PaymentStatusProcessing PaymentStatus = "processing"
	// PaymentStatusCompleted — авторизация успешна, присвоен transaction ref.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж (терминальный).
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — средства возвращены (терминальный).
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusCancelled — платёж отменён до завершения (терминальный).
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentMethod — способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// IsCard сообщает, оплачивается ли заказ картой через шлюз.
func (m PaymentMethod) IsCard() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodDebitCard
}

// KnownPaymentMethod проверяет принадлежность значения перечислению.
func KnownPaymentMethod(m PaymentMethod) bool {
	return m.IsCard() || m == PaymentMethodCashOnDelivery
}

// KnownPaymentStatus проверяет принадлежность значения перечислению.
func KnownPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment описывает платёж, связанный один-к-одному с заказом.
type Payment struct {
	ID     string
	Method PaymentMethod
	Status PaymentStatus
	// Amount всегда равен Order.Total.
	Amount decimal.Decimal
	// TransactionRef присваивается только при успешной авторизации.
	TransactionRef string
	// Маскированные данные карты: бренд и последние четыре цифры.
	CardBrand    string
	CardLastFour string
	Gateway      string
	// PaidAt — момент авторизации; нулевой, пока платёж не завершён.
	PaidAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if !KnownPaymentMethod(p.Method) {
		errs = append(errs, ErrPaymentMethodUnknown)
	}
	if p.Amount.IsNegative() {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}
