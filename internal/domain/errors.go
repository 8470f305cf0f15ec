package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("order total must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка нарушения инварианта subtotal = price * qty.
	ErrItemSubtotalMismatch = errors.New("item subtotal does not match price * qty")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// Ошибка несоответствия суммы платежа сумме заказа.
	ErrPaymentAmountMismatch = errors.New("payment amount does not match order total")
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodUnknown = errors.New("unknown payment method")

	// ErrEmptyCart — оформление заказа из пустой корзины (ошибка вызывающего).
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrderNotFound возвращается и для неизвестного заказа, и для чужого:
	// доступ не-владельца не должен раскрывать существование заказа.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAlreadyExists — заказ с таким id или номером уже сохранён.
	// Номер заказа случайный, поэтому коллизию безопасно повторить с новым.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrStockContention — не удалось получить блокировку стока за отведённое
	// время; операцию безопасно повторить.
	ErrStockContention = errors.New("stock lock contention, retry")
	// ErrPaymentNotPending — платёж уже обработан или обрабатывается.
	ErrPaymentNotPending = errors.New("payment is not pending")
	// ErrPaymentMethodNotCard — карточная оплата недоступна для этого заказа
	// (например, cash on delivery).
	ErrPaymentMethodNotCard = errors.New("order payment method is not card-based")
	// ErrNotAuthorized — операция доступна только администратору.
	ErrNotAuthorized = errors.New("operation requires admin role")
	// ErrOutboxMessageNotFound — сообщение outbox не найдено по ID.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// Ошибки валидации карточных реквизитов: отклоняются до любых мутаций.
	ErrCardNumberInvalid  = errors.New("card number must be 16 digits")
	ErrCardExpiryInvalid  = errors.New("card expiry must be in MM/YY format")
	ErrCardCVVInvalid     = errors.New("card cvv must be 3 or 4 digits")
	ErrCardHolderRequired = errors.New("card holder name is required")
)

// InsufficientStockError сообщает о нехватке стока с деталями,
// достаточными для решения о повторе на стороне вызывающего.
type InsufficientStockError struct {
	ProductName string
	Requested   int32
	Available   int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// IllegalTransitionError сообщает о запрещённом переходе статуса.
type IllegalTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// ValidationError агрегирует ошибки валидации входных данных операции.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error { return e.Errs }

// NewValidationError оборачивает непустой список ошибок валидации.
func NewValidationError(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации входа.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет, является ли ошибка отсутствием заказа или товара.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound)
}

// IsContention проверяет, является ли ошибка транзиентной блокировочной.
func IsContention(err error) bool {
	return errors.Is(err, ErrStockContention)
}

// IsInsufficientStock извлекает детали нехватки стока, если ошибка о ней.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
