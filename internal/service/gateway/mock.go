package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/saveitforlater/checkout/internal/domain"
)

// MockAuthorizer — конфигурируемая заглушка Authorizer для тестов.
type MockAuthorizer struct {
	Result AuthorizationResult
	Err    error

	AuthorizeCalls int
	LastAmount     decimal.Decimal
}

// NewMockAuthorizer возвращает mock с успешным сценарием по умолчанию.
func NewMockAuthorizer() *MockAuthorizer {
	return &MockAuthorizer{
		Result: AuthorizationResult{
			Status:         domain.PaymentStatusCompleted,
			TransactionRef: "TXN-MOCK0001",
			CardBrand:      BrandVisa,
			CardLastFour:   "4242",
		},
	}
}

// Authorize возвращает заранее настроенный результат и считает вызовы.
func (m *MockAuthorizer) Authorize(amount decimal.Decimal, card CardDetails) (AuthorizationResult, error) {
	m.AuthorizeCalls++
	m.LastAmount = amount
	return m.Result, m.Err
}

var _ Authorizer = (*MockAuthorizer)(nil)
