// Package gateway реализует детерминированный симулятор платёжного шлюза.
// Он никогда не трогает складской сток и не делает сетевых вызовов, поэтому
// авторизация может выполняться внутри той же атомарной единицы работы,
// что и списание стока.
package gateway

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
)

// GatewayName записывается в платёж как имя обработавшего шлюза.
const GatewayName = "DUMMY_GATEWAY"

// Карточные бренды, выводимые из первой цифры номера.
const (
	BrandVisa       = "VISA"
	BrandMastercard = "MASTERCARD"
	BrandAmex       = "AMEX"
	BrandUnknown    = "UNKNOWN"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{16}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// CardDetails — карточные реквизиты, переданные на авторизацию.
type CardDetails struct {
	Number     string
	HolderName string
	// Expiry в формате MM/YY.
	Expiry string
	CVV    string
}

// Validate отклоняет некорректные реквизиты до любых мутаций.
func (c CardDetails) Validate() error {
	switch {
	case !cardNumberPattern.MatchString(c.Number):
		return domain.ErrCardNumberInvalid
	case strings.TrimSpace(c.HolderName) == "":
		return domain.ErrCardHolderRequired
	case !expiryPattern.MatchString(c.Expiry):
		return domain.ErrCardExpiryInvalid
	case !cvvPattern.MatchString(c.CVV):
		return domain.ErrCardCVVInvalid
	}
	return nil
}

// AuthorizationResult — исход авторизации. Отклонённая карта — нормальный
// доменный исход (Status=failed), а не ошибка.
type AuthorizationResult struct {
	Status         domain.PaymentStatus
	TransactionRef string
	CardBrand      string
	CardLastFour   string
	AuthorizedAt   time.Time
}

// Authorizer описывает платёжный шлюз с точки зрения ядра.
type Authorizer interface {
	// Authorize проводит авторизацию на сумму amount. Ошибка возвращается
	// только для невалидных реквизитов; отказ шлюза кодируется статусом.
	Authorize(amount decimal.Decimal, card CardDetails) (AuthorizationResult, error)
}

// dummyAuthorizer — детерминированная реализация для разработки и тестов:
// бренд по первой цифре, отказ для номеров, оканчивающихся на 0000.
type dummyAuthorizer struct {
	logger *log.Entry
	// now подменяется в тестах.
	now func() time.Time
}

// NewAuthorizer возвращает симулятор шлюза.
func NewAuthorizer(logger *log.Entry) Authorizer {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	return &dummyAuthorizer{logger: logger, now: time.Now}
}

// Authorize валидирует реквизиты, определяет бренд и применяет правило отказа.
func (a *dummyAuthorizer) Authorize(amount decimal.Decimal, card CardDetails) (AuthorizationResult, error) {
	if err := card.Validate(); err != nil {
		return AuthorizationResult{}, err
	}

	lastFour := card.Number[len(card.Number)-4:]
	brand := DetermineBrand(card.Number)

	if lastFour == "0000" {
		// Гарантированный воспроизводимый путь отказа для тестов.
		a.logger.WithField("card_brand", brand).Warn("payment declined: card ending in 0000 is rejected")
		return AuthorizationResult{
			Status:       domain.PaymentStatusFailed,
			CardBrand:    brand,
			CardLastFour: lastFour,
		}, nil
	}

	ref := newTransactionRef()
	a.logger.WithFields(log.Fields{
		"transaction_ref": ref,
		"card_brand":      brand,
		"amount":          amount.String(),
	}).Info("payment authorized")

	return AuthorizationResult{
		Status:         domain.PaymentStatusCompleted,
		TransactionRef: ref,
		CardBrand:      brand,
		CardLastFour:   lastFour,
		AuthorizedAt:   a.now().UTC(),
	}, nil
}

// DetermineBrand выводит бренд из первой цифры номера карты.
// Чисто иллюстративная эвристика, без проверки Луна.
func DetermineBrand(cardNumber string) string {
	switch {
	case strings.HasPrefix(cardNumber, "4"):
		return BrandVisa
	case strings.HasPrefix(cardNumber, "5"):
		return BrandMastercard
	case strings.HasPrefix(cardNumber, "3"):
		return BrandAmex
	default:
		return BrandUnknown
	}
}

// NewTransactionRef генерирует уникальный transaction ref.
// Формат: TXN-XXXXXXXX (первые 8 символов uuid в верхнем регистре).
func newTransactionRef() string {
	return "TXN-" + strings.ToUpper(uuid.NewString()[:8])
}

// SynthesizeTransactionRef выдаёт transaction ref вне авторизации —
// для административного подтверждения cash-on-delivery платежей.
func SynthesizeTransactionRef() string {
	return newTransactionRef()
}

var _ Authorizer = (*dummyAuthorizer)(nil)
