package kafka

import (
	"time"

	"github.com/saveitforlater/checkout/internal/domain"
)

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderConfirmed     EventType = "order.confirmed"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypePaymentCompleted   EventType = "payment.completed"
	EventTypePaymentFailed      EventType = "payment.failed"
	EventTypePaymentStatusSet   EventType = "payment.status_set"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "checkout.order.events"
	TopicDeadLetterQueue = "checkout.dlq" // Dead Letter Queue для failed messages
)

// Заголовки DLQ-сообщений: маршрут и причина отказа едут в headers,
// payload остаётся нетронутым исходным событием.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent — конверт события жизненного цикла заказа. Оркестратор
// сериализует его в payload outbox-записи; наружу он уходит как есть.
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	CustomerID  string                 `json:"customer_id"`
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent собирает конверт по текущему состоянию заказа.
func NewOrderEvent(eventType EventType, order *domain.Order, metadata map[string]interface{}) OrderEvent {
	return OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
	}
}
