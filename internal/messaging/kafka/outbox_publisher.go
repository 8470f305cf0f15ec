package kafka

import (
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/saveitforlater/checkout/internal/domain"
)

// Служебные атрибуты outbox-записи при публикации уходят в заголовки:
// payload — это уже сериализованный OrderEvent, оборачивать его второй раз
// не нужно, а консьюмер может маршрутизировать по headers без десериализации.
const (
	headerOutboxID      = "x-outbox-id"
	headerAggregateType = "x-aggregate-type"
	headerEventType     = "x-event-type"
)

// orderEventPublisher шлёт outbox-события в topic заказов.
type orderEventPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher для transactional outbox.
// Пустой topic означает topic заказов по умолчанию.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &orderEventPublisher{producer: producer, topic: topic}
}

func (p *orderEventPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}
	return p.producer.Publish(p.topic, partitionKey(event), event.Payload,
		header(headerOutboxID, event.ID),
		header(headerAggregateType, event.AggregateType),
		header(headerEventType, event.EventType),
	)
}

// deadLetterPublisher уводит недоставленные события в DLQ topic. Payload
// не трогается: причина отказа, исходный topic и число попыток — в headers.
type deadLetterPublisher struct {
	producer    *Producer
	sourceTopic string
}

// NewDeadLetterPublisher создаёт publisher DLQ для событий sourceTopic.
func NewDeadLetterPublisher(producer *Producer, sourceTopic string) domain.DeadLetterPublisher {
	if sourceTopic == "" {
		sourceTopic = TopicOrderEvents
	}
	return &deadLetterPublisher{producer: producer, sourceTopic: sourceTopic}
}

func (p *deadLetterPublisher) PublishDead(event domain.OutboxMessage, attempts int, cause error) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dead letter publisher is not initialized")
	}
	return p.producer.Publish(TopicDeadLetterQueue, partitionKey(event), event.Payload,
		header(headerOutboxID, event.ID),
		header(headerEventType, event.EventType),
		header(HeaderOriginalTopic, p.sourceTopic),
		header(HeaderRetryCount, strconv.Itoa(attempts)),
		header(HeaderErrorMessage, cause.Error()),
		header(HeaderFailedAt, time.Now().UTC().Format(time.RFC3339Nano)),
	)
}

// partitionKey — ключ партиционирования: события одного агрегата
// попадают в одну партицию и сохраняют порядок.
func partitionKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

func header(key, value string) sarama.RecordHeader {
	return sarama.RecordHeader{Key: []byte(key), Value: []byte(value)}
}

var (
	_ domain.OutboxPublisher     = (*orderEventPublisher)(nil)
	_ domain.DeadLetterPublisher = (*deadLetterPublisher)(nil)
)
