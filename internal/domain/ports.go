package domain

import (
	"context"
	"time"
)

// Role — роль субъекта, от имени которого выполняется операция.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal — явная идентичность вызывающего. Передаётся в каждый вызов
// оркестратора вместо скрытого thread-local контекста безопасности.
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin сообщает, обладает ли субъект административной ролью.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CartStore описывает внешнее хранилище корзин. Ядро корзины не собирает,
// только читает при оформлении и очищает при подтверждении.
type CartStore interface {
	// Get возвращает корзину владельца; отсутствие корзины — пустая корзина.
	Get(ctx context.Context, ownerID string) (Cart, error)
	// Save перезаписывает корзину целиком.
	Save(ctx context.Context, cart Cart) error
	// Clear удаляет корзину владельца.
	Clear(ctx context.Context, ownerID string) error
}

// CartCache — опциональный кэш корзин поверх CartStore (cache-aside).
type CartCache interface {
	Get(ctx context.Context, ownerID string) (Cart, error)
	Set(ctx context.Context, cart Cart) error
	Delete(ctx context.Context, ownerID string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// DeadLetterPublisher принимает событие, которое не удалось опубликовать.
// Получает число исчерпанных попыток и причину отказа: они уходят в DLQ
// вместе с нетронутым исходным payload.
type DeadLetterPublisher interface {
	PublishDead(event OutboxMessage, attempts int, cause error) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
