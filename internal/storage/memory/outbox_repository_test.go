package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePull(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()

	for i := 0; i < 3; i++ {
		_, err := repo.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   fmt.Sprintf("order-%d", i),
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	// Старые записи идут первыми.
	if pending[0].AggregateID != "order-0" {
		t.Fatalf("expected oldest first, got %s", pending[0].AggregateID)
	}
	for _, msg := range pending {
		if msg.ID == "" {
			t.Fatal("enqueue must assign an id")
		}
	}

	limited, err := repo.PullPending(ctx, 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestOutboxRepository_MarkSent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()

	msg, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.created",
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(ctx, msg.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("sent message must leave the backlog, got %d", len(pending))
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxMessageNotFound) {
		t.Fatalf("expected ErrOutboxMessageNotFound, got %v", err)
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("empty outbox must report zero stats: %+v", stats)
	}

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1", EventType: "order.created"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-2", EventType: "order.created"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("oldest pending timestamp must be set")
	}

	if err := repo.MarkFailed(ctx, first.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("failed message must leave pending count, got %d", stats.PendingCount)
	}
}
