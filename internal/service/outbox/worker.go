// Package outbox публикует события заказов из transactional outbox в брокер.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	outboxPublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	outboxPendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	outboxOldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.DeadLetterPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания retry.
func WithDLQPublisher(publisher domain.DeadLetterPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// Worker переносит pending-события из outbox в брокер: публикация с retry,
// после исчерпания попыток — событие уходит в DLQ и помечается failed.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.DeadLetterPublisher
	logger    *log.Entry
	opts      WorkerOptions
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}

	return &Worker{
		repo:      repo,
		publisher: publisher,
		dlq:       opts.DLQPublisher,
		logger:    logger,
		opts:      opts,
	}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл: батч pending-событий,
// публикация каждого, обновление backlog-метрик до и после.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, event := range batch {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, event)
	}

	if len(batch) > 0 {
		w.observeBacklog(ctx)
	}
}

// process публикует одно событие; неустранимый отказ уводит его в DLQ и failed.
func (w *Worker) process(ctx context.Context, event domain.OutboxMessage) {
	publishErr := w.publishWithRetry(ctx, event)
	if publishErr == nil {
		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to mark outbox as sent")
		}
		return
	}

	w.logger.WithError(publishErr).WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	}).Error("outbox publish failed after retries")
	outboxPublishAttempts.WithLabelValues("failed").Inc()

	if err := w.publishToDLQ(event, publishErr); err != nil {
		w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to publish to DLQ")
		outboxPublishAttempts.WithLabelValues("dlq_failed").Inc()
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	delay := w.opts.RetryBaseDelay

	for attempt := 1; ; attempt++ {
		if err := w.publisher.Publish(event); err == nil {
			outboxPublishAttempts.WithLabelValues("sent").Inc()
			return nil
		} else {
			lastErr = err
			outboxPublishAttempts.WithLabelValues("retry_error").Inc()
		}

		if attempt >= w.opts.MaxAttempts {
			return fmt.Errorf("publish failed after %d attempts: %w", w.opts.MaxAttempts, lastErr)
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	outboxPendingRecords.Set(float64(stats.PendingCount))
	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if since := time.Since(stats.OldestPendingAt).Seconds(); since > 0 {
			age = since
		}
	}
	outboxOldestPendingAge.Set(age)
}

// publishToDLQ отдаёт событие в DLQ вместе с числом исчерпанных попыток
// и причиной отказа; payload остаётся нетронутым исходным событием.
func (w *Worker) publishToDLQ(event domain.OutboxMessage, publishErr error) error {
	if w.dlq == nil {
		return nil
	}
	return w.dlq.PublishDead(event, w.opts.MaxAttempts, publishErr)
}
