package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики операций оформления и оплаты заказов.
type CheckoutMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersConfirmed prometheus.Counter
	checkoutFailed  prometheus.Counter

	// Исходы авторизации платежей: completed / failed
	paymentOutcomes *prometheus.CounterVec

	// Конфликты при работе со стоком и версиями агрегата
	stockConflicts   prometheus.Counter
	versionConflicts prometheus.Counter

	// Гистограммы времени выполнения операций
	operationDuration *prometheus.HistogramVec

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewCheckoutMetrics создаёт новый экземпляр метрик checkout.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Total number of orders created from carts",
		}),
		ordersConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_orders_confirmed_total",
			Help: "Total number of orders confirmed (stock committed)",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_operations_failed_total",
			Help: "Total number of checkout operations that failed",
		}),
		paymentOutcomes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_payment_outcomes_total",
			Help: "Payment authorization outcomes grouped by result",
		}, []string{"outcome"}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_conflicts_total",
			Help: "Total number of insufficient-stock or stock-contention rejections",
		}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on the order aggregate",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_operation_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderConfirmed увеличивает счётчик подтверждённых заказов.
func (m *CheckoutMetrics) RecordOrderConfirmed() {
	m.ordersConfirmed.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных операций.
func (m *CheckoutMetrics) RecordCheckoutFailed() {
	m.checkoutFailed.Inc()
}

// RecordPaymentOutcome фиксирует исход авторизации платежа.
func (m *CheckoutMetrics) RecordPaymentOutcome(outcome string) {
	m.paymentOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStockConflict увеличивает счётчик отказов по стоку.
func (m *CheckoutMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов optimistic locking.
func (m *CheckoutMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordOperationDuration записывает длительность операции.
func (m *CheckoutMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
