// Package app собирает зависимости и запускает сервис checkout.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/metrics"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
	"github.com/saveitforlater/checkout/internal/service/outbox"
	"github.com/saveitforlater/checkout/internal/service/stock"
	transport "github.com/saveitforlater/checkout/internal/transport/http"
)

const shutdownTimeout = 5 * time.Second

// Run запускает приложение и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := BuildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(logger)

	checkoutMetrics := metrics.NewCheckoutMetrics()
	ledger := stock.NewLedger(deps.Products, deps.Orders, log.WithField("component", "stock-ledger"))
	authorizer := gateway.NewAuthorizer(log.WithField("component", "payment-gateway"))

	svc := checkout.NewService(checkout.Deps{
		Orders:    deps.Orders,
		Products:  deps.Products,
		Carts:     deps.Carts,
		CartCache: deps.CartCache,
		Ledger:    ledger,
		Gateway:   authorizer,
		Outbox:    deps.Outbox,
		Metrics:   checkoutMetrics,
		Logger:    log.WithField("component", "checkout"),
	})

	// Outbox worker публикует события только при настроенном брокере;
	// без Kafka события копятся в outbox до следующего запуска.
	if producer := deps.Producer(); producer != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, kafka.TopicOrderEvents)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
		)
		go worker.Run(ctx)
	}

	apiServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: transport.NewServer(svc, deps.Checks, log.WithField("component", "http")).Handler(),
	}
	metricsServer := startMetricsServer(ctx, cfg.MetricsAddr, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiServer, logger)
		shutdownHTTP(metricsServer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsServer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает служебный HTTP-сервер с /metrics.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
