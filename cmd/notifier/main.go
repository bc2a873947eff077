package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/config"
	kafkax "github.com/ariefcatur/plantnet-orders/internal/kafka"
	"github.com/ariefcatur/plantnet-orders/internal/metrics"
	"github.com/ariefcatur/plantnet-orders/internal/notify"
	"github.com/ariefcatur/plantnet-orders/internal/observability"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-notifier"

	log := observability.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, service, log); err != nil {
		log.Fatal("notifier exited", zap.Error(err))
	}
}

func run(cfg config.Config, service string, log *zap.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, service, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	mailer, err := notify.NewMailer(cfg, log)
	if err != nil {
		return err
	}
	m := metrics.New("notifier")
	d := &notify.Dispatcher{
		Mailer:  mailer,
		Redis:   rdb,
		Log:     log,
		Metrics: m,
		Service: service,
	}

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged, orders.TopicOrderCancelled}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, log)

	// metrics only; the notifier serves no API
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.NotifierMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Strings("topics", topics),
			zap.Int("workers", cfg.NotifierWorkers),
		)
		return cons.Start(gctx, d.HandleMessage)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
