package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/config"
	"github.com/ariefcatur/plantnet-orders/internal/httpx"
	"github.com/ariefcatur/plantnet-orders/internal/inventory"
	kafkax "github.com/ariefcatur/plantnet-orders/internal/kafka"
	"github.com/ariefcatur/plantnet-orders/internal/lifecycle"
	"github.com/ariefcatur/plantnet-orders/internal/memstore"
	"github.com/ariefcatur/plantnet-orders/internal/metrics"
	"github.com/ariefcatur/plantnet-orders/internal/notify"
	"github.com/ariefcatur/plantnet-orders/internal/observability"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/postgres"
	"github.com/ariefcatur/plantnet-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type orderStore interface {
	lifecycle.OrderStore
	httpx.OrderReader
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := observability.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Stores
	var (
		store  orderStore
		ledger lifecycle.Ledger
		roles  access.RoleSource
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		mem := memstore.New()
		store, ledger, roles = mem, mem, mem
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store, ledger, roles = &orders.Repo{DB: db}, &inventory.Repo{DB: db}, &access.UserRepo{DB: db}
	}

	// Redis (optional)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		roles = &access.CachedRoles{Next: roles, Redis: rdb, Log: log}
	}

	m := metrics.New("api")

	// Events: Kafka when brokers are configured, otherwise notify in process.
	var events lifecycle.Events
	if len(cfg.KafkaBrokers) > 0 {
		prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start()
		defer prod.Close()
		events = &notify.KafkaEvents{Producer: prod}
	} else {
		mailer, err := notify.NewMailer(cfg, log)
		if err != nil {
			return err
		}
		local := notify.NewLocalEvents(&notify.Dispatcher{
			Mailer:  mailer,
			Redis:   rdb,
			Log:     log.Named("notify"),
			Metrics: m,
			Service: cfg.ServiceName,
		}, 256, 2)
		defer local.Close()
		events = local
	}

	gate := access.NewGate(roles)
	coord := &lifecycle.Coordinator{
		Orders:  store,
		Ledger:  ledger,
		Gate:    gate,
		Events:  events,
		Log:     log.Named("lifecycle"),
		Metrics: m,
		Service: cfg.ServiceName,
	}

	router := httpx.NewRouter(log.Named("http"), m)
	(&httpx.API{
		Orders: store,
		Coord:  coord,
		Auth:   access.NewVerifier(cfg.JWTSecret, cfg.SessionCookie),
		Gate:   gate,
		Redis:  rdb,
		Log:    log.Named("http"),
	}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.Instrument(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return (&lifecycle.Reconciler{
			C:        coord,
			Interval: cfg.ReconcileInterval,
			Grace:    cfg.ReconcileGrace,
		}).Run(gctx)
	})
	return g.Wait()
}
