package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/broker"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/checkout"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/config"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/dedup"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/httpserver"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/logging"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/migrations"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/payments"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/reconcile"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/store"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/worker"
)

const serviceName = "n8n-masterclass-backend"

func main() {
	// Best-effort: load environment variables from .env-style files in local
	// development. These calls are safe to ignore in production environments.
	_ = godotenv.Load(
		"../.env",
		".env",
	)

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; fall back to a development logger for this one line.
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JaegerEndpoint != "" {
		tp, err := telemetry.InitTracer(serviceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	logDBTarget(logger, "primary", cfg.DatabaseURL)
	configureDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	if err := runMigrationsWithDirtyFix(db, logger); err != nil {
		logger.Fatal("failed to apply database migrations", zap.Error(err))
	}

	st, err := store.New(db)
	if err != nil {
		logger.Fatal("failed to create store", zap.Error(err))
	}

	client := payments.NewClient(payments.Config{
		SecretKey:         cfg.StripeSecretKey,
		APIURL:            cfg.StripeAPIURL,
		Timeout:           cfg.StripeTimeout,
		MaxNetworkRetries: 2,
	}, logger)

	initiator := checkout.NewInitiator(client, st, checkout.Defaults{
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	}, logger)
	syncer := reconcile.NewSynchronizer(client, st, logger)

	var publisher reconcile.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := broker.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		publisher = producer
		logger.Info("publishing registration events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	reconciler := reconcile.NewReconciler(st, syncer, publisher, logger)

	var deduper dedup.Deduper = dedup.Noop{}
	if cfg.RedisURL != "" {
		redisClient, err := dedup.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, webhook dedup disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			deduper = dedup.NewRedis(redisClient, dedup.DefaultTTL)
		}
	}

	pool := worker.New(worker.Config{
		MaxConcurrent: cfg.WorkerConcurrency,
		QueueSize:     cfg.WorkerQueueSize,
	}, logger.Named("worker"))
	pool.SetInstrumentation(worker.MetricsInstrumentation(pool))

	srv := httpserver.New(cfg, httpserver.Deps{
		Store:     st,
		Initiator: initiator,
		Verify: func(payload []byte, signature string) (models.WebhookEvent, error) {
			return payments.VerifyEvent(payload, signature, cfg.StripeWebhookSecret)
		},
		Reconciler: reconciler,
		Syncer:     syncer,
		Worker:     pool,
		Dedup:      deduper,
		Logger:     logger,
	})

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("backend starting", zap.String("addr", cfg.ServerAddress))
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func configureDB(db *sql.DB) {
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
}

func runMigrationsWithDirtyFix(db *sql.DB, logger *zap.Logger) error {
	err := migrations.Up(db, logger)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "Dirty database version") {
		return err
	}

	logger.Warn("dirty database detected, attempting to fix", zap.Error(err))
	if fixErr := migrations.FixDirtyDatabase(db); fixErr != nil {
		logger.Error("failed to fix dirty database", zap.Error(fixErr))
		return err
	}
	return migrations.Up(db, logger)
}

func logDBTarget(logger *zap.Logger, name, dsn string) {
	// Avoid logging secrets: only log hostname + database path.
	u, err := url.Parse(dsn)
	if err != nil {
		logger.Info("database configured", zap.String("name", name), zap.NamedError("dsn_parse_error", err))
		return
	}
	logger.Info("database configured", zap.String("name", name), zap.String("host", u.Hostname()), zap.String("db", strings.TrimPrefix(u.Path, "/")))
}
