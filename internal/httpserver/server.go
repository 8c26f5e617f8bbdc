package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/config"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/dedup"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/handlers"
	appmiddleware "github.com/PortNumber53/n8n-masterclass/backend/internal/middleware"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/worker"
)

// Store is the persistence the HTTP surface reads from directly.
type Store interface {
	handlers.Pinger
	handlers.OrderLookup
	handlers.SubscriptionReader
}

// Deps are the long-lived collaborators routed to by the server.
type Deps struct {
	Store      Store
	Initiator  handlers.CheckoutInitiator
	Verify     handlers.EventVerifier
	Reconciler handlers.EventHandler
	Syncer     handlers.SubscriptionSyncer
	Worker     *worker.Pool
	Dedup      dedup.Deduper
	Logger     *zap.Logger
}

// Server wraps an http.Server with convenience helpers for startup/shutdown.
type Server struct {
	httpServer *http.Server
	worker     *worker.Pool
	logger     *zap.Logger

	drained   chan struct{}
	drainOnce sync.Once
}

// New constructs an HTTP server using the provided configuration and dependencies.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appmiddleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.Recoverer)
	router.Use(appmiddleware.Metrics())

	router.Get("/healthz", handlers.Health)
	router.Get("/readyz", handlers.Ready(deps.Store, logger))
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/api/products", handlers.Products())
	router.Get("/api/checkout/status", handlers.OrderStatus(deps.Store, logger))
	router.HandleFunc("/api/create-checkout-session", handlers.CreateCheckoutSession(deps.Initiator, logger))
	router.HandleFunc("/api/webhooks/stripe", handlers.StripeWebhook(handlers.WebhookDeps{
		Verify:     deps.Verify,
		Handler:    deps.Reconciler,
		Dispatcher: deps.Worker,
		Dedup:      deps.Dedup,
		Logger:     logger.Named("webhook"),
	}))

	if cfg.AdminAPIToken != "" && deps.Syncer != nil {
		router.Post("/api/billing/subscriptions/sync", handlers.SyncSubscription(deps.Syncer, deps.Store, cfg.AdminAPIToken, logger))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, worker: deps.Worker, logger: logger, drained: make(chan struct{})}
}

// Start begins serving HTTP traffic and starts the worker. After Shutdown
// it returns only once the worker has drained, so callers may release
// shared resources as soon as it returns.
func (s *Server) Start() error {
	if s.worker != nil {
		s.logger.Info("starting background worker")
		s.worker.Start(context.Background())
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-s.drained
	}
	return err
}

// Shutdown stops accepting requests first, then drains the worker so
// acknowledged webhook events still get processed.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.drainOnce.Do(func() { close(s.drained) })

	err := s.httpServer.Shutdown(ctx)
	if s.worker != nil {
		s.logger.Info("draining background worker")
		if werr := s.worker.Stop(ctx); werr != nil {
			s.logger.Error("worker shutdown error", zap.Error(werr))
			err = errors.Join(err, werr)
		}
	}
	return err
}

// Handler exposes the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
