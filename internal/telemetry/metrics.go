package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout session requests by outcome",
	}, []string{"outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by event type and outcome",
	}, []string{"type", "outcome"})

	ReconcileStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_step_failures_total",
		Help: "Best-effort reconciliation steps that failed",
	}, []string{"step"})

	OrdersRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_recorded_total",
		Help: "Order inserts by result (inserted or duplicate)",
	}, []string{"result"})

	SubscriptionSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_syncs_total",
		Help: "Subscription synchronizations by outcome",
	}, []string{"outcome"})

	WorkerTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_task_duration_seconds",
		Help:    "Duration of background reconciliation tasks",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_queue_depth",
		Help: "Tasks waiting in the background queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
)
