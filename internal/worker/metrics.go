package worker

import (
	"time"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
)

// MetricsInstrumentation reports task durations and queue depth to Prometheus.
func MetricsInstrumentation(p *Pool) *Instrumentation {
	depth := func(*Task) {
		telemetry.WorkerQueueDepth.Set(float64(p.Stats().QueueDepth))
	}
	return &Instrumentation{
		OnEnqueue: depth,
		OnStart:   depth,
		OnComplete: func(_ *Task, d time.Duration) {
			telemetry.WorkerTaskDuration.WithLabelValues("succeeded").Observe(d.Seconds())
		},
		OnFail: func(_ *Task, _ error, d time.Duration) {
			telemetry.WorkerTaskDuration.WithLabelValues("failed").Observe(d.Seconds())
		},
	}
}
