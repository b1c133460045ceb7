package speech

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments the dispatch core updates.
// Passing a nil *Metrics to NewCommandFIFO/NewEventScheduler disables
// instrumentation entirely — every call site here is nil-guarded.
type Metrics struct {
	commandQueueDepth prometheus.Gauge
	eventQueueDepth   prometheus.Gauge
	droppedEvents     prometheus.Counter
	notifyLatency     prometheus.Histogram
}

// NewMetrics registers a fresh set of instruments under namespace. Callers
// typically construct one per process and pass it to both NewCommandFIFO
// and NewEventScheduler.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		commandQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_queue_depth",
			Help:      "Number of commands currently queued.",
		}),
		eventQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_depth",
			Help:      "Number of events currently queued.",
		}),
		droppedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events rejected because the event queue was full.",
		}),
		notifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_latency_ms",
			Help:      "Time spent delivering one due event to the callback, including any synthesized SENTENCE lead-in.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// MetricsHandler exposes the registered instruments for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
