package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	broadcastsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omnichat_broadcasts_total",
			Help: "Total number of prompt broadcasts",
		},
	)

	promptsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnichat_prompts_delivered_total",
			Help: "Total number of prompts delivered to receivers",
		},
		[]string{"agent"},
	)

	fragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnichat_fragments_total",
			Help: "Total number of streamed reply fragments applied to transcripts",
		},
		[]string{"agent"},
	)

	streamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omnichat_stream_duration_seconds",
			Help:    "Duration of one streamed exchange from send to terminal event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnichat_stream_errors_total",
			Help: "Total number of exchanges that ended with a stream error",
		},
		[]string{"agent"},
	)

	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnichat_probes_total",
			Help: "Total number of connectivity probes by result",
		},
		[]string{"result"},
	)

	clipboardCopiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnichat_clipboard_copies_total",
			Help: "Total number of clipboard mirror attempts by status",
		},
		[]string{"status"},
	)

	initOnce sync.Once
)

// InitMetrics registers all metrics with the default Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			broadcastsTotal,
			promptsDeliveredTotal,
			fragmentsTotal,
			streamDuration,
			streamErrorsTotal,
			probesTotal,
			clipboardCopiesTotal,
		)
	})
}

// RecordBroadcast records one prompt broadcast.
func RecordBroadcast() {
	broadcastsTotal.Inc()
}

// RecordDelivery records one prompt delivered to an agent's receiver.
func RecordDelivery(agent string) {
	promptsDeliveredTotal.WithLabelValues(agent).Inc()
}

// RecordFragment records one fragment applied to an agent's transcript.
func RecordFragment(agent string) {
	fragmentsTotal.WithLabelValues(agent).Inc()
}

// RecordStream records the duration of one completed exchange.
func RecordStream(agent string, d time.Duration) {
	streamDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RecordStreamError records an exchange that ended with an error.
func RecordStreamError(agent string) {
	streamErrorsTotal.WithLabelValues(agent).Inc()
}

// RecordProbe records a connectivity probe result.
func RecordProbe(ok bool) {
	result := "disconnected"
	if ok {
		result = "connected"
	}
	probesTotal.WithLabelValues(result).Inc()
}

// RecordClipboardCopy records a clipboard mirror attempt.
func RecordClipboardCopy(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	clipboardCopiesTotal.WithLabelValues(status).Inc()
}
