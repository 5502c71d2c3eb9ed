package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Machine/tag inventory metrics
	MachinesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acquisitiond_machines_total",
			Help: "Total number of configured machines by active status",
		},
		[]string{"active"},
	)

	TagsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acquisitiond_tags_total",
			Help: "Total number of active tags across all machines",
		},
	)

	// Subscription metrics
	SubscriptionConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acquisitiond_subscription_connected",
			Help: "Whether a machine's OPC UA session is connected (1) or not (0)",
		},
		[]string{"machine"},
	)

	SubscriptionReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitiond_subscription_reconnects_total",
			Help: "Total number of subscription reconnect attempts by machine",
		},
		[]string{"machine"},
	)

	// Ingestion metrics
	SamplesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acquisitiond_samples_ingested_total",
			Help: "Total number of samples accepted by the ingestion pipeline",
		},
	)

	SamplesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitiond_samples_dropped_total",
			Help: "Total number of samples dropped by the ingestion pipeline, by reason",
		},
		[]string{"reason"},
	)

	IngestionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acquisitiond_ingestion_latency_seconds",
			Help:    "Time from sample receipt to enqueue on the Batch Sink",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Batch sink metrics
	PendingCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acquisitiond_sink_pending_samples",
			Help: "Current number of samples buffered in the Batch Sink awaiting flush",
		},
	)

	SinkHealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acquisitiond_sink_healthy",
			Help: "Whether the Batch Sink considers the relational store reachable (1) or not (0)",
		},
	)

	BackoffFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acquisitiond_sink_backoff_failures",
			Help: "Current consecutive failure count driving the Sink's recovery backoff",
		},
	)

	BatchesFlushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acquisitiond_batches_flushed_total",
			Help: "Total number of batches successfully persisted to the relational store",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acquisitiond_flush_duration_seconds",
			Help:    "Time taken to flush the Batch Sink's buffer",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Spool metrics
	SpoolRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acquisitiond_spool_records",
			Help: "Current number of samples held in the on-disk spool",
		},
	)

	SpoolWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acquisitiond_spool_writes_total",
			Help: "Total number of batches written to the on-disk spool",
		},
	)

	SpoolDrainsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acquisitiond_spool_drains_total",
			Help: "Total number of successful full spool drains back into the relational store",
		},
	)

	DrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acquisitiond_spool_drain_duration_seconds",
			Help:    "Time taken to drain the on-disk spool back into the relational store",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Event bus metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitiond_events_published_total",
			Help: "Total number of events delivered to the webhook endpoint by type",
		},
		[]string{"type"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitiond_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(MachinesTotal)
	prometheus.MustRegister(TagsTotal)
	prometheus.MustRegister(SubscriptionConnected)
	prometheus.MustRegister(SubscriptionReconnectsTotal)
	prometheus.MustRegister(SamplesIngestedTotal)
	prometheus.MustRegister(SamplesDroppedTotal)
	prometheus.MustRegister(IngestionLatency)
	prometheus.MustRegister(PendingCount)
	prometheus.MustRegister(SinkHealthy)
	prometheus.MustRegister(BackoffFailures)
	prometheus.MustRegister(BatchesFlushedTotal)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(SpoolRecords)
	prometheus.MustRegister(SpoolWritesTotal)
	prometheus.MustRegister(SpoolDrainsTotal)
	prometheus.MustRegister(DrainDuration)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(WebhookDeliveriesTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
