/*
Package metrics defines and registers the acquisition worker's Prometheus
metrics and exposes them over HTTP, plus the liveness/readiness surface
used by orchestrators and the CLI.

Metrics are grouped by stage of the pipeline:

  - Inventory: acquisitiond_machines_total, acquisitiond_tags_total
  - Subscription: acquisitiond_subscription_connected,
    acquisitiond_subscription_reconnects_total
  - Ingestion: acquisitiond_samples_ingested_total,
    acquisitiond_samples_dropped_total, acquisitiond_ingestion_latency_seconds
  - Batch Sink: acquisitiond_sink_pending_samples, acquisitiond_sink_healthy,
    acquisitiond_sink_backoff_failures, acquisitiond_batches_flushed_total,
    acquisitiond_flush_duration_seconds
  - Spool: acquisitiond_spool_records, acquisitiond_spool_writes_total,
    acquisitiond_spool_drains_total, acquisitiond_spool_drain_duration_seconds
  - Event bus: acquisitiond_events_published_total,
    acquisitiond_webhook_deliveries_total

All metrics are package-level variables registered against the default
Prometheus registry in init(); Handler() returns the promhttp handler
mounted at /metrics. Collector (collector.go) periodically samples the
inventory, pending-sample, and spool-record gauges, since those values are
cheap to poll but aren't naturally emitted by the code path that changes
them; everything else is updated inline by the package that owns the
event (pkg/sink, pkg/subscription, pkg/ingestion, pkg/events), except
acquisitiond_ingestion_latency_seconds, which is registered but not
observed by any package.

HealthStatus (health.go) is a separate concern layered on top: it
aggregates named ComponentHealth entries registered by
cmd/acquisitiond's health-probe loop (store, sink, subscription, and one
per machine) into the /healthz and /readyz responses, treating store,
sink, and subscription as critical — any one unhealthy fails readiness.

	timer := metrics.NewTimer()
	// ... flush the batch ...
	timer.ObserveDuration(metrics.FlushDuration)

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/healthz", metrics.HealthHandler())
	http.Handle("/readyz", metrics.ReadyHandler())
*/
package metrics
