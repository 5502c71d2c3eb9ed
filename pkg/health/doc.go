/*
Package health implements the liveness probes used by the acquisition
worker's health surface: a Checker interface with HTTP, TCP, and SQL
implementations, plus Status/Config for hysteresis-based health
tracking (N consecutive failures before a check is considered down).

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

TCPChecker and HTTPChecker are domain-agnostic dial/request probes used
as-is; SQLChecker wraps anything satisfying Pinger (Ping(ctx) error),
which *storage.SQLStore implements, to probe the relational store the
same way. cmd/acquisitiond's health-probe loop builds one SQLChecker for
the store and one TCPChecker per machine's OPC endpoint, feeding results
into pkg/metrics's component registry behind /healthz and /readyz.

	checker := health.NewTCPChecker("192.168.1.10:4840")
	result := checker.Check(ctx)
	if !result.Healthy {
		log.Warn().Str("endpoint", "192.168.1.10:4840").Msg(result.Message)
	}
*/
package health
