// Package worker implements the Worker Loop, the process's single
// long-running supervisory goroutine: start subscriptions, tick
// reconnect/flush/recover, and shut down in order on signal.
package worker
