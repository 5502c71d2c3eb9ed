/*
Package log provides structured logging for the acquisition worker via
zerolog.

A single global Logger is initialized once at startup with Init; every
other package obtains a child logger scoped to its name with
WithComponent, or to a specific machine/tag/batch with WithMachineID,
WithTagID, WithBatchID. JSON output is used in production; console output
is used for local runs.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	sinkLog := log.WithComponent("sink")
	sinkLog.Warn().Str("reason", "storage_unavailable").Msg("flush failed")
*/
package log
