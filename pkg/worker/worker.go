// Package worker implements the Worker Loop: the long-running
// supervisor that starts the Subscription Manager, drives the Batch
// Sink's periodic flush and recovery, and performs an orderly shutdown.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/sink"
	"github.com/cuemby/acquisitiond/pkg/subscription"
	"github.com/cuemby/acquisitiond/pkg/types"
)

const defaultFlushInterval = 10 * time.Second

// Config controls the Worker Loop's tick cadence.
type Config struct {
	// FlushIntervalSeconds is the period of the supervisory tick: the
	// trigger for reconnect checks, time-based flush, and recovery
	// probes. Default 10.
	FlushIntervalSeconds int

	// ShutdownFlushTimeout bounds the final flush issued on shutdown.
	// Default 30s.
	ShutdownFlushTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FlushIntervalSeconds <= 0 {
		c.FlushIntervalSeconds = int(defaultFlushInterval.Seconds())
	}
	if c.ShutdownFlushTimeout <= 0 {
		c.ShutdownFlushTimeout = 30 * time.Second
	}
	return c
}

// Worker wires the Subscription Manager and the Batch Sink into one
// supervisory loop. The Ingestion Pipeline is wired in separately, as
// the SampleHandler passed to subscription.NewManager, before subMgr
// reaches Worker.
type Worker struct {
	subMgr *subscription.Manager
	sink   *sink.Sink
	cfg    Config

	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Worker. subMgr must already be constructed with a
// SampleHandler that calls the Ingestion Pipeline.
func New(subMgr *subscription.Manager, batchSink *sink.Sink, cfg Config) *Worker {
	return &Worker{
		subMgr: subMgr,
		sink:   batchSink,
		cfg:    cfg.withDefaults(),
		logger: log.WithComponent("worker"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start opens every active machine's subscription, then begins the
// periodic supervisory tick on a background goroutine.
func (w *Worker) Start(ctx context.Context, machines []*types.Machine) {
	w.subMgr.Start(ctx, machines)
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	interval := time.Duration(w.cfg.FlushIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", interval).Msg("worker loop started")

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-w.stopCh:
			w.logger.Info().Msg("worker loop stopping")
			return
		}
	}
}

// tick runs one supervisory cycle: reconnect if disconnected, flush if
// pending, and probe for recovery so a healed store drains the spool
// even without new traffic.
func (w *Worker) tick(ctx context.Context) {
	if w.subMgr.AnyDisconnected() {
		w.logger.Warn().Msg("subscription disconnected, reconnecting")
		w.subMgr.Reconnect(ctx)
	}

	if w.sink.PendingCount() > 0 {
		if err := w.sink.Flush(ctx); err != nil {
			w.logger.Error().Err(err).Msg("unexpected error during scheduled flush")
		}
	}

	if err := w.sink.TryRecover(ctx); err != nil {
		w.logger.Error().Err(err).Msg("recovery attempt failed")
	}
}

// Stop performs an orderly shutdown: stop subscriptions, issue one final
// flush with an uncancellable deadline, then return once the loop has
// exited.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.subMgr.Stop(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownFlushTimeout)
	defer cancel()
	if err := w.sink.Flush(flushCtx); err != nil {
		w.logger.Error().Err(err).Msg("final flush on shutdown failed")
	}
	w.logger.Info().Msg("worker loop stopped")
}
