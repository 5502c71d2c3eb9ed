// Package sink implements the Batch Sink: a buffered writer to the
// relational store with size- and time-triggered flush, health tracking
// with exponential backoff, and spool-backed store-and-forward
// resilience on storage outage.
package sink

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/acquisitiond/pkg/events"
	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/metrics"
	"github.com/cuemby/acquisitiond/pkg/spool"
	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/types"
)

const (
	defaultAutoFlushThreshold = 5000
	defaultMaxChunk           = 1000
	maxBackoffSeconds         = 60
)

// Config controls the Sink's batching and backoff behavior.
type Config struct {
	// AutoFlushThreshold is the buffer size that triggers an async flush
	// from Enqueue. Default 5000.
	AutoFlushThreshold int
	// MaxChunk is the size of each persistence round trip within a
	// flush or a spool drain. Default 1000.
	MaxChunk int
}

func (c Config) withDefaults() Config {
	if c.AutoFlushThreshold <= 0 {
		c.AutoFlushThreshold = defaultAutoFlushThreshold
	}
	if c.MaxChunk <= 0 {
		c.MaxChunk = defaultMaxChunk
	}
	return c
}

// Sink is the process-wide Batch Sink. It owns the in-memory buffer and
// the health state; it is initialized once at startup and flushed and
// torn down once at shutdown — never instantiated per request.
type Sink struct {
	store storage.Store
	spool *spool.Spool
	bus   events.Publisher
	cfg   Config

	logger zerolog.Logger

	bufMu  sync.Mutex
	buffer []types.Sample

	flushMu sync.Mutex

	healthy  atomic.Bool
	failures atomic.Int32

	backoffMu     sync.Mutex
	nextAttemptAt time.Time
}

// New creates a Sink backed by store for persistence and spool for
// store-and-forward resilience. bus may be nil, in which case the Sink
// publishes no events. The initial state is Healthy.
func New(store storage.Store, sp *spool.Spool, bus events.Publisher, cfg Config) *Sink {
	s := &Sink{
		store:  store,
		spool:  sp,
		bus:    bus,
		cfg:    cfg.withDefaults(),
		logger: log.WithComponent("sink"),
	}
	s.healthy.Store(true)
	metrics.SinkHealthy.Set(1)
	return s
}

func (s *Sink) publish(eventType events.EventType, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(&events.Event{Type: eventType, Message: message})
}

// Enqueue appends samples to the in-memory FIFO buffer. It never blocks
// for I/O: if the buffer crosses AutoFlushThreshold, a flush is
// scheduled on a separate goroutine rather than run inline. It returns
// the number of samples appended.
func (s *Sink) Enqueue(samples []types.Sample) int {
	if len(samples) == 0 {
		return 0
	}

	s.bufMu.Lock()
	s.buffer = append(s.buffer, samples...)
	pending := len(s.buffer)
	s.bufMu.Unlock()

	metrics.PendingCount.Set(float64(pending))

	if pending >= s.cfg.AutoFlushThreshold {
		go func() {
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("unexpected error during auto-triggered flush")
			}
		}()
	}
	return len(samples)
}

// PendingCount returns the current buffer size.
func (s *Sink) PendingCount() int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return len(s.buffer)
}

// Healthy reports the Sink's current state-machine value: Healthy or
// Unhealthy. This is the cached flag mutated by Flush and TryRecover,
// distinct from IsHealthy's live probe.
func (s *Sink) Healthy() bool {
	return s.healthy.Load()
}

// IsHealthy performs a lightweight liveness probe against the store
// (SELECT 1-equivalent). It does not mutate the Sink's state.
func (s *Sink) IsHealthy(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}

// Flush moves all pending items into a worker-local slice, partitions
// them into chunks of MaxChunk, and attempts to persist each chunk. It
// is serialized by an exclusive flush lock so at most one flush (manual
// or auto-triggered) runs at a time.
//
// On a storage outage, the entire flushed set — not just the failing
// chunk — is pushed into the Spool and the Sink transitions to
// Unhealthy. On an unexpected error, the flushed set is also spooled,
// but the error is additionally returned so the Worker Loop can log it.
// On success, if the Sink was previously Unhealthy, it transitions to
// Healthy and a spool drain is scheduled.
func (s *Sink) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.bufMu.Lock()
	snapshot := s.buffer
	s.buffer = nil
	s.bufMu.Unlock()

	metrics.PendingCount.Set(0)

	if len(snapshot) == 0 {
		return nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FlushDuration)

	wasUnhealthy := !s.healthy.Load()

	for start := 0; start < len(snapshot); start += s.cfg.MaxChunk {
		end := start + s.cfg.MaxChunk
		if end > len(snapshot) {
			end = len(snapshot)
		}
		chunk := snapshot[start:end]

		err := s.store.InsertBatch(ctx, chunk)
		if err == nil {
			continue
		}

		if errors.Is(err, storage.ErrStorageUnavailable) {
			s.healthy.Store(false)
			metrics.SinkHealthy.Set(0)
			if _, spoolErr := s.spool.Append(snapshot); spoolErr != nil {
				s.logger.Error().Err(spoolErr).Msg("spool write failed after storage outage during flush")
				return spoolErr
			}
			metrics.SpoolWritesTotal.Inc()
			s.publish(events.EventSinkUnhealthy, "storage unavailable during flush")
			s.publish(events.EventBatchSpooled, "batch spooled after flush failure")
			s.logger.Warn().Err(err).Int("samples", len(snapshot)).Msg("flush failed, spooled batch")
			return nil
		}

		// Unexpected error: spool the set and re-raise.
		if _, spoolErr := s.spool.Append(snapshot); spoolErr != nil {
			s.logger.Error().Err(spoolErr).Msg("spool write failed after unexpected flush error")
		} else {
			metrics.SpoolWritesTotal.Inc()
		}
		return err
	}

	metrics.BatchesFlushedTotal.Inc()
	s.publish(events.EventBatchPersisted, "batch persisted")

	if wasUnhealthy {
		s.healthy.Store(true)
		metrics.SinkHealthy.Set(1)
		s.resetBackoffLocked()
		s.publish(events.EventSinkHealthy, "flush succeeded after prior outage")
		go func() {
			if err := s.DrainSpool(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("post-flush spool drain failed")
			}
		}()
	}
	return nil
}

// TryRecover is a noop when the Sink is already Healthy. Otherwise it
// consults the backoff schedule: if the next permitted attempt is still
// in the future, it is a noop. Otherwise it probes the store; on
// success it marks the Sink Healthy, resets the failure count, and
// drains the spool; on failure it increments the failure count and
// extends the backoff.
func (s *Sink) TryRecover(ctx context.Context) error {
	if s.healthy.Load() {
		return nil
	}

	s.backoffMu.Lock()
	if time.Now().Before(s.nextAttemptAt) {
		s.backoffMu.Unlock()
		return nil
	}
	s.backoffMu.Unlock()

	if err := s.store.Ping(ctx); err != nil {
		s.noteFailureLocked()
		return nil
	}

	s.healthy.Store(true)
	metrics.SinkHealthy.Set(1)
	s.resetBackoffLocked()
	s.publish(events.EventSinkHealthy, "recovery probe succeeded")

	return s.DrainSpool(ctx)
}

// noteFailureLocked increments the consecutive-failure counter and
// extends the backoff window to min(2^failures, 60) seconds from now,
// per the specification's backoff invariant.
func (s *Sink) noteFailureLocked() {
	failures := s.failures.Add(1)
	delay := time.Duration(math.Min(math.Pow(2, float64(failures)), maxBackoffSeconds)) * time.Second

	s.backoffMu.Lock()
	s.nextAttemptAt = time.Now().Add(delay)
	s.backoffMu.Unlock()

	metrics.BackoffFailures.Set(float64(failures))
}

func (s *Sink) resetBackoffLocked() {
	s.failures.Store(0)
	s.backoffMu.Lock()
	s.nextAttemptAt = time.Time{}
	s.backoffMu.Unlock()
	metrics.BackoffFailures.Set(0)
}

// DrainSpool reads every batch from the Spool in filename order,
// persisting each in chunks of MaxChunk. Only once every batch has
// succeeded does it call ClearAll; a failure partway through aborts the
// drain, leaves the remaining files intact, and re-marks the Sink
// Unhealthy.
func (s *Sink) DrainSpool(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DrainDuration)

	batches, err := s.spool.ListBatches()
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}

	for _, batch := range batches {
		for start := 0; start < len(batch.Samples); start += s.cfg.MaxChunk {
			end := start + s.cfg.MaxChunk
			if end > len(batch.Samples) {
				end = len(batch.Samples)
			}
			chunk := batch.Samples[start:end]
			if err := s.store.InsertBatch(ctx, chunk); err != nil {
				s.healthy.Store(false)
				metrics.SinkHealthy.Set(0)
				s.noteFailureLocked()
				s.logger.Error().Err(err).Str("batch_id", batch.BatchID).Msg("spool drain aborted")
				return err
			}
		}
	}

	if err := s.spool.ClearAll(); err != nil {
		return err
	}
	metrics.SpoolDrainsTotal.Inc()
	s.publish(events.EventSpoolDrained, "spool drained")
	s.logger.Info().Int("batches", len(batches)).Msg("spool drained")
	return nil
}
