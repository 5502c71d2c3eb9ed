package metrics

import (
	"context"
	"time"

	"github.com/cuemby/acquisitiond/pkg/types"
)

// storeReader is the subset of storage.Store the collector samples.
// Defined locally (rather than importing pkg/storage) to avoid a
// metrics -> storage import cycle.
type storeReader interface {
	ListActiveMachines(ctx context.Context) ([]*types.Machine, error)
}

// pendingReader is satisfied by *sink.Sink.
type pendingReader interface {
	PendingCount() int
}

// spoolReader is satisfied by *spool.Spool.
type spoolReader interface {
	TotalRecords() (int, error)
}

// Collector periodically samples the running worker's state into the
// gauges exported over /metrics, for values that are cheap to observe by
// polling but not naturally emitted by the code path that changes them
// (inventory counts, current spool size).
type Collector struct {
	store storeReader
	sink  pendingReader
	spool spoolReader

	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a Collector sampling store, sink, and spool every
// interval (default 15s).
func NewCollector(store storeReader, sink pendingReader, spool spoolReader, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		store:    store,
		sink:     sink,
		spool:    spool,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a background goroutine, sampling
// immediately and then every interval.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect(ctx)
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect(ctx context.Context) {
	if c.store != nil {
		if machines, err := c.store.ListActiveMachines(ctx); err == nil {
			tags := 0
			for _, m := range machines {
				tags += len(m.Tags)
			}
			MachinesTotal.WithLabelValues("true").Set(float64(len(machines)))
			TagsTotal.Set(float64(tags))
		}
	}

	if c.sink != nil {
		PendingCount.Set(float64(c.sink.PendingCount()))
	}

	if c.spool != nil {
		if total, err := c.spool.TotalRecords(); err == nil {
			SpoolRecords.Set(float64(total))
		}
	}
}
