package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/acquisitiond/pkg/events"
	"github.com/cuemby/acquisitiond/pkg/spool"
	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/types"
)

// recordingPublisher captures every event published to it.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventType
}

func (r *recordingPublisher) Publish(event *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.Type)
}

func (r *recordingPublisher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	copy(out, r.events)
	return out
}

// fakeStore is a minimal storage.Store whose InsertBatch/Ping behavior is
// controlled by the test.
type fakeStore struct {
	mu sync.Mutex

	insertErr  error
	pingErr    error
	rows       []types.Sample
	insertCall int
}

func (f *fakeStore) ListActiveMachines(ctx context.Context) ([]*types.Machine, error) { return nil, nil }
func (f *fakeStore) GetMachine(ctx context.Context, id int32) (*types.Machine, error) {
	return nil, nil
}
func (f *fakeStore) GetTagByNodeID(ctx context.Context, nodeID string) (*types.Tag, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveTagsByMachine(ctx context.Context, machineID int32) ([]*types.Tag, error) {
	return nil, nil
}
func (f *fakeStore) Reload(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                     { return nil }

func (f *fakeStore) InsertBatch(ctx context.Context, samples []types.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCall++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, samples...)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func makeSamples(n int) []types.Sample {
	samples := make([]types.Sample, n)
	for i := range samples {
		samples[i] = types.Sample{
			MachineID: 1, TagID: 1, TagName: "T", NodeID: "ns=2;s=T",
			Value: types.NewFloatValue(float64(i)), Quality: types.NewOpcQuality(0),
		}
	}
	return samples
}

func newSink(t *testing.T, store storage.Store) (*Sink, *spool.Spool) {
	t.Helper()
	sp, err := spool.New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	return New(store, sp, nil, Config{AutoFlushThreshold: 5000, MaxChunk: 1000}), sp
}

// TestFlushHappyPath is scenario S1: samples are enqueued and flushed
// straight into the store, with no spool involvement.
func TestFlushHappyPath(t *testing.T) {
	store := &fakeStore{}
	s, sp := newSink(t, store)

	s.Enqueue(makeSamples(10))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := store.rowCount(); got != 10 {
		t.Errorf("rowCount = %d, want 10", got)
	}
	if s.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", s.PendingCount())
	}
	total, _ := sp.TotalRecords()
	if total != 0 {
		t.Errorf("spool should be empty, got %d records", total)
	}
	if !s.Healthy() {
		t.Error("sink should remain healthy")
	}
}

// TestFlushOutageSpoolsAndRecovers is scenario S2: a storage outage
// during flush spools the entire flushed set as one batch; recovery
// drains it back in once the store heals.
func TestFlushOutageSpoolsAndRecovers(t *testing.T) {
	store := &fakeStore{insertErr: storage.ErrStorageUnavailable}
	s, sp := newSink(t, store)

	s.Enqueue(makeSamples(2500))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if s.Healthy() {
		t.Fatal("sink should be unhealthy after a storage outage")
	}
	batches, err := sp.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Samples) != 2500 {
		t.Fatalf("expected exactly one spooled batch of 2500, got %+v", batches)
	}

	// Heal the store and recover.
	store.mu.Lock()
	store.insertErr = nil
	store.pingErr = nil
	store.mu.Unlock()

	if err := s.TryRecover(context.Background()); err != nil {
		t.Fatalf("TryRecover: %v", err)
	}
	if !s.Healthy() {
		t.Fatal("sink should be healthy after recovery")
	}
	if got := store.rowCount(); got != 2500 {
		t.Errorf("rowCount after drain = %d, want 2500", got)
	}
	total, _ := sp.TotalRecords()
	if total != 0 {
		t.Errorf("spool should be drained, got %d records left", total)
	}
}

func TestTryRecoverNoopWhenHealthy(t *testing.T) {
	store := &fakeStore{}
	s, _ := newSink(t, store)

	if err := s.TryRecover(context.Background()); err != nil {
		t.Fatalf("TryRecover: %v", err)
	}
	if store.insertCall != 0 {
		t.Error("TryRecover should not touch the store when already healthy")
	}
}

func TestTryRecoverRespectsBackoffWindow(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("still down")}
	s, _ := newSink(t, store)
	s.healthy.Store(false)

	if err := s.TryRecover(context.Background()); err != nil {
		t.Fatalf("first TryRecover: %v", err)
	}
	if s.failures.Load() != 1 {
		t.Fatalf("failures = %d, want 1", s.failures.Load())
	}

	// Immediately retrying should be a noop: the backoff window has not
	// elapsed yet.
	if err := s.TryRecover(context.Background()); err != nil {
		t.Fatalf("second TryRecover: %v", err)
	}
	if s.failures.Load() != 1 {
		t.Errorf("failures should stay at 1 within the backoff window, got %d", s.failures.Load())
	}
}

func TestEnqueueTriggersAutoFlush(t *testing.T) {
	store := &fakeStore{}
	sp, err := spool.New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	s := New(store, sp, nil, Config{AutoFlushThreshold: 5, MaxChunk: 100})

	s.Enqueue(makeSamples(5))

	// The auto-flush runs asynchronously; force-flush here is idempotent
	// once the async flush has already drained the buffer, and lets the
	// test assert on final state without a race on the goroutine.
	_ = s.Flush(context.Background())

	if got := store.rowCount(); got == 0 {
		t.Error("expected the auto-triggered or fallback flush to have persisted samples")
	}
}

func TestFlushPublishesBatchPersisted(t *testing.T) {
	store := &fakeStore{}
	sp, err := spool.New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	pub := &recordingPublisher{}
	s := New(store, sp, pub, Config{AutoFlushThreshold: 5000, MaxChunk: 1000})

	s.Enqueue(makeSamples(3))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	found := false
	for _, et := range pub.types() {
		if et == events.EventBatchPersisted {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a BatchPersisted event, got %v", pub.types())
	}
}
