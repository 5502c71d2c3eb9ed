package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/acquisitiond/pkg/sink"
	"github.com/cuemby/acquisitiond/pkg/spool"
	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/subscription"
	"github.com/cuemby/acquisitiond/pkg/types"
)

type noopSession struct {
	mu        sync.Mutex
	connected bool
}

func (s *noopSession) Open(ctx context.Context, machine *types.Machine, handler subscription.SampleHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *noopSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *noopSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

type fakeStore struct {
	mu   sync.Mutex
	rows []types.Sample
}

var _ storage.Store = (*fakeStore)(nil)

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
func (f *fakeStore) Ping(ctx context.Context) error   { return nil }
func (f *fakeStore) InsertBatch(ctx context.Context, samples []types.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, samples...)
	return nil
}

func (f *fakeStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestStartAndStopLifecycle(t *testing.T) {
	store := &fakeStore{}
	sp, err := spool.New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	batchSink := sink.New(store, sp, nil, sink.Config{AutoFlushThreshold: 5000, MaxChunk: 1000})

	sess := &noopSession{}
	subMgr := subscription.NewManager(
		func(m *types.Machine) subscription.Session { return sess },
		func(ctx context.Context, s types.Sample) {},
	)

	w := New(subMgr, batchSink, Config{FlushIntervalSeconds: 1, ShutdownFlushTimeout: time.Second})

	machine := &types.Machine{ID: 1, Name: "m", IsActive: true}
	w.Start(context.Background(), []*types.Machine{machine})

	if !sess.Connected() {
		t.Fatal("expected subscription to be connected after Start")
	}

	batchSink.Enqueue([]types.Sample{{MachineID: 1, TagID: 1, NodeID: "ns=2;s=T", Value: types.NewFloatValue(1)}})

	w.Stop(context.Background())

	if sess.Connected() {
		t.Error("expected subscription to be disconnected after Stop")
	}
	if got := store.rowCount(); got != 1 {
		t.Errorf("expected the final shutdown flush to persist the pending sample, got rowCount=%d", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	sp, err := spool.New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	batchSink := sink.New(store, sp, nil, sink.Config{})
	subMgr := subscription.NewManager(
		func(m *types.Machine) subscription.Session { return &noopSession{} },
		func(ctx context.Context, s types.Sample) {},
	)
	w := New(subMgr, batchSink, Config{FlushIntervalSeconds: 1})

	w.Start(context.Background(), nil)
	w.Stop(context.Background())
	w.Stop(context.Background()) // must not panic or deadlock
}
