package subscription

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/acquisitiond/pkg/types"
)

// Simulator is a Session that emits synthetic samples for every active
// tag of one machine, honoring each tag's logical type and its
// (MinValue, MaxValue) or AllowedValues bounds. It exists so the worker
// is runnable and testable without real OPC UA hardware; it is the only
// concrete Session this module ships.
type Simulator struct {
	samplingInterval time.Duration

	mu        sync.Mutex
	machine   *types.Machine
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	rng *rand.Rand
}

// NewSimulatorFactory returns a SessionFactory producing Simulators that
// sample every tag on the given interval (spec.md §4.7 default: ~500ms).
func NewSimulatorFactory(samplingInterval time.Duration) SessionFactory {
	if samplingInterval <= 0 {
		samplingInterval = 500 * time.Millisecond
	}
	return func(machine *types.Machine) Session {
		return &Simulator{
			samplingInterval: samplingInterval,
			rng:              rand.New(rand.NewSource(time.Now().UnixNano() + int64(machine.ID))),
		}
	}
}

// Open starts one ticker-driven goroutine per active tag, each producing
// a Sample on every tick and handing it to handler.
func (s *Simulator) Open(ctx context.Context, machine *types.Machine, handler SampleHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.machine = machine
	s.cancel = cancel
	s.connected = true

	for _, tag := range machine.Tags {
		if !tag.IsActive {
			continue
		}
		s.wg.Add(1)
		go s.runTag(runCtx, machine, tag, handler)
	}
	return nil
}

func (s *Simulator) runTag(ctx context.Context, machine *types.Machine, tag *types.Tag, handler SampleHandler) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.samplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			handler(ctx, types.Sample{
				MachineID:         machine.ID,
				TagID:             tag.ID,
				TagName:           tag.Name,
				NodeID:            tag.NodeID,
				Value:             s.generate(tag),
				Quality:           types.NewOpcQuality(0),
				SourceTimestamp:   now,
				ServerTimestamp:   now,
				ReceivedTimestamp: now,
			})
		}
	}
}

// generate produces a value consistent with tag's logical type and its
// declared bounds, so downstream validation accepts it by default.
func (s *Simulator) generate(tag *types.Tag) types.Value {
	s.mu.Lock()
	rng := s.rng
	s.mu.Unlock()

	if len(tag.AllowedValues) > 0 {
		return types.NewTextValue(tag.AllowedValues[rng.Intn(len(tag.AllowedValues))])
	}

	lo, hi := 0.0, 100.0
	if tag.MinValue != nil {
		lo = *tag.MinValue
	}
	if tag.MaxValue != nil {
		hi = *tag.MaxValue
	}
	if hi < lo {
		hi = lo
	}
	span := hi - lo

	switch tag.DataType {
	case types.DataTypeInt16, types.DataTypeInt32, types.DataTypeInt64:
		return types.NewIntValue(int64(math.Round(lo + rng.Float64()*span)))
	case types.DataTypeUInt16, types.DataTypeUInt32, types.DataTypeUInt64:
		v := lo + rng.Float64()*span
		if v < 0 {
			v = 0
		}
		return types.NewUintValue(uint64(math.Round(v)))
	case types.DataTypeBoolean:
		return types.NewBoolValue(rng.Intn(2) == 1)
	case types.DataTypeString:
		return types.NewTextValue(tag.Name)
	default:
		// Float, Double, and any unrecognized logical type default to a
		// floating-point reading within bounds.
		return types.NewFloatValue(lo + rng.Float64()*span)
	}
}

// Connected reports whether Open has run and Close has not.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close stops every per-tag goroutine and waits for them to exit.
func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.connected = false
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
