// Package subscription implements the Subscription Manager: per-machine
// session lifecycle, reconnect, and health reporting, against a
// transport-agnostic Session interface.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/acquisitiond/pkg/events"
	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/metrics"
	"github.com/cuemby/acquisitiond/pkg/types"
)

// reconnectGraceDelay separates a Session's Close from its next Open
// during Reconnect, giving a real transport time to tear down cleanly.
const reconnectGraceDelay = 2 * time.Second

// SampleHandler receives one sample per value-change notification. The
// Ingestion Pipeline implements this.
type SampleHandler func(ctx context.Context, sample types.Sample)

// Session is the transport contract for one machine's OPC UA
// connection: open it, create one monitored item per tag, close it. The
// production OPC UA client library is out of scope for this module;
// Simulator is the only concrete Session shipped.
type Session interface {
	// Open connects to the machine's endpoint and creates a subscription.
	Open(ctx context.Context, machine *types.Machine, handler SampleHandler) error
	// Connected reports whether the session is currently established.
	Connected() bool
	// Close deletes the subscription and closes the connection.
	Close(ctx context.Context) error
}

// SessionFactory creates a fresh, unopened Session for one machine. The
// Manager calls it once per machine at Start and again on each
// Reconnect.
type SessionFactory func(machine *types.Machine) Session

// Manager owns one Session per active machine and exposes start/stop/
// reconnect/health as a single coordinated unit.
type Manager struct {
	factory SessionFactory
	handler SampleHandler

	mu       sync.RWMutex
	sessions map[int32]Session
	machines map[int32]*types.Machine

	bus events.Publisher

	logger zerolog.Logger
}

// SetPublisher sets the event bus that Open/Reconnect failures and
// successful reconnects are announced on. nil (the default) disables
// announcements, matching the Batch Sink's optional-bus convention.
func (m *Manager) SetPublisher(bus events.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
}

func (m *Manager) publish(eventType events.EventType, message string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&events.Event{Type: eventType, Message: message})
}

// NewManager creates a Manager that builds sessions with factory and
// routes every notification to handler.
func NewManager(factory SessionFactory, handler SampleHandler) *Manager {
	return &Manager{
		factory:  factory,
		handler:  handler,
		sessions: make(map[int32]Session),
		machines: make(map[int32]*types.Machine),
		logger:   log.WithComponent("subscription"),
	}
}

// Start opens one session per machine in machines. A machine whose
// session fails to open is logged and left disconnected rather than
// aborting the others; AnyDisconnected will surface it for reconnect.
func (m *Manager) Start(ctx context.Context, machines []*types.Machine) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, machine := range machines {
		m.machines[machine.ID] = machine
		sess := m.factory(machine)
		m.sessions[machine.ID] = sess
		if err := sess.Open(ctx, machine, m.handler); err != nil {
			m.logger.Error().Err(err).Int32("machine_id", machine.ID).Str("endpoint", machine.OpcEndpoint).
				Msg("failed to open subscription session")
			metrics.SubscriptionConnected.WithLabelValues(machine.Name).Set(0)
			m.publish(events.EventSubscriptionDisconnected, "failed to open session for "+machine.Name)
			continue
		}
		metrics.SubscriptionConnected.WithLabelValues(machine.Name).Set(1)
	}
}

// Stop closes every session. Per-session errors are logged but do not
// abort the remaining closes.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		if err := sess.Close(ctx); err != nil {
			m.logger.Error().Err(err).Int32("machine_id", id).Msg("failed to close subscription session")
		}
		if machine, ok := m.machines[id]; ok {
			metrics.SubscriptionConnected.WithLabelValues(machine.Name).Set(0)
		}
	}
}

// Reconnect closes and reopens every known session, with a short grace
// delay between the two, per spec.md §4.7.
func (m *Manager) Reconnect(ctx context.Context) {
	m.mu.Lock()
	machines := make([]*types.Machine, 0, len(m.machines))
	for _, machine := range m.machines {
		machines = append(machines, machine)
		if sess, ok := m.sessions[machine.ID]; ok {
			if err := sess.Close(ctx); err != nil {
				m.logger.Warn().Err(err).Int32("machine_id", machine.ID).Msg("error closing session before reconnect")
			}
		}
		metrics.SubscriptionReconnectsTotal.WithLabelValues(machine.Name).Inc()
	}
	m.publish(events.EventSubscriptionDisconnected, "reconnect started")
	m.mu.Unlock()

	select {
	case <-time.After(reconnectGraceDelay):
	case <-ctx.Done():
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	anyReconnected := false
	for _, machine := range machines {
		sess := m.factory(machine)
		m.sessions[machine.ID] = sess
		if err := sess.Open(ctx, machine, m.handler); err != nil {
			m.logger.Error().Err(err).Int32("machine_id", machine.ID).Msg("reconnect failed")
			metrics.SubscriptionConnected.WithLabelValues(machine.Name).Set(0)
			continue
		}
		metrics.SubscriptionConnected.WithLabelValues(machine.Name).Set(1)
		anyReconnected = true
	}
	if anyReconnected {
		m.publish(events.EventSubscriptionReconnected, "reconnect completed")
	}
}

// AnyDisconnected iterates every known session and reports whether at
// least one is not connected, the trigger the Worker Loop uses to call
// Reconnect.
func (m *Manager) AnyDisconnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sess := range m.sessions {
		if !sess.Connected() {
			return true
		}
	}
	return false
}

// ConnectedCount reports how many of the known sessions currently
// report connected, used by the health surface.
func (m *Manager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sess := range m.sessions {
		if sess.Connected() {
			count++
		}
	}
	return count
}
