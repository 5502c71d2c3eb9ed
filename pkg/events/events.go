// Package events implements the internal event bus: an in-process
// publish/subscribe broker the Batch Sink and Subscription Manager use
// to announce state transitions, fanned out to any subscriber (for
// example the webhook publisher) without coupling the producers to a
// specific downstream.
package events

import (
	"sync"
	"time"
)

// EventType is the closed set of acquisition-worker lifecycle events.
type EventType string

const (
	EventBatchPersisted           EventType = "batch.persisted"
	EventBatchSpooled             EventType = "batch.spooled"
	EventSpoolDrained             EventType = "spool.drained"
	EventSinkUnhealthy            EventType = "sink.unhealthy"
	EventSinkHealthy              EventType = "sink.healthy"
	EventSubscriptionDisconnected EventType = "subscription.disconnected"
	EventSubscriptionReconnected  EventType = "subscription.reconnected"
)

// Event is one occurrence on the bus.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Publisher is what event producers (the Batch Sink and Subscription
// Manager) hold; *Broker implements it. The webhook publisher is not a
// Publisher: it receives events as a Broker subscriber.
type Publisher interface {
	Publish(event *Event)
}

// Broker manages event subscriptions and distribution. It is the single
// process-wide fan-out point: the Batch Sink and Subscription Manager
// publish to it; the webhook publisher subscribes. The health surface
// and metrics collector read component state directly and do not
// subscribe.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip rather than block the broker.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
