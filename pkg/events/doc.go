/*
Package events implements the internal event bus: an in-process pub/sub
Broker that the Batch Sink and Subscription Manager publish lifecycle
events to, fanned out to any subscriber without coupling the producers
to a specific downstream.

Event types cover batch persistence and spooling (EventBatchPersisted,
EventBatchSpooled, EventSpoolDrained), Batch Sink health transitions
(EventSinkUnhealthy, EventSinkHealthy), and subscription connectivity
(EventSubscriptionDisconnected, EventSubscriptionReconnected). Fan-out
never blocks: a full subscriber buffer skips that event rather than
stalling the broker. Publish itself waits while the broker's 100-event
inbound queue is full, until the broker loop takes an event or Stop is
called.

The only Publisher implementation is the Broker. WebhookPublisher is a
Broker subscriber that POSTs each event as JSON to a configured URL, recording delivery
outcomes via the acquisitiond_webhook_deliveries_total and
acquisitiond_events_published_total metrics. The health-probe loop in
cmd/acquisitiond and the metrics Collector read sink/subscription state
directly rather than subscribing to the bus; the bus exists for
downstream consumers outside this process.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	webhook := events.NewWebhookPublisher(broker, "https://example.com/hook")
	webhook.Start()
	defer webhook.Stop()

	broker.Publish(&events.Event{Type: events.EventBatchPersisted, Message: "batch persisted"})
*/
package events
