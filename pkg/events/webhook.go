package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/metrics"
)

// WebhookPublisher subscribes to a Broker and forwards every event as an
// HTTP POST of its JSON encoding to URL. Delivery is best effort: a
// failed post is logged and counted, never retried, so one unreachable
// endpoint cannot back up the broker.
type WebhookPublisher struct {
	url        string
	httpClient *http.Client
	broker     *Broker
	sub        Subscriber
	logger     zerolog.Logger
	stopCh     chan struct{}
}

// NewWebhookPublisher creates a publisher that will POST to url once
// Start is called.
func NewWebhookPublisher(broker *Broker, url string) *WebhookPublisher {
	return &WebhookPublisher{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		broker:     broker,
		logger:     log.WithComponent("webhook"),
		stopCh:     make(chan struct{}),
	}
}

// Start subscribes to the broker and begins delivering events on a
// dedicated goroutine.
func (w *WebhookPublisher) Start() {
	w.sub = w.broker.Subscribe()
	go w.run()
}

// Stop unsubscribes from the broker and stops the delivery goroutine.
func (w *WebhookPublisher) Stop() {
	close(w.stopCh)
	w.broker.Unsubscribe(w.sub)
}

func (w *WebhookPublisher) run() {
	for {
		select {
		case event, ok := <-w.sub:
			if !ok {
				return
			}
			w.deliver(event)
		case <-w.stopCh:
			return
		}
	}
}

func (w *WebhookPublisher) deliver(event *Event) {
	body, err := json.Marshal(event)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to encode event for webhook delivery")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to build webhook request")
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn().Err(err).Str("url", w.url).Str("event_type", string(event.Type)).Msg("webhook delivery failed")
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn().Int("status", resp.StatusCode).Str("event_type", string(event.Type)).Msg("webhook endpoint rejected event")
		metrics.WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
	metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
}
