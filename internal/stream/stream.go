// Package stream subscribes to the backend's order-event push channel. It is
// strictly an accelerator: every event just nudges the reconciler, so the
// engine stays correct when the socket is down or the backend never pushes.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"campus_courier/internal/core"
	"campus_courier/pkg/websocket"
)

// Nudger requests a reconciliation run. Satisfied by reconcile.Reconciler.
type Nudger interface {
	Nudge()
}

type Subscriber struct {
	client *websocket.Client
	logger core.ILogger
}

// NewSubscriber wires /ws/orders into the reconciler. baseURL is the HTTP
// base of the Remote Order Service; the scheme is rewritten for the socket.
func NewSubscriber(baseURL string, tokens core.TokenSource, nudger Nudger, logger core.ILogger) *Subscriber {
	log := logger.WithField("component", "stream")

	handler := func(message []byte) {
		var event core.OrderEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Warn("Dropping malformed order event", "error", err)
			return
		}
		log.Debug("Order event received", "order_id", event.OrderID, "status", event.Status)
		nudger.Nudge()
	}

	headers := func(ctx context.Context) (http.Header, error) {
		return tokens.AuthHeaders(ctx)
	}

	return &Subscriber{
		client: websocket.NewClient(wsURL(baseURL), handler, headers, log),
		logger: log,
	}
}

// Start begins the subscription; reconnects are automatic.
func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting order event subscription")
	s.client.Start()
	return nil
}

func (s *Subscriber) Stop() error {
	s.logger.Info("Stopping order event subscription")
	s.client.Stop()
	return nil
}

func wsURL(baseURL string) string {
	url := baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/ws/orders"
}
