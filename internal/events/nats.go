package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes dispatcher events on NATS subjects of the form
// <prefix>.<event_type>.
type NATSForwarder struct {
	pub    Publisher
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials url for use by a forwarder.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSForwarder builds a forwarder on top of pub.
func NewNATSForwarder(pub Publisher, prefix string, logger *zap.Logger) *NATSForwarder {
	return &NATSForwarder{pub: pub, prefix: prefix, logger: logger.Named("nats_forwarder")}
}

// Subject returns the subject an event type is published on.
func (f *NATSForwarder) Subject(eventType EventType) string {
	if f.prefix == "" {
		return string(eventType)
	}
	return f.prefix + "." + string(eventType)
}

// Attach subscribes the forwarder to the given event types.
func (f *NATSForwarder) Attach(d Dispatcher, types ...EventType) {
	for _, t := range types {
		d.Subscribe(t, f.Handle)
	}
}

// Handle publishes one event.
func (f *NATSForwarder) Handle(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := f.Subject(event.Type)
	if err := f.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	f.logger.Debug("event forwarded", zap.String("subject", subject), zap.String("event_id", event.ID))
	return nil
}
