package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSettled = "x402.settlements.settled"
	SubjectFailed  = "x402.settlements.failed"
	// SubjectAll matches every settlement subject
	SubjectAll = "x402.settlements.*"
)

// Publisher delivers settlement events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subject returns the subject an event is published on
func Subject(status Status) string {
	if status == StatusSettled {
		return SubjectSettled
	}
	return SubjectFailed
}

// NATSPublisher publishes events as JSON on a NATS connection
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Connect dials url with the client name set to name
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// Publish does not wait for delivery; nats buffers the message and flushes it asynchronously
func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode settlement event: %w", err)
	}
	if err := p.conn.Publish(Subject(event.Status), data); err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	return nil
}
