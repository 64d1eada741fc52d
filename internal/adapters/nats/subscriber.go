package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeStatusChanges consumes venue hours transitions.
func (s *Subscriber) SubscribeStatusChanges(ctx context.Context, handler func(ctx context.Context, c *domain.StatusChange) error) error {
	sub, err := s.js.Subscribe(SubjectStatusAll, func(msg *nats.Msg) {
		c, err := DecodeStatusChange(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed status change", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, c); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("status-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeGeocoded consumes resolved addresses, e.g. to fold them into the
// persisted geocode cache.
func (s *Subscriber) SubscribeGeocoded(ctx context.Context, handler func(ctx context.Context, address string, p domain.GeoPoint) error) error {
	sub, err := s.js.Subscribe(SubjectGeocoded, func(msg *nats.Msg) {
		addr, p, err := DecodeGeocoded(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed geocode event", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, addr, p); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("geocode-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
