package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

const (
	SubjectStatusPrefix = "venue.status."
	SubjectStatusAll    = "venue.status.>"
	SubjectGeocoded     = "map.geocode"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "VENUE_STATUS",
			Subjects:  []string{SubjectStatusAll},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "MAP_GEOCODE",
			Subjects:  []string{SubjectGeocoded},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishStatusChange(ctx context.Context, c *domain.StatusChange) error {
	data, err := EncodeStatusChange(c)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectStatusPrefix+c.VenueID, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishGeocoded(ctx context.Context, address string, pt domain.GeoPoint) error {
	data, err := EncodeGeocoded(address, pt)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectGeocoded, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
