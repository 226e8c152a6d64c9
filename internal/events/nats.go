package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const DefaultSubject = "catalog.events"

// NATSPublisher publishes events as JSON on <subject>.<entityType>.<eventType>.
// Consumers that want everything subscribe to <subject>.>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	owned   bool
	logger  zerolog.Logger
}

// ConnectNATS dials url and returns a publisher that closes the connection
// on Close.
func ConnectNATS(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("catalog"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	p := NewNATSPublisher(nc, subject, logger)
	p.owned = true
	return p, nil
}

func NewNATSPublisher(nc *nats.Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event *ChangeEvent) string {
	return p.subject + "." + event.EntityType + "." + string(event.EventType)
}

func (p *NATSPublisher) Publish(_ context.Context, event *ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	subject := p.Subject(event)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("entity_id", event.EntityID.String()).
		Msg("published change event")
	return nil
}

// Close flushes pending messages and, when the publisher dialed the
// connection itself, closes it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return p.nc.Flush()
	}
	return p.nc.Drain()
}

func (p *NATSPublisher) Connected() bool {
	return p.nc.IsConnected()
}
