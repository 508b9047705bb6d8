// Package nats publishes unified events and dead letters to NATS subjects
// for downstream consumers (alerting, dashboards), alongside the durable
// Postgres writes internal/pipeline and internal/poller already perform.
// Grounded on common/messaging/nats/client.go's connection setup and
// PublishJSON convenience method.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

const (
	// SubjectUnifiedEvents is the subject unified events are published on.
	SubjectUnifiedEvents = "quakefusion.unified_events"
	// SubjectDeadLetters is the subject dead-lettered events are published on.
	SubjectDeadLetters = "quakefusion.dead_letters"
)

// Publisher publishes domain events to NATS subjects.
type Publisher struct {
	conn *nats.Conn
}

// New connects to a NATS server, matching
// common/messaging/nats.NewClient's reconnect/timeout option set.
func New(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("quakefusion"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// PublishUnified publishes a unified event to SubjectUnifiedEvents.
func (p *Publisher) PublishUnified(ctx context.Context, u model.UnifiedEvent) error {
	return p.publishJSON(ctx, SubjectUnifiedEvents, u)
}

// PublishDeadLetter publishes a dead-letter entry to SubjectDeadLetters.
func (p *Publisher) PublishDeadLetter(ctx context.Context, d model.DeadLetterEntry) error {
	return p.publishJSON(ctx, SubjectDeadLetters, d)
}

func (p *Publisher) publishJSON(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Drain gracefully closes the connection, allowing in-flight publishes to
// complete.
func (p *Publisher) Drain() error {
	return p.conn.Drain()
}

// Close closes the connection immediately.
func (p *Publisher) Close() {
	p.conn.Close()
}
