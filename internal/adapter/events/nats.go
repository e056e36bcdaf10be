// internal/adapter/events/nats.go

// Package events mirrors run events onto a message bus so other
// processes and websocket clients can follow a run by ID.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"pulse/internal/domain/pipeline"
	"pulse/internal/logger"
)

const watchBuffer = 64

// Conn is the subset of *nats.Conn used here
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subject returns the subject carrying events for runID
func Subject(topic, runID string) string {
	return fmt.Sprintf("%s.%s.events", topic, runID)
}

// NATSPublisher publishes stage events as JSON on a per-run subject
type NATSPublisher struct {
	conn   Conn
	topic  string
	logger logger.Logger
}

// NewNATSPublisher creates a publisher rooted at topic
func NewNATSPublisher(conn Conn, topic string, log logger.Logger) *NATSPublisher {
	if topic == "" {
		topic = "pulse.runs"
	}
	return &NATSPublisher{conn: conn, topic: topic, logger: log}
}

// Publish implements orchestrator.EventSink
func (p *NATSPublisher) Publish(_ context.Context, runID string, ev pipeline.StageEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stage event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.topic, runID), data); err != nil {
		return fmt.Errorf("publish stage event: %w", err)
	}
	return nil
}

// Watch subscribes to runID's events. The returned stop function must be
// called to release the subscription; it closes the channel.
func (p *NATSPublisher) Watch(ctx context.Context, runID string) (<-chan pipeline.StageEvent, func(), error) {
	out := make(chan pipeline.StageEvent, watchBuffer)

	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := p.conn.Subscribe(Subject(p.topic, runID), func(msg *nats.Msg) {
		var ev pipeline.StageEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			p.logger.Warn("Dropping unreadable run event",
				logger.String("subject", msg.Subject),
				logger.Error(err),
			)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- ev:
		default:
			p.logger.Warn("Run watcher is falling behind", logger.String("run_id", runID))
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to run %s: %w", runID, err)
	}

	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		closed = true
		_ = sub.Unsubscribe()
		close(out)
	}
	return out, stop, nil
}
