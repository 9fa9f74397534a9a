// Package tasksbus lets task submissions arrive over NATS instead of
// (or alongside) the demo server's HTTP endpoint, generalizing the
// gateway's send-job queue from one fixed job shape to an opaque
// named-task envelope that gets handed to pool.Submit.
package tasksbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// SubjectTaskSubmit is where task envelopes are published for workers
	// to pick up.
	SubjectTaskSubmit = "tasks.submit"
	// SubjectTaskFailed is where an envelope whose Subscribe handler
	// returned an error is reported, the generalized counterpart of the
	// gateway's dead-letter subject. A task that panics is not reported.
	SubjectTaskFailed = "tasks.failed"
)

// Envelope is the wire shape of a submitted task: a name the subscriber
// dispatches on, opaque payload bytes, and a correlation ID for tracing
// and for internal/auditlog rows.
type Envelope struct {
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Name          string          `json:"name"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Bus wraps a NATS connection for publishing and subscribing task
// envelopes.
type Bus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials natsURL with the gateway's reconnect/backoff posture:
// infinite reconnects, since a demo process should ride out a NATS
// restart rather than give up.
func Connect(natsURL string, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("taskcache demo"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("tasksbus: connect: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", conn.ConnectedUrl()))
	return &Bus{conn: conn, logger: logger}, nil
}

func (b *Bus) Close() error {
	b.conn.Close()
	return nil
}

func (b *Bus) HealthCheck(ctx context.Context) error {
	if b.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("tasksbus: not connected, status %v", b.conn.Status())
	}
	return nil
}

// Publish sends an envelope for a named task with an opaque payload.
func (b *Bus) Publish(name string, payload any) (uuid.UUID, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("tasksbus: marshal payload: %w", err)
	}

	env := Envelope{CorrelationID: uuid.New(), Name: name, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return uuid.Nil, fmt.Errorf("tasksbus: marshal envelope: %w", err)
	}

	if err := b.conn.Publish(SubjectTaskSubmit, data); err != nil {
		return uuid.Nil, fmt.Errorf("tasksbus: publish: %w", err)
	}

	b.logger.Debug("published task envelope",
		zap.String("correlation_id", env.CorrelationID.String()),
		zap.String("name", name))
	return env.CorrelationID, nil
}

// PublishFailure reports a task that could not be completed.
func (b *Bus) PublishFailure(correlationID uuid.UUID, name, reason string) {
	payload := map[string]any{
		"correlation_id": correlationID,
		"name":           name,
		"reason":         reason,
		"timestamp":      time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal failure report", zap.Error(err))
		return
	}
	if err := b.conn.Publish(SubjectTaskFailed, data); err != nil {
		b.logger.Error("failed to publish failure report", zap.Error(err))
	}
}

// taskWorkersGroup is the NATS queue group name subscribers join, so
// that running several demoserver instances against the same NATS
// server load-balances envelopes across them instead of fanning each
// one out to every instance.
const taskWorkersGroup = "taskcache-workers"

// Subscribe registers handler for every task envelope published to
// SubjectTaskSubmit, joining taskWorkersGroup so only one subscriber
// process receives any given envelope. handler typically wraps the
// envelope in a pool.Task and calls Pool.Submit; a handler error is
// logged, not retried — retry policy belongs to the caller, matching
// this module's "the pool does not isolate tasks" stance at the bus
// boundary too.
func (b *Bus) Subscribe(handler func(Envelope) error) (*nats.Subscription, error) {
	return b.conn.QueueSubscribe(SubjectTaskSubmit, taskWorkersGroup, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.Error("failed to unmarshal task envelope", zap.Error(err))
			return
		}

		b.logger.Debug("received task envelope",
			zap.String("correlation_id", env.CorrelationID.String()),
			zap.String("name", env.Name))

		if err := handler(env); err != nil {
			b.logger.Error("task handler failed",
				zap.String("correlation_id", env.CorrelationID.String()),
				zap.Error(err))
			b.PublishFailure(env.CorrelationID, env.Name, err.Error())
		}
	})
}
