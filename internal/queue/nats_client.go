package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"resume-optimizer/internal/shared/telemetry"
)

// DefaultNATSSubject is the subject optimization jobs travel on.
const DefaultNATSSubject = "optimizations.jobs"

const natsWorkerGroup = "workers"

// NATSClient publishes and consumes queue messages over NATS.
type NATSClient struct {
	conn    *nats.Conn
	subject string
}

// NewNATSClient connects to NATS and returns a client bound to subject.
// An empty subject falls back to DefaultNATSSubject.
func NewNATSClient(url, subject string) (*NATSClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultNATSSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("resume-optimizer"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			telemetry.Warn("queue.nats.disconnected", map[string]any{"error": fmt.Sprint(err)})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			telemetry.Info("queue.nats.reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSClient{conn: conn, subject: subject}, nil
}

// Send publishes a message to the configured subject.
func (n *NATSClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode nats message: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Consume delivers decoded messages to handler as part of the shared worker
// group until ctx is done, then drains the subscription so in-flight
// deliveries finish.
func (n *NATSClient) Consume(ctx context.Context, handler func(context.Context, Message) error) error {
	sub, err := n.conn.QueueSubscribe(n.subject, natsWorkerGroup, func(m *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		msg, err := DecodeMessage(m.Data)
		if err != nil {
			telemetry.Error("queue.nats.decode_failed", map[string]any{
				"error":    err.Error(),
				"body_len": len(m.Data),
			})
			return
		}
		if err := handler(ctx, msg); err != nil {
			telemetry.Error("queue.nats.handler_failed", map[string]any{
				"optimization_id": msg.OptimizationID,
				"request_id":      msg.RequestID,
				"error":           err.Error(),
			})
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Close tears down the connection.
func (n *NATSClient) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

var _ Client = (*NATSClient)(nil)
