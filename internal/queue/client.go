package queue

import "context"

// Client enqueues optimization jobs. The SQS implementation only sends;
// the NATS implementation also consumes and exposes Close, which callers
// reach through a type assertion.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
