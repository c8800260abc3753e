package workerproc

import (
	"context"
	"errors"
	"strings"

	"resume-optimizer/internal/optimizations"
	"resume-optimizer/internal/queue"
	"resume-optimizer/internal/shared/metrics"
	"resume-optimizer/internal/shared/util"
)

// Processor drives one optimization run to a terminal status. A returned
// error means nothing was recorded and the message may be redelivered.
type Processor interface {
	Process(ctx context.Context, optimizationID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.HashPayload(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingOptimizationID indicates a message missing the run id.
type ErrMissingOptimizationID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingOptimizationID) Error() string { return "missing optimization id" }

// ErrProcess indicates processing failed after successful parsing. The
// message should return to the queue for another attempt.
type ErrProcess struct {
	OptimizationID string
	RequestID      string
	Err            error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process optimization"
	}
	return "process optimization: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Discardable reports whether the message that produced err is
// unprocessable and should leave the queue for good.
func Discardable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingOptimizationID:
		return true
	}
	return false
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.OptimizationID) == "" {
		return msg, meta, ErrMissingOptimizationID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context so HandleMessage
// does not parse the body twice.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, processor Processor, body string) error {
	metrics.IncJobReceived()
	if processor == nil {
		return errors.New("optimization processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			metrics.IncJobDiscarded()
			return err
		}
	}

	if strings.TrimSpace(msg.OptimizationID) == "" {
		metrics.IncJobDiscarded()
		return ErrMissingOptimizationID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := optimizations.WithRequestID(ctx, msg.RequestID)
	if err := processor.Process(ctxWithRequest, msg.OptimizationID); err != nil {
		metrics.IncJobFailed()
		return ErrProcess{OptimizationID: msg.OptimizationID, RequestID: msg.RequestID, Err: err}
	}
	metrics.IncJobCompleted()
	return nil
}
