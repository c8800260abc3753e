package workerproc

import (
	"context"
	"errors"
	"testing"

	"resume-optimizer/internal/queue"
)

type fakeProcessor struct {
	ids []string
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, optimizationID string) error {
	f.ids = append(f.ids, optimizationID)
	return f.err
}

func encodeBody(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	return string(raw)
}

func TestParseMessage(t *testing.T) {
	var empty ErrEmptyBody
	if _, _, err := ParseMessage(""); !errors.As(err, &empty) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}

	var decode ErrDecode
	if _, _, err := ParseMessage("{not json"); !errors.As(err, &decode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	body := encodeBody(t, queue.Message{RequestID: "req-1", Version: 1})
	_, _, err := ParseMessage(body)
	var missing ErrMissingOptimizationID
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingOptimizationID, got %v", err)
	}
	if missing.RequestID != "req-1" {
		t.Fatalf("expected request id to survive, got %q", missing.RequestID)
	}

	body = encodeBody(t, queue.Message{OptimizationID: "opt-1", RequestID: "req-1", Version: 1})
	msg, meta, err := ParseMessage(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.OptimizationID != "opt-1" {
		t.Fatalf("expected opt-1, got %q", msg.OptimizationID)
	}
	if meta.BodyLen != len(body) || meta.BodySHA == "" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestHandleMessageProcessesRun(t *testing.T) {
	proc := &fakeProcessor{}
	body := encodeBody(t, queue.Message{OptimizationID: "opt-1", RequestID: "req-1", Version: 1})

	if err := HandleMessage(context.Background(), proc, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(proc.ids) != 1 || proc.ids[0] != "opt-1" {
		t.Fatalf("expected one call with opt-1, got %v", proc.ids)
	}
}

func TestHandleMessageWrapsProcessorError(t *testing.T) {
	cause := errors.New("database down")
	proc := &fakeProcessor{err: cause}
	body := encodeBody(t, queue.Message{OptimizationID: "opt-1", Version: 1})

	err := HandleMessage(context.Background(), proc, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if procErr.OptimizationID != "opt-1" {
		t.Fatalf("expected opt-1 in the error, got %q", procErr.OptimizationID)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the cause to unwrap")
	}
}

func TestHandleMessageReusesParsedMessage(t *testing.T) {
	proc := &fakeProcessor{}
	ctx := WithParsedMessage(context.Background(), queue.Message{OptimizationID: "opt-9", Version: 1})

	// Body stays unparsed when the context already carries the message.
	if err := HandleMessage(ctx, proc, "{not json"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(proc.ids) != 1 || proc.ids[0] != "opt-9" {
		t.Fatalf("expected one call with opt-9, got %v", proc.ids)
	}
}

func TestDiscardable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrEmptyBody{}, true},
		{ErrDecode{Err: errors.New("bad json")}, true},
		{ErrMissingOptimizationID{}, true},
		{ErrProcess{OptimizationID: "opt-1", Err: errors.New("boom")}, false},
		{errors.New("other"), false},
	}
	for _, tc := range cases {
		if got := Discardable(tc.err); got != tc.want {
			t.Fatalf("Discardable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
