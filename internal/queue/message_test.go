package queue

import (
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		OptimizationID: "opt-123",
		RequestID:      "request-456",
		EnqueuedAt:     "2026-08-25T22:00:00Z",
		Version:        1,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsBadJSON(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
