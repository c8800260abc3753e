package util

import "testing"

func TestHashUserKey(t *testing.T) {
	id := "guest:9b1c"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestHashPayloadKnownVector(t *testing.T) {
	got := HashPayload("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("HashPayload(abc) = %s, want %s", got, want)
	}
}
