package crypto

import (
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 0x17
	raw[19] = 0xAB

	addr, err := NewAddress(LendPrefix, raw)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}

	parsed, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if !parsed.Equal(addr) {
		t.Fatalf("expected %s, got %s", addr, parsed)
	}
	if parsed.Prefix() != LendPrefix {
		t.Fatalf("expected prefix %q, got %q", LendPrefix, parsed.Prefix())
	}
}

func TestNewAddressRejectsShortPayload(t *testing.T) {
	if _, err := NewAddress(LendPrefix, []byte{0x01}); err == nil {
		t.Fatal("expected error for short payload")
	}
}

func TestAddressIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatal("empty address should be zero")
	}
	addr := MustNewAddress(LendPrefix, make([]byte, 20))
	if !addr.IsZero() {
		t.Fatal("all-zero payload should be zero")
	}
	raw := make([]byte, 20)
	raw[3] = 1
	if MustNewAddress(LendPrefix, raw).IsZero() {
		t.Fatal("non-zero payload reported zero")
	}
}
