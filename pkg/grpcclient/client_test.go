package grpcclient

import (
	"strings"
	"testing"
)

const testPrivKeyHex = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"

func TestNewClientRejectsBadKey(t *testing.T) {
	if _, err := NewClient(DefaultConfig(), "not-hex"); err == nil {
		t.Fatal("expected an error for a non-hex private key")
	}
}

func TestNewClientDerivesSigner(t *testing.T) {
	config := DefaultConfig()
	config.PoolSize = 1

	c, err := NewClient(config, testPrivKeyHex)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if !strings.HasPrefix(c.address.String(), "cosmos1") {
		t.Errorf("signer address: got %q", c.address.String())
	}
	if c.txConfig == nil {
		t.Fatal("tx config not initialized")
	}
	if c.txConfig.SignModeHandler() == nil {
		t.Fatal("sign mode handler not initialized")
	}
}

func TestBatchBarkValidatesTargets(t *testing.T) {
	c := &Client{config: DefaultConfig()}

	if result := c.BatchBark(nil, nil); result.Error == nil {
		t.Error("empty batch should be rejected")
	}

	targets := make([]BarkTarget, c.config.BatchSize+1)
	if result := c.BatchBark(nil, targets); result.Error == nil {
		t.Error("oversized batch should be rejected")
	}
}

func TestSequenceIsMonotonic(t *testing.T) {
	c := &Client{config: DefaultConfig()}
	for want := uint64(0); want < 5; want++ {
		if got := c.nextSequence(); got != want {
			t.Fatalf("sequence: got %d, want %d", got, want)
		}
	}
}
