package types

import (
	"testing"

	"cosmossdk.io/math"
)

func TestLinearDecrease(t *testing.T) {
	decay := LinearDecrease{Tau: 7200}
	start := math.LegacyNewDec(60)

	if got := decay.Price(start, 0); !got.Equal(start) {
		t.Errorf("price at start: got %s, want %s", got, start)
	}
	if got := decay.Price(start, -5); !got.Equal(start) {
		t.Errorf("price before start: got %s, want %s", got, start)
	}

	// Halfway through the horizon the price has halved
	if got := decay.Price(start, 3600); !got.Equal(math.LegacyNewDec(30)) {
		t.Errorf("price at half tau: got %s, want 30", got)
	}

	// Non-increasing over the whole horizon
	prev := start
	for elapsed := int64(0); elapsed <= 7200; elapsed += 600 {
		price := decay.Price(start, elapsed)
		if price.GT(prev) {
			t.Fatalf("price increased at elapsed %d: %s > %s", elapsed, price, prev)
		}
		prev = price
	}

	if got := decay.Price(start, 7200); !got.IsZero() {
		t.Errorf("price at tau: got %s, want 0", got)
	}
	if got := decay.Price(start, 99999); !got.IsZero() {
		t.Errorf("price past tau: got %s, want 0", got)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}

	bad := DefaultParams()
	bad.Tau = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero tau should fail")
	}

	bad = DefaultParams()
	bad.ResetTime = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative reset time should fail")
	}

	bad = DefaultParams()
	bad.PriceDropThreshold = math.LegacyNewDec(2)
	if err := bad.Validate(); err == nil {
		t.Error("drop threshold above one should fail")
	}

	bad = DefaultParams()
	bad.PriceMultiplier = math.LegacyZeroDec()
	if err := bad.Validate(); err == nil {
		t.Error("zero price multiplier should fail")
	}
}
