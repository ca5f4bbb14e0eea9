package types

import (
	"testing"

	"cosmossdk.io/math"
)

func dec(s string) math.LegacyDec {
	return math.LegacyMustNewDecFromStr(s)
}

func TestTierHelpers(t *testing.T) {
	cases := []struct {
		tier    uint8
		name    string
		divisor string
		ratio   string
	}{
		{TierConservative, "conservative", "9", "8"},
		{TierModerate, "moderate", "5", "4"},
		{TierAggressive, "aggressive", "2", "1"},
	}

	for _, tc := range cases {
		if !IsValidTier(tc.tier) {
			t.Errorf("tier %d should be valid", tc.tier)
		}
		if got := TierName(tc.tier); got != tc.name {
			t.Errorf("tier %d name: got %s, want %s", tc.tier, got, tc.name)
		}
		if got := TierDivisor(tc.tier); !got.Equal(dec(tc.divisor)) {
			t.Errorf("tier %d divisor: got %s, want %s", tc.tier, got, tc.divisor)
		}
		if got := TierLeverageRatio(tc.tier); !got.Equal(dec(tc.ratio)) {
			t.Errorf("tier %d ratio: got %s, want %s", tc.tier, got, tc.ratio)
		}
	}

	if IsValidTier(3) {
		t.Error("tier 3 should be invalid")
	}
	if got := TierName(9); got != "unknown" {
		t.Errorf("unknown tier name: got %s", got)
	}
}

func TestSplitMint(t *testing.T) {
	cases := []struct {
		name       string
		tier       uint8
		collateral string
		price      string
		stable     string
		lever      string
	}{
		{"aggressive even split", TierAggressive, "1000", "120", "60000", "60000"},
		{"conservative deep stable", TierConservative, "900", "100", "10000", "80000"},
		{"moderate", TierModerate, "500", "100", "10000", "40000"},
		{"aggressive at 100", TierAggressive, "1000", "100", "50000", "50000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stable, lever := SplitMint(tc.tier, dec(tc.collateral), dec(tc.price))
			if !stable.Equal(dec(tc.stable)) {
				t.Errorf("stable: got %s, want %s", stable, tc.stable)
			}
			if !lever.Equal(dec(tc.lever)) {
				t.Errorf("lever: got %s, want %s", lever, tc.lever)
			}
		})
	}
}

func TestGrossNavIsOneAtMintPrice(t *testing.T) {
	for _, tier := range []uint8{TierConservative, TierModerate, TierAggressive} {
		nav := GrossNav(tier, dec("100"), dec("100"))
		if !nav.Equal(math.LegacyOneDec()) {
			t.Errorf("tier %s NAV at mint price: got %s, want 1", TierName(tier), nav)
		}
	}
}

func TestGrossNavLeverageOrdering(t *testing.T) {
	// The aggressive tier's thin stable cushion makes its per-unit NAV fall
	// fastest on a drawdown.
	mintPrice := dec("100")
	current := dec("60")

	aggressive := GrossNav(TierAggressive, mintPrice, current)
	moderate := GrossNav(TierModerate, mintPrice, current)
	conservative := GrossNav(TierConservative, mintPrice, current)

	if !aggressive.Equal(dec("0.2")) {
		t.Errorf("aggressive NAV at 60: got %s, want 0.2", aggressive)
	}
	if !moderate.Equal(dec("0.5")) {
		t.Errorf("moderate NAV at 60: got %s, want 0.5", moderate)
	}
	if !conservative.Equal(dec("0.55")) {
		t.Errorf("conservative NAV at 60: got %s, want 0.55", conservative)
	}
	if !aggressive.LT(moderate) || !moderate.LT(conservative) {
		t.Error("NAV should order aggressive < moderate < conservative on a drawdown")
	}
}

func TestGrossNavGoesNegative(t *testing.T) {
	// Aggressive NAV crosses zero at Pt = P0/2
	nav := GrossNav(TierAggressive, dec("100"), dec("40"))
	if !nav.Equal(dec("-0.2")) {
		t.Errorf("aggressive NAV at 40: got %s, want -0.2", nav)
	}
}

func TestAccruedInterest(t *testing.T) {
	rate := dec("0.03")

	if got := AccruedInterest(rate, 100, 100); !got.IsZero() {
		t.Errorf("no elapsed time: got %s, want 0", got)
	}
	if got := AccruedInterest(rate, 200, 100); !got.IsZero() {
		t.Errorf("negative elapsed time: got %s, want 0", got)
	}

	// A full year accrues the full annual rate
	if got := AccruedInterest(rate, 0, SecondsPerYear); !got.Equal(rate) {
		t.Errorf("full year: got %s, want %s", got, rate)
	}

	// Half a year accrues half
	if got := AccruedInterest(rate, 0, SecondsPerYear/2); !got.Equal(dec("0.015")) {
		t.Errorf("half year: got %s, want 0.015", got)
	}
}

func TestPriceDataValidity(t *testing.T) {
	price := &PriceData{Price: dec("120"), Timestamp: 1000}

	if !price.IsValid(1100, 300) {
		t.Error("fresh price should be valid")
	}
	if !price.IsValid(1300, 300) {
		t.Error("price at max age should still be valid")
	}
	if price.IsValid(1301, 300) {
		t.Error("price past max age should be stale")
	}

	var nilPrice *PriceData
	if nilPrice.IsValid(1000, 300) {
		t.Error("nil price should be invalid")
	}
	zero := &PriceData{Price: math.LegacyZeroDec(), Timestamp: 1000}
	if zero.IsValid(1000, 300) {
		t.Error("zero price should be invalid")
	}
}

func TestParamsValidate(t *testing.T) {
	params := DefaultParams()
	if err := params.Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}

	bad := DefaultParams()
	bad.InterestRate = dec("-0.01")
	if err := bad.Validate(); err == nil {
		t.Error("negative interest rate should fail")
	}

	bad = DefaultParams()
	bad.MaxPriceAgeSeconds = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero price age should fail")
	}

	bad = DefaultParams()
	bad.StableDenom = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty denom should fail")
	}
}

func TestPositionMergeIdentity(t *testing.T) {
	position := NewPosition(7, "ltc1owner", TierModerate, dec("100"), 1000)
	if !position.IsInert() {
		t.Error("fresh position should be inert")
	}
	position.LBalance = dec("10")
	if position.IsInert() {
		t.Error("funded position should not be inert")
	}
}
