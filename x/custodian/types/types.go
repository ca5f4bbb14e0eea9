package types

import (
	"time"

	"cosmossdk.io/math"
)

// Module name and store key
const (
	ModuleName = "custodian"
	StoreKey   = ModuleName
)

// Tranche tiers. The tier index is ordinal risk appetite; the leverage
// multiplier runs the other way (Conservative carries the largest L per S).
const (
	TierConservative = uint8(0)
	TierModerate     = uint8(1)
	TierAggressive   = uint8(2)
)

// Seconds per year used for interest accrual
const SecondsPerYear = int64(365 * 24 * 60 * 60)

// Tier split divisors: value = collateral * price, stable = value / divisor
var (
	tierDivisors = map[uint8]math.LegacyDec{
		TierConservative: math.LegacyNewDec(9),
		TierModerate:     math.LegacyNewDec(5),
		TierAggressive:   math.LegacyNewDec(2),
	}
	tierLeverageRatios = map[uint8]math.LegacyDec{
		TierConservative: math.LegacyNewDec(8),
		TierModerate:     math.LegacyNewDec(4),
		TierAggressive:   math.LegacyNewDec(1),
	}
)

// IsValidTier reports whether the tier index is known
func IsValidTier(tier uint8) bool {
	_, ok := tierDivisors[tier]
	return ok
}

// TierDivisor returns the value split divisor for a tier
func TierDivisor(tier uint8) math.LegacyDec {
	return tierDivisors[tier]
}

// TierLeverageRatio returns L per S for a tier
func TierLeverageRatio(tier uint8) math.LegacyDec {
	return tierLeverageRatios[tier]
}

// TierName returns a human-readable tier name
func TierName(tier uint8) string {
	switch tier {
	case TierConservative:
		return "conservative"
	case TierModerate:
		return "moderate"
	case TierAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// SplitMint computes the stable and lever claims created by depositing
// collateral at the given price into a tier.
func SplitMint(tier uint8, collateral, price math.LegacyDec) (stable, lever math.LegacyDec) {
	value := collateral.Mul(price)
	stable = value.Quo(TierDivisor(tier))
	lever = stable.Mul(TierLeverageRatio(tier))
	return stable, lever
}

// GrossNav computes the gross NAV per lever unit for a tier given the mint
// price and the current price:
//
//	Conservative: (9*Pt - P0) / (8*P0)
//	Moderate:     (5*Pt - P0) / (4*P0)
//	Aggressive:   (2*Pt - P0) / P0
//
// At Pt == P0 every tier values at exactly 1. The result may be negative.
func GrossNav(tier uint8, mintPrice, currentPrice math.LegacyDec) math.LegacyDec {
	divisor := TierDivisor(tier)
	ratio := TierLeverageRatio(tier)
	numerator := divisor.Mul(currentPrice).Sub(mintPrice)
	denominator := ratio.Mul(mintPrice)
	return numerator.Quo(denominator)
}

// AccruedInterest computes the interest accrued per NAV unit since the
// last accrual timestamp. Rate is annualized.
func AccruedInterest(annualRate math.LegacyDec, lastAccrual, now int64) math.LegacyDec {
	if now <= lastAccrual {
		return math.LegacyZeroDec()
	}
	elapsed := math.LegacyNewDec(now - lastAccrual)
	return annualRate.Mul(elapsed).Quo(math.LegacyNewDec(SecondsPerYear))
}

// Params defines the custodian module parameters
type Params struct {
	// Annual interest rate charged on lever claims, as a decimal (0.03 = 300 bps)
	InterestRate math.LegacyDec `json:"interest_rate"`
	// Floor applied to net NAV after interest deduction
	MinNetNav math.LegacyDec `json:"min_net_nav"`
	// Maximum age of an oracle price before it is considered stale
	MaxPriceAgeSeconds int64 `json:"max_price_age_seconds"`
	// Denomination of the underlying collateral asset
	CollateralDenom string `json:"collateral_denom"`
	// Denomination of the stable claim token
	StableDenom string `json:"stable_denom"`
}

// DefaultParams returns the default custodian parameters
func DefaultParams() Params {
	return Params{
		InterestRate:       math.LegacyNewDecWithPrec(3, 2), // 300 bps
		MinNetNav:          math.LegacyNewDec(-1),
		MaxPriceAgeSeconds: 300,
		CollateralDenom:    "ultc",
		StableDenom:        "ustable",
	}
}

// Validate checks parameter sanity
func (p Params) Validate() error {
	if p.InterestRate.IsNil() || p.InterestRate.IsNegative() {
		return ErrInvalidParams.Wrap("interest rate must be non-negative")
	}
	if p.MaxPriceAgeSeconds <= 0 {
		return ErrInvalidParams.Wrap("max price age must be positive")
	}
	if p.CollateralDenom == "" || p.StableDenom == "" {
		return ErrInvalidParams.Wrap("denoms must be set")
	}
	return nil
}

// Position is a lever claim bucket identified by (owner, tier, mint price).
// Re-minting into the same bucket merges at a weighted-average mint price.
type Position struct {
	PositionID      uint64         `json:"position_id"`
	Owner           string         `json:"owner"`
	Tier            uint8          `json:"tier"`
	MintPrice       math.LegacyDec `json:"mint_price"`
	LBalance        math.LegacyDec `json:"l_balance"`
	Collateral      math.LegacyDec `json:"collateral"`
	Frozen          bool           `json:"frozen"`
	LastAccrualTime int64          `json:"last_accrual_time"`
	CreatedAt       int64          `json:"created_at"`
	UpdatedAt       int64          `json:"updated_at"`
}

// IsInert reports whether the position holds no lever claims
func (p *Position) IsInert() bool {
	return p.LBalance.IsZero()
}

// NewPosition creates a fresh position bucket
func NewPosition(id uint64, owner string, tier uint8, mintPrice math.LegacyDec, now int64) *Position {
	return &Position{
		PositionID:      id,
		Owner:           owner,
		Tier:            tier,
		MintPrice:       mintPrice,
		LBalance:        math.LegacyZeroDec(),
		Collateral:      math.LegacyZeroDec(),
		LastAccrualTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Ledger holds the system-wide claim totals. Deficit is signed: positive
// means value left unburned after auctions, negative means surplus.
type Ledger struct {
	TotalCollateral math.LegacyDec `json:"total_collateral"`
	TotalStable     math.LegacyDec `json:"total_stable"`
	TotalLever      math.LegacyDec `json:"total_lever"`
	Deficit         math.LegacyDec `json:"deficit"`
	UpdatedAt       int64          `json:"updated_at"`
}

// NewLedger returns a zeroed ledger
func NewLedger() *Ledger {
	return &Ledger{
		TotalCollateral: math.LegacyZeroDec(),
		TotalStable:     math.LegacyZeroDec(),
		TotalLever:      math.LegacyZeroDec(),
		Deficit:         math.LegacyZeroDec(),
		UpdatedAt:       time.Now().Unix(),
	}
}

// PriceData is a posted oracle price for the collateral asset
type PriceData struct {
	Price     math.LegacyDec `json:"price"`
	Timestamp int64          `json:"timestamp"`
	Updater   string         `json:"updater"`
}

// IsValid reports whether the price is usable at the given time
func (p *PriceData) IsValid(now, maxAgeSeconds int64) bool {
	if p == nil || p.Price.IsNil() || !p.Price.IsPositive() {
		return false
	}
	return now-p.Timestamp <= maxAgeSeconds
}

// MintResult summarizes a completed mint
type MintResult struct {
	PositionID    uint64         `json:"position_id"`
	StableMinted  math.LegacyDec `json:"stable_minted"`
	LeverCredited math.LegacyDec `json:"lever_credited"`
	MintPrice     math.LegacyDec `json:"mint_price"`
}

// BurnResult summarizes a completed burn
type BurnResult struct {
	PositionID         uint64         `json:"position_id"`
	LeverBurned        math.LegacyDec `json:"lever_burned"`
	StableBurned       math.LegacyDec `json:"stable_burned"`
	UnderlyingReturned math.LegacyDec `json:"underlying_returned"`
}

// LeverageTokenInfo is the per-tier summary returned by queries
type LeverageTokenInfo struct {
	Tier          uint8          `json:"tier"`
	TierName      string         `json:"tier_name"`
	LeverageRatio math.LegacyDec `json:"leverage_ratio"`
	Divisor       math.LegacyDec `json:"divisor"`
	TotalLever    math.LegacyDec `json:"total_lever"`
}
