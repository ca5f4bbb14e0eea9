package types

import (
	"cosmossdk.io/math"
)

// Module name and store key
const (
	ModuleName = "liquidation"
	StoreKey   = ModuleName
)

// Risk levels, ordinal 0-4. A frozen position keeps RiskLiquidatable until
// its auction settles.
const (
	RiskHealthy      = uint8(0)
	RiskWatch        = uint8(1)
	RiskAtRisk       = uint8(2)
	RiskAdjustment   = uint8(3)
	RiskLiquidatable = uint8(4)
)

// RiskLevelName returns a human-readable risk level name
func RiskLevelName(level uint8) string {
	switch level {
	case RiskHealthy:
		return "healthy"
	case RiskWatch:
		return "watch"
	case RiskAtRisk:
		return "at_risk"
	case RiskAdjustment:
		return "adjustment"
	case RiskLiquidatable:
		return "liquidatable"
	default:
		return "unknown"
	}
}

// Params defines the liquidation module parameters
type Params struct {
	// Net NAV below this level marks a position for adjustment
	AdjustmentThreshold math.LegacyDec `json:"adjustment_threshold"`
	// Net NAV below this level makes a position liquidatable
	LiquidationThreshold math.LegacyDec `json:"liquidation_threshold"`
	// Penalty charged against the owner's remaining value, per lever unit
	PenaltyRate math.LegacyDec `json:"penalty_rate"`
	// Flat keeper reward in value units
	FixedReward math.LegacyDec `json:"fixed_reward"`
	// Marginal keeper reward on sale size above the minimum lot
	PercentageReward math.LegacyDec `json:"percentage_reward"`
	// Minimum auction lot in underlying units
	MinAuctionAmount math.LegacyDec `json:"min_auction_amount"`
	// Auction starting price as a multiple of the live oracle price
	PriceMultiplier math.LegacyDec `json:"price_multiplier"`
}

// DefaultParams returns the default liquidation parameters
func DefaultParams() Params {
	return Params{
		AdjustmentThreshold:  math.LegacyNewDecWithPrec(5, 1),  // 0.5
		LiquidationThreshold: math.LegacyNewDecWithPrec(3, 1),  // 0.3
		PenaltyRate:          math.LegacyNewDecWithPrec(3, 2),  // 0.03
		FixedReward:          math.LegacyNewDec(10),
		PercentageReward:     math.LegacyNewDecWithPrec(1, 2),  // 0.01
		MinAuctionAmount:     math.LegacyNewDec(1),
		PriceMultiplier:      math.LegacyOneDec(),
	}
}

// Validate checks parameter sanity
func (p Params) Validate() error {
	if p.LiquidationThreshold.IsNil() || p.LiquidationThreshold.IsNegative() {
		return ErrInvalidParams.Wrap("liquidation threshold must be non-negative")
	}
	if p.AdjustmentThreshold.IsNil() || p.AdjustmentThreshold.LT(p.LiquidationThreshold) {
		return ErrInvalidParams.Wrap("adjustment threshold must be at or above liquidation threshold")
	}
	if p.PenaltyRate.IsNil() || p.PenaltyRate.IsNegative() {
		return ErrInvalidParams.Wrap("penalty rate must be non-negative")
	}
	if p.PriceMultiplier.IsNil() || !p.PriceMultiplier.IsPositive() {
		return ErrInvalidParams.Wrap("price multiplier must be positive")
	}
	return nil
}

// ClassifyRiskLevel maps net NAV to a risk level against the two configured
// thresholds. The 0-4 ladder interpolates the gap between them.
func (p Params) ClassifyRiskLevel(netNav math.LegacyDec) uint8 {
	if netNav.LT(p.LiquidationThreshold) {
		return RiskLiquidatable
	}
	mid := p.AdjustmentThreshold.Add(p.LiquidationThreshold).QuoInt64(2)
	if netNav.LT(mid) {
		return RiskAdjustment
	}
	if netNav.LT(p.AdjustmentThreshold) {
		return RiskAtRisk
	}
	if netNav.LT(math.LegacyOneDec()) {
		return RiskWatch
	}
	return RiskHealthy
}

// LiquidationStatus tracks the risk state of one position
type LiquidationStatus struct {
	PositionID uint64 `json:"position_id"`
	Owner      string `json:"owner"`
	RiskLevel  uint8  `json:"risk_level"`
	IsFreezed  bool   `json:"is_freezed"`
	AuctionID  uint64 `json:"auction_id,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// LiquidationRecord is the audit trail for a completed bark
type LiquidationRecord struct {
	RecordID        string         `json:"record_id"`
	PositionID      uint64         `json:"position_id"`
	Owner           string         `json:"owner"`
	Triggerer       string         `json:"triggerer"`
	AuctionID       uint64         `json:"auction_id"`
	LeverSeized     math.LegacyDec `json:"lever_seized"`
	NetNav          math.LegacyDec `json:"net_nav"`
	PenaltyValue    math.LegacyDec `json:"penalty_value"`
	OwnerReturn     math.LegacyDec `json:"owner_return"`
	KeeperReward    math.LegacyDec `json:"keeper_reward"`
	ValueToBeBurned math.LegacyDec `json:"value_to_be_burned"`
	AuctionBudget   math.LegacyDec `json:"auction_budget"`
	StartingPrice   math.LegacyDec `json:"starting_price"`
	Timestamp       int64          `json:"timestamp"`
}
