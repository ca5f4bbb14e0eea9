package types

import (
	"cosmossdk.io/math"
)

// Module name and store key
const (
	ModuleName = "auction"
	StoreKey   = ModuleName
)

// Params defines the auction module parameters
type Params struct {
	// Auction lifetime before a mandatory reset, in seconds
	ResetTime int64 `json:"reset_time"`
	// Fraction of the starting price below which the auction must re-anchor
	PriceDropThreshold math.LegacyDec `json:"price_drop_threshold"`
	// Linear decay horizon, in seconds
	Tau int64 `json:"tau"`
	// Minimum lot in underlying units; smaller trades are rejected unless
	// they clear the remaining dust
	MinAuctionAmount math.LegacyDec `json:"min_auction_amount"`
	// Reset starting price as a multiple of the live oracle price
	PriceMultiplier math.LegacyDec `json:"price_multiplier"`
}

// DefaultParams returns the default auction parameters
func DefaultParams() Params {
	return Params{
		ResetTime:          7200,
		PriceDropThreshold: math.LegacyNewDecWithPrec(8, 1), // 0.8
		Tau:                7200,
		MinAuctionAmount:   math.LegacyNewDec(1),
		PriceMultiplier:    math.LegacyOneDec(),
	}
}

// Validate checks parameter sanity
func (p Params) Validate() error {
	if p.ResetTime <= 0 {
		return ErrInvalidParams.Wrap("reset time must be positive")
	}
	if p.Tau <= 0 {
		return ErrInvalidParams.Wrap("tau must be positive")
	}
	if p.PriceDropThreshold.IsNil() || p.PriceDropThreshold.IsNegative() || p.PriceDropThreshold.GT(math.LegacyOneDec()) {
		return ErrInvalidParams.Wrap("price drop threshold must be in [0, 1]")
	}
	if p.PriceMultiplier.IsNil() || !p.PriceMultiplier.IsPositive() {
		return ErrInvalidParams.Wrap("price multiplier must be positive")
	}
	return nil
}

// LinearDecrease is the declining-price function driving every auction:
// a linear ramp from the starting price to zero over tau seconds.
type LinearDecrease struct {
	Tau int64
}

// Price returns the clearing price after elapsed seconds. Non-increasing in
// elapsed; exactly zero at elapsed >= tau.
func (d LinearDecrease) Price(startingPrice math.LegacyDec, elapsed int64) math.LegacyDec {
	if elapsed <= 0 {
		return startingPrice
	}
	if elapsed >= d.Tau {
		return math.LegacyZeroDec()
	}
	remaining := math.LegacyNewDec(d.Tau - elapsed).Quo(math.LegacyNewDec(d.Tau))
	return startingPrice.Mul(remaining)
}

// Auction is one declining-price sale of seized collateral
type Auction struct {
	AuctionID            uint64         `json:"auction_id"`
	OriginalOwner        string         `json:"original_owner"`
	PositionID           uint64         `json:"position_id"`
	ValueToBeBurned      math.LegacyDec `json:"value_to_be_burned"`
	OriginalValueToBurn  math.LegacyDec `json:"original_value_to_burn"`
	UnderlyingAmount     math.LegacyDec `json:"underlying_amount"`
	SoldUnderlyingAmount math.LegacyDec `json:"sold_underlying_amount"`
	StartTime            int64          `json:"start_time"`
	StartingPrice        math.LegacyDec `json:"starting_price"`
	Active               bool           `json:"active"`
	CreatedAt            int64          `json:"created_at"`
	ClosedAt             int64          `json:"closed_at,omitempty"`
}

// ResetDeadline returns the time at which the auction becomes stale
func (a *Auction) ResetDeadline(resetTime int64) int64 {
	return a.StartTime + resetTime
}

// AuctionStatus is the read-side view of an open auction
type AuctionStatus struct {
	AuctionID    uint64         `json:"auction_id"`
	NeedsReset   bool           `json:"needs_reset"`
	CurrentPrice math.LegacyDec `json:"current_price"`
	Active       bool           `json:"active"`
}

// PurchaseResult summarizes a completed purchase
type PurchaseResult struct {
	AuctionID       uint64         `json:"auction_id"`
	UnderlyingSold  math.LegacyDec `json:"underlying_sold"`
	StableCost      math.LegacyDec `json:"stable_cost"`
	ClearingPrice   math.LegacyDec `json:"clearing_price"`
	AuctionClosed   bool           `json:"auction_closed"`
	DeficitDelta    math.LegacyDec `json:"deficit_delta"`
	RemainingTarget math.LegacyDec `json:"remaining_target"`
}
