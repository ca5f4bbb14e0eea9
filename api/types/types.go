package types

import (
	"context"
	"time"
)

// Tier describes one mint tier in API responses
type Tier struct {
	Tier          uint8  `json:"tier"`
	Name          string `json:"name"`
	Divisor       string `json:"divisor"`
	LeverageRatio string `json:"leverage_ratio"`
	TotalLever    string `json:"total_lever"`
}

// Position represents a lever claim bucket in API responses
type Position struct {
	PositionID uint64 `json:"position_id"`
	Owner      string `json:"owner"`
	Tier       uint8  `json:"tier"`
	TierName   string `json:"tier_name"`
	MintPrice  string `json:"mint_price"`
	LBalance   string `json:"l_balance"`
	Collateral string `json:"collateral"`
	NetNav     string `json:"net_nav,omitempty"`
	RiskLevel  uint8  `json:"risk_level"`
	RiskName   string `json:"risk_name"`
	Frozen     bool   `json:"frozen"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Ledger represents the system-wide claim totals
type Ledger struct {
	TotalCollateral string `json:"total_collateral"`
	TotalStable     string `json:"total_stable"`
	TotalLever      string `json:"total_lever"`
	Deficit         string `json:"deficit"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Price represents the posted oracle price
type Price struct {
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
	Valid     bool   `json:"valid"`
}

// MintRequest represents the request to mint paired claims
type MintRequest struct {
	Creditor   string `json:"creditor"`
	Collateral string `json:"collateral"`
	Tier       uint8  `json:"tier"`
}

// MintResponse represents the response after a mint
type MintResponse struct {
	PositionID    uint64 `json:"position_id"`
	StableMinted  string `json:"stable_minted"`
	LeverCredited string `json:"lever_credited"`
	MintPrice     string `json:"mint_price"`
}

// BurnRequest represents the request to burn paired claims
type BurnRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
	Percentage string `json:"percentage"`
}

// BurnResponse represents the response after a burn
type BurnResponse struct {
	PositionID         uint64 `json:"position_id"`
	LeverBurned        string `json:"lever_burned"`
	StableBurned       string `json:"stable_burned"`
	UnderlyingReturned string `json:"underlying_returned"`
}

// RiskStatus represents the risk state of one position
type RiskStatus struct {
	PositionID uint64 `json:"position_id"`
	Owner      string `json:"owner"`
	RiskLevel  uint8  `json:"risk_level"`
	RiskName   string `json:"risk_name"`
	NetNav     string `json:"net_nav"`
	Frozen     bool   `json:"frozen"`
	AuctionID  uint64 `json:"auction_id,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// BarkRequest represents the request to liquidate a position
type BarkRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
	Triggerer  string `json:"triggerer"`
}

// LiquidationRecord represents a completed liquidation in API responses
type LiquidationRecord struct {
	RecordID        string `json:"record_id"`
	PositionID      uint64 `json:"position_id"`
	Owner           string `json:"owner"`
	Triggerer       string `json:"triggerer"`
	AuctionID       uint64 `json:"auction_id"`
	LeverSeized     string `json:"lever_seized"`
	NetNav          string `json:"net_nav"`
	PenaltyValue    string `json:"penalty_value"`
	KeeperReward    string `json:"keeper_reward"`
	ValueToBeBurned string `json:"value_to_be_burned"`
	Timestamp       int64  `json:"timestamp"`
}

// Auction represents an open or closed auction in API responses
type Auction struct {
	AuctionID           uint64 `json:"auction_id"`
	OriginalOwner       string `json:"original_owner"`
	PositionID          uint64 `json:"position_id"`
	ValueToBeBurned     string `json:"value_to_be_burned"`
	OriginalValueToBurn string `json:"original_value_to_burn"`
	UnderlyingAmount    string `json:"underlying_amount"`
	SoldUnderlying      string `json:"sold_underlying"`
	StartingPrice       string `json:"starting_price"`
	CurrentPrice        string `json:"current_price,omitempty"`
	NeedsReset          bool   `json:"needs_reset"`
	StartTime           int64  `json:"start_time"`
	Active              bool   `json:"active"`
}

// PurchaseRequest represents the request to buy from an auction
type PurchaseRequest struct {
	Buyer         string `json:"buyer"`
	AuctionID     uint64 `json:"auction_id"`
	MaxUnderlying string `json:"max_underlying"`
	MaxPrice      string `json:"max_price"`
	Recipient     string `json:"recipient,omitempty"`
}

// PurchaseResponse represents the response after an auction purchase
type PurchaseResponse struct {
	AuctionID       uint64 `json:"auction_id"`
	UnderlyingSold  string `json:"underlying_sold"`
	StableCost      string `json:"stable_cost"`
	ClearingPrice   string `json:"clearing_price"`
	AuctionClosed   bool   `json:"auction_closed"`
	DeficitDelta    string `json:"deficit_delta,omitempty"`
	RemainingTarget string `json:"remaining_target"`
}

// CustodianService defines the interface for mint, burn and ledger operations
type CustodianService interface {
	Mint(ctx context.Context, req *MintRequest) (*MintResponse, error)
	Burn(ctx context.Context, req *BurnRequest) (*BurnResponse, error)
	GetPosition(ctx context.Context, positionID uint64) (*Position, error)
	ListPositions(ctx context.Context, owner string) ([]*Position, error)
	GetLedger(ctx context.Context) (*Ledger, error)
	GetPrice(ctx context.Context) (*Price, error)
	ListTiers(ctx context.Context) ([]*Tier, error)
}

// RiskService defines the interface for risk and liquidation operations
type RiskService interface {
	GetRiskStatus(ctx context.Context, positionID uint64) (*RiskStatus, error)
	Bark(ctx context.Context, req *BarkRequest) (*LiquidationRecord, error)
	ListRecords(ctx context.Context, limit int) ([]*LiquidationRecord, error)
}

// AuctionService defines the interface for auction operations
type AuctionService interface {
	GetAuction(ctx context.Context, auctionID uint64) (*Auction, error)
	ListAuctions(ctx context.Context) ([]*Auction, error)
	Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error)
}

// Helper function to get current timestamp in milliseconds
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
