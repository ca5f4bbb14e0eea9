package api

import (
	"github.com/openalpha/tranche-protocol/api/types"
)

// Re-export types for convenience
type (
	Tier              = types.Tier
	Position          = types.Position
	Ledger            = types.Ledger
	Price             = types.Price
	MintRequest       = types.MintRequest
	MintResponse      = types.MintResponse
	BurnRequest       = types.BurnRequest
	BurnResponse      = types.BurnResponse
	RiskStatus        = types.RiskStatus
	BarkRequest       = types.BarkRequest
	LiquidationRecord = types.LiquidationRecord
	Auction           = types.Auction
	PurchaseRequest   = types.PurchaseRequest
	PurchaseResponse  = types.PurchaseResponse
	CustodianService  = types.CustodianService
	RiskService       = types.RiskService
	AuctionService    = types.AuctionService
)

// nowMillis returns current timestamp in milliseconds
func nowMillis() int64 {
	return types.NowMillis()
}
