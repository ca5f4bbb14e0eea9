package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/openalpha/tranche-protocol/api/types"
)

// MockService implements CustodianService, RiskService and AuctionService
// with in-memory mock data for development and testing
type MockService struct {
	mu          sync.RWMutex
	positions   map[uint64]*types.Position
	auctions    map[uint64]*types.Auction
	records     []*types.LiquidationRecord
	ledger      *types.Ledger
	price       *types.Price
	positionSeq atomic.Uint64
}

// NewMockService creates a new MockService seeded with sample data
func NewMockService() *MockService {
	s := &MockService{
		positions: make(map[uint64]*types.Position),
		auctions:  make(map[uint64]*types.Auction),
		ledger: &types.Ledger{
			TotalCollateral: "1500.000000000000000000",
			TotalStable:     "25000.000000000000000000",
			TotalLever:      "110000.000000000000000000",
			Deficit:         "0.000000000000000000",
			UpdatedAt:       types.NowMillis() / 1000,
		},
		price: &types.Price{
			Price:     "120.000000000000000000",
			Timestamp: types.NowMillis() / 1000,
			Valid:     true,
		},
	}

	now := types.NowMillis() / 1000
	s.positionSeq.Store(2)
	s.positions[1] = &types.Position{
		PositionID: 1,
		Owner:      "cosmos1mockowner",
		Tier:       2,
		TierName:   "aggressive",
		MintPrice:  "100.000000000000000000",
		LBalance:   "60000.000000000000000000",
		Collateral: "1000.000000000000000000",
		NetNav:     "1.400000000000000000",
		RiskLevel:  0,
		RiskName:   "healthy",
		CreatedAt:  now - 3600,
		UpdatedAt:  now,
	}
	s.positions[2] = &types.Position{
		PositionID: 2,
		Owner:      "cosmos1mockowner",
		Tier:       0,
		TierName:   "conservative",
		MintPrice:  "110.000000000000000000",
		LBalance:   "48888.888888888888888888",
		Collateral: "500.000000000000000000",
		NetNav:     "1.022727272727272727",
		RiskLevel:  1,
		RiskName:   "watch",
		CreatedAt:  now - 1800,
		UpdatedAt:  now,
	}

	s.auctions[1] = &types.Auction{
		AuctionID:           1,
		OriginalOwner:       "cosmos1liquidated",
		PositionID:          7,
		ValueToBeBurned:     "4200.000000000000000000",
		OriginalValueToBurn: "5000.000000000000000000",
		UnderlyingAmount:    "80.000000000000000000",
		SoldUnderlying:      "8.000000000000000000",
		StartingPrice:       "120.000000000000000000",
		CurrentPrice:        "100.000000000000000000",
		StartTime:           now - 600,
		Active:              true,
	}

	return s
}

// ============================================================================
// CustodianService Implementation
// ============================================================================

func (s *MockService) Mint(ctx context.Context, req *types.MintRequest) (*types.MintResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collateral, err := strconv.ParseFloat(req.Collateral, 64)
	if err != nil || collateral <= 0 {
		return nil, fmt.Errorf("invalid collateral: %s", req.Collateral)
	}

	divisors := map[uint8]float64{0: 9, 1: 5, 2: 2}
	ratios := map[uint8]float64{0: 8, 1: 4, 2: 1}
	divisor, ok := divisors[req.Tier]
	if !ok {
		return nil, fmt.Errorf("invalid tier: %d", req.Tier)
	}

	stable := collateral * 120 / divisor
	positionID := s.positionSeq.Add(1)

	return &types.MintResponse{
		PositionID:    positionID,
		StableMinted:  fmt.Sprintf("%.18f", stable),
		LeverCredited: fmt.Sprintf("%.18f", stable*ratios[req.Tier]),
		MintPrice:     "120.000000000000000000",
	}, nil
}

func (s *MockService) Burn(ctx context.Context, req *types.BurnRequest) (*types.BurnResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[req.PositionID]
	if !ok || position.Owner != req.Owner {
		return nil, fmt.Errorf("position %d not found", req.PositionID)
	}
	return &types.BurnResponse{
		PositionID:         req.PositionID,
		LeverBurned:        "6000.000000000000000000",
		StableBurned:       "6000.000000000000000000",
		UnderlyingReturned: "100.000000000000000000",
	}, nil
}

func (s *MockService) GetPosition(ctx context.Context, positionID uint64) (*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("position %d not found", positionID)
	}
	return position, nil
}

func (s *MockService) ListPositions(ctx context.Context, owner string) ([]*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Position, 0)
	for _, position := range s.positions {
		if position.Owner == owner {
			out = append(out, position)
		}
	}
	return out, nil
}

func (s *MockService) GetLedger(ctx context.Context) (*types.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger, nil
}

func (s *MockService) GetPrice(ctx context.Context) (*types.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price, nil
}

func (s *MockService) ListTiers(ctx context.Context) ([]*types.Tier, error) {
	return []*types.Tier{
		{Tier: 0, Name: "conservative", Divisor: "9", LeverageRatio: "8", TotalLever: "48888.888888888888888888"},
		{Tier: 1, Name: "moderate", Divisor: "5", LeverageRatio: "4", TotalLever: "0"},
		{Tier: 2, Name: "aggressive", Divisor: "2", LeverageRatio: "1", TotalLever: "60000.000000000000000000"},
	}, nil
}

// ============================================================================
// RiskService Implementation
// ============================================================================

func (s *MockService) GetRiskStatus(ctx context.Context, positionID uint64) (*types.RiskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("position %d not found", positionID)
	}
	return &types.RiskStatus{
		PositionID: positionID,
		Owner:      position.Owner,
		RiskLevel:  position.RiskLevel,
		RiskName:   position.RiskName,
		NetNav:     position.NetNav,
		Frozen:     position.Frozen,
		UpdatedAt:  position.UpdatedAt,
	}, nil
}

func (s *MockService) Bark(ctx context.Context, req *types.BarkRequest) (*types.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[req.PositionID]
	if !ok || position.Owner != req.Owner {
		return nil, fmt.Errorf("position %d not found", req.PositionID)
	}
	// Seeded positions are above water
	return nil, fmt.Errorf("NAV above liquidation threshold")
}

func (s *MockService) ListRecords(ctx context.Context, limit int) ([]*types.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

// ============================================================================
// AuctionService Implementation
// ============================================================================

func (s *MockService) GetAuction(ctx context.Context, auctionID uint64) (*types.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %d not found", auctionID)
	}
	return auction, nil
}

func (s *MockService) ListAuctions(ctx context.Context) ([]*types.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Auction, 0, len(s.auctions))
	for _, auction := range s.auctions {
		if auction.Active {
			out = append(out, auction)
		}
	}
	return out, nil
}

func (s *MockService) Purchase(ctx context.Context, req *types.PurchaseRequest) (*types.PurchaseResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[req.AuctionID]
	if !ok {
		return nil, fmt.Errorf("auction %d not found", req.AuctionID)
	}
	return &types.PurchaseResponse{
		AuctionID:       auction.AuctionID,
		UnderlyingSold:  "10.000000000000000000",
		StableCost:      "1000.000000000000000000",
		ClearingPrice:   auction.CurrentPrice,
		AuctionClosed:   false,
		RemainingTarget: "3200.000000000000000000",
	}, nil
}
