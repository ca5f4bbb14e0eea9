package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/api/types"
	auctionkeeper "github.com/openalpha/tranche-protocol/x/auction/keeper"
	auctiontypes "github.com/openalpha/tranche-protocol/x/auction/types"
	custodiankeeper "github.com/openalpha/tranche-protocol/x/custodian/keeper"
	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	liquidationkeeper "github.com/openalpha/tranche-protocol/x/liquidation/keeper"
	liquidationtypes "github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// oracleUpdater is the address the service posts prices under
const oracleUpdater = "api-oracle"

// KeeperService implements CustodianService, RiskService and AuctionService
// against real keepers backed by an in-memory multistore. It exists to
// exercise the state machine without a running node.
type KeeperService struct {
	custodianKeeper   *custodiankeeper.Keeper
	liquidationKeeper *liquidationkeeper.Keeper
	auctionKeeper     *auctionkeeper.Keeper

	ctx    sdk.Context
	height int64
	mu     sync.Mutex
}

// memBank is a permissive in-memory bank. Balances are tracked but not
// enforced; the service exists to exercise the state machine.
type memBank struct {
	mu       sync.Mutex
	balances map[string]sdk.Coins
}

func newMemBank() *memBank {
	return &memBank{balances: make(map[string]sdk.Coins)}
}

func (b *memBank) add(key string, amt sdk.Coins) {
	b.balances[key] = b.balances[key].Add(amt...)
}

func (b *memBank) sub(key string, amt sdk.Coins) {
	coins, neg := b.balances[key].SafeSub(amt...)
	if neg {
		coins = sdk.NewCoins()
	}
	b.balances[key] = coins
}

func (b *memBank) MintCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add("module:"+moduleName, amt)
	return nil
}

func (b *memBank) BurnCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub("module:"+moduleName, amt)
	return nil
}

func (b *memBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub(senderAddr.String(), amt)
	b.add("module:"+recipientModule, amt)
	return nil
}

func (b *memBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub("module:"+senderModule, amt)
	b.add(recipientAddr.String(), amt)
	return nil
}

// NewKeeperService creates a new KeeperService with in-memory keepers
func NewKeeperService() *KeeperService {
	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	custodianKey := storetypes.NewKVStoreKey(custodiantypes.StoreKey)
	liquidationKey := storetypes.NewKVStoreKey(liquidationtypes.StoreKey)
	auctionKey := storetypes.NewKVStoreKey(auctiontypes.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(custodianKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(liquidationKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(auctionKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		panic(fmt.Sprintf("failed to load store: %v", err))
	}

	ctx := sdk.NewContext(stateStore, cmtproto.Header{
		Time:   time.Now(),
		Height: 1,
	}, false, log.NewNopLogger())

	authority := "tranchefi-api"
	ck := custodiankeeper.NewKeeper(cdc, custodianKey, newMemBank(), authority, log.NewNopLogger())
	lk := liquidationkeeper.NewKeeper(cdc, liquidationKey, ck, authority, log.NewNopLogger())
	ak := auctionkeeper.NewKeeper(cdc, auctionKey, ck, authority, log.NewNopLogger())
	lk.SetAuctionKeeper(ak)
	ak.SetLiquidationKeeper(lk)

	ck.SetParams(ctx, custodiantypes.DefaultParams())
	lk.SetParams(ctx, liquidationtypes.DefaultParams())
	ak.SetParams(ctx, auctiontypes.DefaultParams())
	ck.GrantPriceUpdater(ctx, oracleUpdater)

	return &KeeperService{
		custodianKeeper:   ck,
		liquidationKeeper: lk,
		auctionKeeper:     ak,
		ctx:               ctx,
		height:            1,
	}
}

// advance moves the context to the wall clock and the next height. Callers
// must hold s.mu.
func (s *KeeperService) advance() sdk.Context {
	s.height++
	s.ctx = s.ctx.WithBlockHeight(s.height).WithBlockTime(time.Now())
	return s.ctx
}

// PostPrice posts a fresh oracle price and runs the risk and auction sweeps
func (s *KeeperService) PostPrice(price string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := math.LegacyNewDecFromStr(price)
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	ctx := s.advance()
	if err := s.custodianKeeper.SetPrice(ctx, oracleUpdater, p); err != nil {
		return err
	}
	if err := s.liquidationKeeper.EndBlocker(ctx); err != nil {
		return err
	}
	return s.auctionKeeper.EndBlocker(ctx)
}

// ============================================================================
// CustodianService Implementation
// ============================================================================

func (s *KeeperService) Mint(ctx context.Context, req *types.MintRequest) (*types.MintResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collateral, err := math.LegacyNewDecFromStr(req.Collateral)
	if err != nil {
		return nil, fmt.Errorf("invalid collateral: %w", err)
	}
	result, err := s.custodianKeeper.Mint(s.advance(), req.Creditor, collateral, req.Tier)
	if err != nil {
		return nil, err
	}
	return &types.MintResponse{
		PositionID:    result.PositionID,
		StableMinted:  result.StableMinted.String(),
		LeverCredited: result.LeverCredited.String(),
		MintPrice:     result.MintPrice.String(),
	}, nil
}

func (s *KeeperService) Burn(ctx context.Context, req *types.BurnRequest) (*types.BurnResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	percentage, err := math.LegacyNewDecFromStr(req.Percentage)
	if err != nil {
		return nil, fmt.Errorf("invalid percentage: %w", err)
	}
	result, err := s.custodianKeeper.Burn(s.advance(), req.Owner, req.PositionID, percentage)
	if err != nil {
		return nil, err
	}
	return &types.BurnResponse{
		PositionID:         result.PositionID,
		LeverBurned:        result.LeverBurned.String(),
		StableBurned:       result.StableBurned.String(),
		UnderlyingReturned: result.UnderlyingReturned.String(),
	}, nil
}

func (s *KeeperService) GetPosition(ctx context.Context, positionID uint64) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.custodianKeeper.GetPosition(s.ctx, positionID)
	if position == nil {
		return nil, fmt.Errorf("position %d not found", positionID)
	}
	return s.toAPIPosition(position), nil
}

func (s *KeeperService) ListPositions(ctx context.Context, owner string) ([]*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := s.custodianKeeper.GetPositionsByOwner(s.ctx, owner)
	out := make([]*types.Position, 0, len(positions))
	for _, position := range positions {
		out = append(out, s.toAPIPosition(position))
	}
	return out, nil
}

func (s *KeeperService) GetLedger(ctx context.Context) (*types.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.custodianKeeper.GetLedger(s.ctx)
	return &types.Ledger{
		TotalCollateral: ledger.TotalCollateral.String(),
		TotalStable:     ledger.TotalStable.String(),
		TotalLever:      ledger.TotalLever.String(),
		Deficit:         ledger.Deficit.String(),
		UpdatedAt:       ledger.UpdatedAt,
	}, nil
}

func (s *KeeperService) GetPrice(ctx context.Context) (*types.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ts, valid := s.custodianKeeper.CurrentPrice(s.ctx)
	out := &types.Price{Timestamp: ts, Valid: valid}
	if !price.IsNil() {
		out.Price = price.String()
	}
	return out, nil
}

func (s *KeeperService) ListTiers(ctx context.Context) ([]*types.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := s.custodianKeeper.GetLeverageTokenInfos(s.ctx)
	out := make([]*types.Tier, 0, len(infos))
	for _, info := range infos {
		out = append(out, &types.Tier{
			Tier:          info.Tier,
			Name:          info.TierName,
			Divisor:       info.Divisor.String(),
			LeverageRatio: info.LeverageRatio.String(),
			TotalLever:    info.TotalLever.String(),
		})
	}
	return out, nil
}

// ============================================================================
// RiskService Implementation
// ============================================================================

func (s *KeeperService) GetRiskStatus(ctx context.Context, positionID uint64) (*types.RiskStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.custodianKeeper.GetPosition(s.ctx, positionID)
	if position == nil {
		return nil, fmt.Errorf("position %d not found", positionID)
	}

	out := &types.RiskStatus{
		PositionID: positionID,
		Owner:      position.Owner,
		Frozen:     position.Frozen,
	}
	if netNav, err := s.custodianKeeper.NetNav(s.ctx, position); err == nil {
		out.NetNav = netNav.String()
	}
	if status := s.liquidationKeeper.GetStatus(s.ctx, positionID); status != nil {
		out.RiskLevel = status.RiskLevel
		out.AuctionID = status.AuctionID
		out.UpdatedAt = status.UpdatedAt
	}
	out.RiskName = liquidationtypes.RiskLevelName(out.RiskLevel)
	return out, nil
}

func (s *KeeperService) Bark(ctx context.Context, req *types.BarkRequest) (*types.LiquidationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.liquidationKeeper.Bark(s.advance(), req.Owner, req.PositionID, req.Triggerer)
	if err != nil {
		return nil, err
	}
	return toAPIRecord(record), nil
}

func (s *KeeperService) ListRecords(ctx context.Context, limit int) ([]*types.LiquidationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.liquidationKeeper.GetRecentRecords(s.ctx, limit)
	out := make([]*types.LiquidationRecord, 0, len(records))
	for _, record := range records {
		out = append(out, toAPIRecord(record))
	}
	return out, nil
}

// ============================================================================
// AuctionService Implementation
// ============================================================================

func (s *KeeperService) GetAuction(ctx context.Context, auctionID uint64) (*types.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction := s.auctionKeeper.GetAuction(s.ctx, auctionID)
	if auction == nil {
		return nil, fmt.Errorf("auction %d not found", auctionID)
	}
	return s.toAPIAuction(auction), nil
}

func (s *KeeperService) ListAuctions(ctx context.Context) ([]*types.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auctions := s.auctionKeeper.GetActiveAuctions(s.ctx)
	out := make([]*types.Auction, 0, len(auctions))
	for _, auction := range auctions {
		out = append(out, s.toAPIAuction(auction))
	}
	return out, nil
}

func (s *KeeperService) Purchase(ctx context.Context, req *types.PurchaseRequest) (*types.PurchaseResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxUnderlying, err := math.LegacyNewDecFromStr(req.MaxUnderlying)
	if err != nil {
		return nil, fmt.Errorf("invalid max underlying: %w", err)
	}
	maxPrice, err := math.LegacyNewDecFromStr(req.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid max price: %w", err)
	}

	result, err := s.auctionKeeper.PurchaseUnderlying(s.advance(), req.Buyer, req.AuctionID, maxUnderlying, maxPrice, req.Recipient)
	if err != nil {
		return nil, err
	}
	resp := &types.PurchaseResponse{
		AuctionID:       result.AuctionID,
		UnderlyingSold:  result.UnderlyingSold.String(),
		StableCost:      result.StableCost.String(),
		ClearingPrice:   result.ClearingPrice.String(),
		AuctionClosed:   result.AuctionClosed,
		RemainingTarget: result.RemainingTarget.String(),
	}
	if !result.DeficitDelta.IsNil() && !result.DeficitDelta.IsZero() {
		resp.DeficitDelta = result.DeficitDelta.String()
	}
	return resp, nil
}

// ============================================================================
// Mapping helpers
// ============================================================================

func (s *KeeperService) toAPIPosition(position *custodiantypes.Position) *types.Position {
	out := &types.Position{
		PositionID: position.PositionID,
		Owner:      position.Owner,
		Tier:       position.Tier,
		TierName:   custodiantypes.TierName(position.Tier),
		MintPrice:  position.MintPrice.String(),
		LBalance:   position.LBalance.String(),
		Collateral: position.Collateral.String(),
		Frozen:     position.Frozen,
		CreatedAt:  position.CreatedAt,
		UpdatedAt:  position.UpdatedAt,
	}
	if netNav, err := s.custodianKeeper.NetNav(s.ctx, position); err == nil {
		out.NetNav = netNav.String()
	}
	if status := s.liquidationKeeper.GetStatus(s.ctx, position.PositionID); status != nil {
		out.RiskLevel = status.RiskLevel
	}
	out.RiskName = liquidationtypes.RiskLevelName(out.RiskLevel)
	return out
}

func (s *KeeperService) toAPIAuction(auction *auctiontypes.Auction) *types.Auction {
	out := &types.Auction{
		AuctionID:           auction.AuctionID,
		OriginalOwner:       auction.OriginalOwner,
		PositionID:          auction.PositionID,
		ValueToBeBurned:     auction.ValueToBeBurned.String(),
		OriginalValueToBurn: auction.OriginalValueToBurn.String(),
		UnderlyingAmount:    auction.UnderlyingAmount.String(),
		SoldUnderlying:      auction.SoldUnderlyingAmount.String(),
		StartingPrice:       auction.StartingPrice.String(),
		StartTime:           auction.StartTime,
		Active:              auction.Active,
	}
	if status, err := s.auctionKeeper.GetAuctionStatus(s.ctx, auction.AuctionID); err == nil {
		out.CurrentPrice = status.CurrentPrice.String()
		out.NeedsReset = status.NeedsReset
	}
	return out
}

func toAPIRecord(record *liquidationtypes.LiquidationRecord) *types.LiquidationRecord {
	return &types.LiquidationRecord{
		RecordID:        record.RecordID,
		PositionID:      record.PositionID,
		Owner:           record.Owner,
		Triggerer:       record.Triggerer,
		AuctionID:       record.AuctionID,
		LeverSeized:     record.LeverSeized.String(),
		NetNav:          record.NetNav.String(),
		PenaltyValue:    record.PenaltyValue.String(),
		KeeperReward:    record.KeeperReward.String(),
		ValueToBeBurned: record.ValueToBeBurned.String(),
		Timestamp:       record.Timestamp,
	}
}
