package keeper

import (
	"context"
	"errors"
	"testing"
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

	"github.com/openalpha/tranche-protocol/x/auction/types"
	custodiankeeper "github.com/openalpha/tranche-protocol/x/custodian/keeper"
	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	liquidationkeeper "github.com/openalpha/tranche-protocol/x/liquidation/keeper"
	liquidationtypes "github.com/openalpha/tranche-protocol/x/liquidation/types"
)

const testAuthority = "auction-test-authority"

// Bech32 fixture addresses; the bank helpers reject anything hand-typed
var (
	testOwner     = sdk.AccAddress("seized_owner").String()
	testBuyer     = sdk.AccAddress("auction_buyer").String()
	testTriggerer = sdk.AccAddress("keeper_bot").String()
	testOracle    = sdk.AccAddress("oracle").String()
)

// permissiveBank accepts every bank operation unless a failure is armed
type permissiveBank struct {
	pullErr error
	sendErr error
}

func (b *permissiveBank) MintCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	return nil
}
func (b *permissiveBank) BurnCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	return nil
}
func (b *permissiveBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	return b.pullErr
}
func (b *permissiveBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	return b.sendErr
}

type testEnv struct {
	custodian   *custodiankeeper.Keeper
	liquidation *liquidationkeeper.Keeper
	keeper      *Keeper
	bank        *permissiveBank
	ctx         sdk.Context
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	custodianKey := storetypes.NewKVStoreKey(custodiantypes.StoreKey)
	liquidationKey := storetypes.NewKVStoreKey(liquidationtypes.StoreKey)
	auctionKey := storetypes.NewKVStoreKey(types.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(custodianKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(liquidationKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(auctionKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	ctx := sdk.NewContext(stateStore, cmtproto.Header{
		Time:   time.Unix(1_700_000_000, 0),
		Height: 1,
	}, false, log.NewNopLogger())

	bank := &permissiveBank{}
	ck := custodiankeeper.NewKeeper(cdc, custodianKey, bank, testAuthority, log.NewNopLogger())
	lk := liquidationkeeper.NewKeeper(cdc, liquidationKey, ck, testAuthority, log.NewNopLogger())
	ak := NewKeeper(cdc, auctionKey, ck, testAuthority, log.NewNopLogger())
	lk.SetAuctionKeeper(ak)
	ak.SetLiquidationKeeper(lk)

	ck.SetParams(ctx, custodiantypes.DefaultParams())
	lk.SetParams(ctx, liquidationtypes.DefaultParams())
	ak.SetParams(ctx, types.DefaultParams())

	return &testEnv{custodian: ck, liquidation: lk, keeper: ak, bank: bank, ctx: ctx}
}

func dec(s string) math.LegacyDec {
	return math.LegacyMustNewDecFromStr(s)
}

func (env *testEnv) postPrice(t *testing.T, price string) {
	t.Helper()
	if err := env.custodian.SetPrice(env.ctx, testOracle, dec(price)); err != nil {
		t.Fatalf("set price: %v", err)
	}
}

// startSeizedAuction stores a seized position with its frozen status and
// opens an auction over it, the way a bark would
func (env *testEnv) startSeizedAuction(t *testing.T, positionID uint64, vtb, budget, startPrice string) uint64 {
	t.Helper()

	position := custodiantypes.NewPosition(positionID, testOwner, custodiantypes.TierAggressive, dec("100"), env.ctx.BlockTime().Unix())
	position.Frozen = true
	env.custodian.SetPosition(env.ctx, position)

	auctionID, err := env.keeper.StartAuction(env.ctx, testOwner, positionID, dec(vtb), dec(budget), dec(startPrice))
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	env.liquidation.SetStatus(env.ctx, &liquidationtypes.LiquidationStatus{
		PositionID: positionID,
		Owner:      testOwner,
		RiskLevel:  liquidationtypes.RiskLiquidatable,
		IsFreezed:  true,
		AuctionID:  auctionID,
		UpdatedAt:  env.ctx.BlockTime().Unix(),
	})
	return auctionID
}

func TestStartAuctionValidation(t *testing.T) {
	env := setupEnv(t)

	cases := []struct {
		name               string
		vtb, budget, price string
	}{
		{"zero burn target", "0", "100", "20"},
		{"zero budget", "1000", "0", "20"},
		{"negative price", "1000", "100", "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.keeper.StartAuction(env.ctx, testOwner, 1, dec(tc.vtb), dec(tc.budget), dec(tc.price))
			if !types.ErrInvalidAmount.Is(err) {
				t.Errorf("got %v", err)
			}
		})
	}

	first, err := env.keeper.StartAuction(env.ctx, testOwner, 1, dec("1000"), dec("100"), dec("20"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := env.keeper.StartAuction(env.ctx, testOwner, 2, dec("1000"), dec("100"), dec("20"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if second != first+1 {
		t.Errorf("auction ids: got %d then %d", first, second)
	}
}

func TestPurchaseRecoversTargetAndCloses(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	// At price 20 the burn target caps the sale at 50 underlying even though
	// both the bid and the budget are larger
	result, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("200"), dec("20"), "")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if !result.UnderlyingSold.Equal(dec("50")) {
		t.Errorf("sold: got %s, want 50", result.UnderlyingSold)
	}
	if !result.StableCost.Equal(dec("1000")) {
		t.Errorf("cost: got %s, want 1000", result.StableCost)
	}
	if !result.ClearingPrice.Equal(dec("20")) {
		t.Errorf("price: got %s, want 20", result.ClearingPrice)
	}
	if !result.AuctionClosed || !result.RemainingTarget.IsZero() || !result.DeficitDelta.IsZero() {
		t.Errorf("close summary: closed=%v, remaining=%s, deficit=%s",
			result.AuctionClosed, result.RemainingTarget, result.DeficitDelta)
	}

	auction := env.keeper.GetAuction(env.ctx, auctionID)
	if auction.Active || !auction.UnderlyingAmount.IsZero() || !auction.SoldUnderlyingAmount.Equal(dec("50")) {
		t.Errorf("auction after close: active=%v, remaining=%s, sold=%s",
			auction.Active, auction.UnderlyingAmount, auction.SoldUnderlyingAmount)
	}

	// The 50 unsold underlying flows back to the ledger, no deficit
	ledger := env.custodian.GetLedger(env.ctx)
	if !ledger.TotalCollateral.Equal(dec("50")) {
		t.Errorf("returned collateral: got %s, want 50", ledger.TotalCollateral)
	}
	if !ledger.Deficit.IsZero() {
		t.Errorf("deficit: got %s, want 0", ledger.Deficit)
	}

	// Settlement lifts the freeze
	status := env.liquidation.GetStatus(env.ctx, 1)
	if status.IsFreezed || status.AuctionID != 0 {
		t.Errorf("status after settlement: frozen=%v, auction=%d", status.IsFreezed, status.AuctionID)
	}
	if env.custodian.GetPosition(env.ctx, 1).Frozen {
		t.Error("position still frozen after settlement")
	}
}

func TestPartialPurchaseKeepsAuctionOpen(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	result, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("20"), "")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if result.AuctionClosed {
		t.Error("partial fill should not close the auction")
	}
	if !result.StableCost.Equal(dec("200")) || !result.RemainingTarget.Equal(dec("800")) {
		t.Errorf("partial fill: cost=%s, remaining=%s", result.StableCost, result.RemainingTarget)
	}

	auction := env.keeper.GetAuction(env.ctx, auctionID)
	if !auction.Active || !auction.UnderlyingAmount.Equal(dec("90")) || !auction.ValueToBeBurned.Equal(dec("800")) {
		t.Errorf("auction after partial fill: active=%v, budget=%s, target=%s",
			auction.Active, auction.UnderlyingAmount, auction.ValueToBeBurned)
	}
	if !env.liquidation.GetStatus(env.ctx, 1).IsFreezed {
		t.Error("freeze must hold while the auction is open")
	}
}

func TestPurchaseDustRules(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	// Half the minimum lot, nowhere near finishing anything
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("0.5"), dec("20"), ""); !types.ErrAmountTooSmall.Is(err) {
		t.Errorf("dust purchase: got %v", err)
	}

	// The same lot is fine when it clears the whole remaining burn target
	dustID := env.startSeizedAuction(t, 2, "10", "100", "20")
	result, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, dustID, dec("0.5"), dec("20"), "")
	if err != nil {
		t.Fatalf("closing dust purchase: %v", err)
	}
	if !result.AuctionClosed || !result.StableCost.Equal(dec("10")) {
		t.Errorf("closing dust purchase: closed=%v, cost=%s", result.AuctionClosed, result.StableCost)
	}
}

func TestBudgetExhaustionSocializesDeficit(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "10", "20")

	// The whole budget sells for 200, leaving 800 of the target unrecovered
	result, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("20"), "")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if !result.AuctionClosed {
		t.Fatal("draining the budget should close the auction")
	}
	if !result.DeficitDelta.Equal(dec("800")) {
		t.Errorf("deficit delta: got %s, want 800", result.DeficitDelta)
	}

	ledger := env.custodian.GetLedger(env.ctx)
	if !ledger.Deficit.Equal(dec("800")) {
		t.Errorf("ledger deficit: got %s, want 800", ledger.Deficit)
	}
	if !ledger.TotalCollateral.IsZero() {
		t.Errorf("no collateral should return on exhaustion, got %s", ledger.TotalCollateral)
	}
	if env.liquidation.GetStatus(env.ctx, 1).IsFreezed {
		t.Error("freeze should lift even on a deficit close")
	}
}

func TestPurchaseRejections(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, 999, dec("10"), dec("20"), ""); !types.ErrAuctionNotFound.Is(err) {
		t.Errorf("unknown auction: got %v", err)
	}
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("0"), dec("20"), ""); !types.ErrInvalidAmount.Is(err) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("19"), ""); !types.ErrPriceTooHigh.Is(err) {
		t.Errorf("price ceiling: got %v", err)
	}

	// Close it, then buy again
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("200"), dec("20"), ""); err != nil {
		t.Fatalf("closing purchase: %v", err)
	}
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("20"), ""); !types.ErrAuctionInactive.Is(err) {
		t.Errorf("closed auction: got %v", err)
	}
}

func TestFailedPurchaseKeepsResetSweepAlive(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	// The stable pull fails, so the closing purchase is rolled back
	env.bank.pullErr = errors.New("stable balance short")
	cacheCtx, _ := env.ctx.CacheContext()
	if _, err := env.keeper.PurchaseUnderlying(cacheCtx, testBuyer, auctionID, dec("200"), dec("20"), ""); err == nil {
		t.Fatal("purchase should fail when the stable pull fails")
	}
	env.bank.pullErr = nil

	// The auction is still open and the reset sweep still sees it
	env.ctx = env.ctx.WithBlockTime(env.ctx.BlockTime().Add(1500 * time.Second))
	env.postPrice(t, "18")
	if err := env.keeper.EndBlocker(env.ctx); err != nil {
		t.Fatalf("end blocker: %v", err)
	}
	auction := env.keeper.GetAuction(env.ctx, auctionID)
	if auction.StartTime != env.ctx.BlockTime().Unix() {
		t.Error("sweep missed the auction after a failed purchase")
	}
	if !auction.StartingPrice.Equal(dec("18")) {
		t.Errorf("re-anchored price: got %s, want 18", auction.StartingPrice)
	}
}

func TestResetDeadlineIsExclusive(t *testing.T) {
	env := setupEnv(t)

	// A reset deadline short enough that it fires before the price-drop bound
	params := types.DefaultParams()
	params.ResetTime = 600
	env.keeper.SetParams(env.ctx, params)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	atDeadline := env.ctx.WithBlockTime(env.ctx.BlockTime().Add(600 * time.Second))
	status, err := env.keeper.GetAuctionStatus(atDeadline, auctionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.NeedsReset {
		t.Error("auction stale at exactly the reset deadline")
	}

	pastDeadline := env.ctx.WithBlockTime(env.ctx.BlockTime().Add(601 * time.Second))
	status, err = env.keeper.GetAuctionStatus(pastDeadline, auctionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.NeedsReset {
		t.Error("auction fresh past the reset deadline")
	}
}

func TestStaleAuctionNeedsReset(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")

	// Fresh auctions cannot be reset
	if _, err := env.keeper.ResetAuction(env.ctx, auctionID); !types.ErrNoResetNeeded.Is(err) {
		t.Errorf("fresh reset: got %v", err)
	}

	// After 1500s the price has decayed below 0.8 of the start
	env.ctx = env.ctx.WithBlockTime(env.ctx.BlockTime().Add(1500 * time.Second))

	status, err := env.keeper.GetAuctionStatus(env.ctx, auctionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.NeedsReset {
		t.Fatal("expected stale auction")
	}
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("20"), ""); !types.ErrNeedsReset.Is(err) {
		t.Errorf("purchase on stale auction: got %v", err)
	}

	// A reset needs a live oracle price to re-anchor to
	if _, err := env.keeper.ResetAuction(env.ctx, auctionID); !types.ErrOracleUnavailable.Is(err) {
		t.Errorf("reset without oracle: got %v", err)
	}

	env.postPrice(t, "18")
	newPrice, err := env.keeper.ResetAuction(env.ctx, auctionID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !newPrice.Equal(dec("18")) {
		t.Errorf("re-anchored price: got %s, want 18", newPrice)
	}

	auction := env.keeper.GetAuction(env.ctx, auctionID)
	if auction.StartTime != env.ctx.BlockTime().Unix() {
		t.Error("decay clock should restart on reset")
	}
	status, err = env.keeper.GetAuctionStatus(env.ctx, auctionID)
	if err != nil || status.NeedsReset {
		t.Errorf("status after reset: needsReset=%v, err=%v", status.NeedsReset, err)
	}

	// Purchases work again at the new price
	if _, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, auctionID, dec("10"), dec("18"), ""); err != nil {
		t.Errorf("purchase after reset: %v", err)
	}
}

func TestEndBlockerResetsStaleAuctions(t *testing.T) {
	env := setupEnv(t)
	auctionID := env.startSeizedAuction(t, 1, "1000", "100", "20")
	startTime := env.ctx.BlockTime().Unix()

	env.ctx = env.ctx.WithBlockTime(env.ctx.BlockTime().Add(1500 * time.Second))

	// Without a live oracle the sweep leaves the auction paused
	if err := env.keeper.EndBlocker(env.ctx); err != nil {
		t.Fatalf("end blocker: %v", err)
	}
	if got := env.keeper.GetAuction(env.ctx, auctionID).StartTime; got != startTime {
		t.Fatal("auction reset without an oracle price")
	}

	env.postPrice(t, "18")
	if err := env.keeper.EndBlocker(env.ctx); err != nil {
		t.Fatalf("end blocker: %v", err)
	}

	auction := env.keeper.GetAuction(env.ctx, auctionID)
	if auction.StartTime != env.ctx.BlockTime().Unix() {
		t.Error("sweep should restart the decay clock")
	}
	if !auction.StartingPrice.Equal(dec("18")) {
		t.Errorf("sweep re-anchor: got %s, want 18", auction.StartingPrice)
	}
}

func TestLifecycleBarkToDeficitClose(t *testing.T) {
	env := setupEnv(t)

	// Aggressive position: 1000 collateral at 100, 50000 lever claims
	env.postPrice(t, "100")
	mint, err := env.custodian.Mint(env.ctx, testOwner, dec("1000"), custodiantypes.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// At 50 the aggressive NAV is exactly zero: nothing back to the owner
	env.postPrice(t, "50")
	record, err := env.liquidation.Bark(env.ctx, testOwner, mint.PositionID, testTriggerer)
	if err != nil {
		t.Fatalf("bark: %v", err)
	}
	if !record.OwnerReturn.IsZero() {
		t.Errorf("owner return at zero NAV: got %s", record.OwnerReturn)
	}
	if !record.ValueToBeBurned.Equal(dec("50000")) || !record.StartingPrice.Equal(dec("50")) {
		t.Errorf("auction terms: target=%s, start=%s", record.ValueToBeBurned, record.StartingPrice)
	}

	// reward = (10 + 0.01 * (50000 - 50)) / 50, budget = 1000 - reward
	wantReward := dec("10.19")
	wantBudget := dec("989.81")
	if !record.KeeperReward.Equal(wantReward) || !record.AuctionBudget.Equal(wantBudget) {
		t.Fatalf("bark economics: reward=%s, budget=%s", record.KeeperReward, record.AuctionBudget)
	}

	// The full budget sells at the starting price, recovering 49490.5 of the
	// 50000 target. The 509.5 shortfall is socialized.
	result, err := env.keeper.PurchaseUnderlying(env.ctx, testBuyer, record.AuctionID, dec("2000"), dec("50"), "")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !result.UnderlyingSold.Equal(wantBudget) {
		t.Errorf("sold: got %s, want %s", result.UnderlyingSold, wantBudget)
	}
	if !result.StableCost.Equal(dec("49490.5")) {
		t.Errorf("cost: got %s, want 49490.5", result.StableCost)
	}
	if !result.AuctionClosed || !result.DeficitDelta.Equal(dec("509.5")) {
		t.Errorf("close: closed=%v, deficit=%s", result.AuctionClosed, result.DeficitDelta)
	}

	if !env.custodian.GetLedger(env.ctx).Deficit.Equal(dec("509.5")) {
		t.Errorf("ledger deficit: got %s", env.custodian.GetLedger(env.ctx).Deficit)
	}

	// The position is settled: unfrozen, empty, healthy
	status := env.liquidation.GetStatus(env.ctx, mint.PositionID)
	if status.IsFreezed || status.RiskLevel != liquidationtypes.RiskHealthy {
		t.Errorf("status after settlement: frozen=%v, level=%d", status.IsFreezed, status.RiskLevel)
	}
	position := env.custodian.GetPosition(env.ctx, mint.PositionID)
	if position.Frozen || !position.IsInert() {
		t.Errorf("position after settlement: frozen=%v, L=%s", position.Frozen, position.LBalance)
	}
	if len(env.keeper.GetActiveAuctions(env.ctx)) != 0 {
		t.Errorf("active auctions after settlement: %d", len(env.keeper.GetActiveAuctions(env.ctx)))
	}
}
