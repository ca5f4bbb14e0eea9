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

	auctionkeeper "github.com/openalpha/tranche-protocol/x/auction/keeper"
	auctiontypes "github.com/openalpha/tranche-protocol/x/auction/types"
	custodiankeeper "github.com/openalpha/tranche-protocol/x/custodian/keeper"
	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

const testAuthority = "liquidation-test-authority"

// Bech32 fixture addresses; the bank helpers reject anything hand-typed
var (
	testOwner     = sdk.AccAddress("position_owner").String()
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
	custodian *custodiankeeper.Keeper
	keeper    *Keeper
	auction   *auctionkeeper.Keeper
	bank      *permissiveBank
	ctx       sdk.Context
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	custodianKey := storetypes.NewKVStoreKey(custodiantypes.StoreKey)
	liquidationKey := storetypes.NewKVStoreKey(types.StoreKey)
	auctionKey := storetypes.NewKVStoreKey(auctiontypes.StoreKey)

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
	lk := NewKeeper(cdc, liquidationKey, ck, testAuthority, log.NewNopLogger())
	ak := auctionkeeper.NewKeeper(cdc, auctionKey, ck, testAuthority, log.NewNopLogger())
	lk.SetAuctionKeeper(ak)
	ak.SetLiquidationKeeper(lk)

	ck.SetParams(ctx, custodiantypes.DefaultParams())
	lk.SetParams(ctx, types.DefaultParams())
	ak.SetParams(ctx, auctiontypes.DefaultParams())

	return &testEnv{custodian: ck, keeper: lk, auction: ak, bank: bank, ctx: ctx}
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

// mintAggressive opens an aggressive position worth 50000 lever claims:
// 1000 collateral at price 100
func (env *testEnv) mintAggressive(t *testing.T) uint64 {
	t.Helper()
	env.postPrice(t, "100")
	result, err := env.custodian.Mint(env.ctx, testOwner, dec("1000"), custodiantypes.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return result.PositionID
}

func TestBarkRejectsAboveThreshold(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)

	// Aggressive NAV at 80 is 0.6, well above the 0.3 threshold
	env.postPrice(t, "80")
	_, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer)
	if !types.ErrNavAboveThreshold.Is(err) {
		t.Fatalf("expected NAV threshold error, got %v", err)
	}
	if err.Error() != "NAV above liquidation threshold" {
		t.Errorf("error message: got %q", err.Error())
	}

	// The failed bark must not have touched the position
	position := env.custodian.GetPosition(env.ctx, positionID)
	if position.Frozen || !position.LBalance.Equal(dec("50000")) {
		t.Errorf("position mutated by rejected bark: frozen=%v, L=%s", position.Frozen, position.LBalance)
	}
}

func TestBarkSeizesAndOpensAuction(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)

	// NAV at 60 is 0.2, below the threshold
	env.postPrice(t, "60")
	record, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer)
	if err != nil {
		t.Fatalf("bark: %v", err)
	}

	if !record.LeverSeized.Equal(dec("50000")) {
		t.Errorf("lever seized: got %s, want 50000", record.LeverSeized)
	}
	if !record.NetNav.Equal(dec("0.2")) {
		t.Errorf("net nav: got %s, want 0.2", record.NetNav)
	}
	if !record.PenaltyValue.Equal(dec("1500")) {
		t.Errorf("penalty: got %s, want 1500", record.PenaltyValue)
	}

	// owner return = (50000*0.2 - 1500) / 60
	wantOwnerReturn := dec("8500").Quo(dec("60"))
	if !record.OwnerReturn.Equal(wantOwnerReturn) {
		t.Errorf("owner return: got %s, want %s", record.OwnerReturn, wantOwnerReturn)
	}

	// burn target = L / leverage ratio, starting price = 1 * oracle
	if !record.ValueToBeBurned.Equal(dec("50000")) {
		t.Errorf("burn target: got %s, want 50000", record.ValueToBeBurned)
	}
	if !record.StartingPrice.Equal(dec("60")) {
		t.Errorf("starting price: got %s, want 60", record.StartingPrice)
	}

	// reward = (10 + 0.01 * (50000 - 1*60)) / 60
	wantReward := dec("10").Add(dec("0.01").Mul(dec("49940"))).Quo(dec("60"))
	if !record.KeeperReward.Equal(wantReward) {
		t.Errorf("keeper reward: got %s, want %s", record.KeeperReward, wantReward)
	}

	wantBudget := dec("1000").Sub(wantOwnerReturn).Sub(wantReward)
	if !record.AuctionBudget.Equal(wantBudget) {
		t.Errorf("auction budget: got %s, want %s", record.AuctionBudget, wantBudget)
	}

	// Position is seized and frozen
	position := env.custodian.GetPosition(env.ctx, positionID)
	if !position.Frozen || !position.LBalance.IsZero() {
		t.Errorf("position after bark: frozen=%v, L=%s", position.Frozen, position.LBalance)
	}

	// Status is liquidatable and points at the auction
	status := env.keeper.GetStatus(env.ctx, positionID)
	if !status.IsFreezed || status.RiskLevel != types.RiskLiquidatable {
		t.Errorf("status after bark: frozen=%v, level=%d", status.IsFreezed, status.RiskLevel)
	}
	if status.AuctionID != record.AuctionID {
		t.Errorf("status auction id: got %d, want %d", status.AuctionID, record.AuctionID)
	}

	auction := env.auction.GetAuction(env.ctx, record.AuctionID)
	if auction == nil || !auction.Active {
		t.Fatal("auction not opened")
	}
	if !auction.ValueToBeBurned.Equal(dec("50000")) || !auction.UnderlyingAmount.Equal(wantBudget) {
		t.Errorf("auction terms: target=%s, budget=%s", auction.ValueToBeBurned, auction.UnderlyingAmount)
	}

	// Record is retrievable
	records := env.keeper.GetRecentRecords(env.ctx, 10)
	if len(records) != 1 || records[0].RecordID != record.RecordID {
		t.Errorf("recent records: got %d", len(records))
	}
}

func TestBarkTwiceFails(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)
	env.postPrice(t, "60")

	if _, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer); err != nil {
		t.Fatalf("first bark: %v", err)
	}
	if _, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer); !types.ErrPositionFrozen.Is(err) {
		t.Errorf("second bark: got %v", err)
	}
}

func TestBarkRejectsMissingAndInert(t *testing.T) {
	env := setupEnv(t)

	if _, err := env.keeper.Bark(env.ctx, testOwner, 42, testTriggerer); !types.ErrPositionNotFound.Is(err) {
		t.Errorf("missing position: got %v", err)
	}

	positionID := env.mintAggressive(t)
	if _, err := env.custodian.Burn(env.ctx, testOwner, positionID, dec("100")); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if _, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer); !types.ErrPositionInert.Is(err) {
		t.Errorf("inert position: got %v", err)
	}
}

func TestBarkRejectsInsufficientBudget(t *testing.T) {
	env := setupEnv(t)
	env.postPrice(t, "60")

	// A hand-made position whose collateral cannot cover the owner return
	position := custodiantypes.NewPosition(1, testOwner, custodiantypes.TierAggressive, dec("100"), env.ctx.BlockTime().Unix())
	position.LBalance = dec("50000")
	position.Collateral = dec("100")
	env.custodian.SetPosition(env.ctx, position)

	if _, err := env.keeper.Bark(env.ctx, testOwner, 1, testTriggerer); !types.ErrInsufficientBudget.Is(err) {
		t.Errorf("expected budget error, got %v", err)
	}
}

func TestFailedBarkLeavesIndexesIntact(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)
	env.keeper.RebuildRiskIndex(env.ctx)
	env.postPrice(t, "60")

	// The owner payout fails, so the whole bark is rolled back
	env.bank.sendErr = errors.New("module account unfunded")
	cacheCtx, _ := env.ctx.CacheContext()
	if _, err := env.keeper.Bark(cacheCtx, testOwner, positionID, testTriggerer); err == nil {
		t.Fatal("bark should fail when the payout transfer fails")
	}
	env.bank.sendErr = nil

	// The discarded transaction must not leak into the in-memory indexes:
	// the position is still a sweep candidate and no phantom auction remains
	candidates := env.keeper.CandidatePositions(env.ctx, dec("60"))
	if len(candidates) != 1 || candidates[0] != positionID {
		t.Fatalf("candidates after failed bark: got %v", candidates)
	}
	if got := len(env.auction.GetActiveAuctions(env.ctx)); got != 0 {
		t.Fatalf("active auctions after failed bark: %d", got)
	}

	// With the bank healthy again the same bark goes through
	record, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer)
	if err != nil {
		t.Fatalf("bark after recovery: %v", err)
	}
	auction := env.auction.GetAuction(env.ctx, record.AuctionID)
	if auction == nil || !auction.Active {
		t.Fatal("auction not opened after recovery")
	}
	if got := env.keeper.CandidatePositions(env.ctx, dec("60")); len(got) != 0 {
		t.Errorf("seized position still indexed: %v", got)
	}
}

func TestRiskLadder(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)

	cases := []struct {
		price string
		level uint8
	}{
		{"100", types.RiskHealthy},     // NAV 1.0
		{"90", types.RiskWatch},        // NAV 0.8
		{"72", types.RiskAtRisk},       // NAV 0.44
		{"68", types.RiskAdjustment},   // NAV 0.36
		{"60", types.RiskLiquidatable}, // NAV 0.2
	}

	for _, tc := range cases {
		env.postPrice(t, tc.price)
		level, _, err := env.keeper.UpdateRiskLevel(env.ctx, testOwner, positionID)
		if err != nil {
			t.Fatalf("update at %s: %v", tc.price, err)
		}
		if level != tc.level {
			t.Errorf("price %s: got %s, want %s", tc.price, types.RiskLevelName(level), types.RiskLevelName(tc.level))
		}

		// Idempotent: a second pass lands on the same level
		again, _, err := env.keeper.UpdateRiskLevel(env.ctx, testOwner, positionID)
		if err != nil || again != level {
			t.Errorf("price %s reclassify: got %s (%v)", tc.price, types.RiskLevelName(again), err)
		}
	}
}

func TestEndBlockerSweepsCandidates(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)

	env.keeper.RebuildRiskIndex(env.ctx)

	// Aggressive cutoff at live price 60 is 2*60/1.3, roughly 92.3; the
	// bucket minted at 100 is a candidate.
	env.postPrice(t, "60")
	candidates := env.keeper.CandidatePositions(env.ctx, dec("60"))
	if len(candidates) != 1 || candidates[0] != positionID {
		t.Fatalf("candidates: got %v", candidates)
	}

	if err := env.keeper.EndBlocker(env.ctx); err != nil {
		t.Fatalf("end blocker: %v", err)
	}
	status := env.keeper.GetStatus(env.ctx, positionID)
	if status.RiskLevel != types.RiskLiquidatable {
		t.Errorf("swept level: got %s", types.RiskLevelName(status.RiskLevel))
	}

	// At a healthy price the same bucket is no candidate at all
	candidates = env.keeper.CandidatePositions(env.ctx, dec("100"))
	if len(candidates) != 0 {
		t.Errorf("healthy price candidates: got %v", candidates)
	}
}

func TestEndBlockerSkipsOnStaleOracle(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)
	env.keeper.RebuildRiskIndex(env.ctx)

	// Move past the price max age without reposting
	maxAge := custodiantypes.DefaultParams().MaxPriceAgeSeconds
	env.ctx = env.ctx.WithBlockTime(env.ctx.BlockTime().Add(time.Duration(maxAge+1) * time.Second))

	if err := env.keeper.EndBlocker(env.ctx); err != nil {
		t.Fatalf("end blocker: %v", err)
	}
	status := env.keeper.GetStatus(env.ctx, positionID)
	if status.RiskLevel != types.RiskHealthy {
		t.Errorf("level changed on stale oracle: got %s", types.RiskLevelName(status.RiskLevel))
	}
}

func TestClearFreezeRequiresFrozen(t *testing.T) {
	env := setupEnv(t)
	positionID := env.mintAggressive(t)

	if err := env.keeper.ClearFreeze(env.ctx, positionID); !types.ErrNotFrozen.Is(err) {
		t.Errorf("clear on unfrozen: got %v", err)
	}

	env.postPrice(t, "60")
	if _, err := env.keeper.Bark(env.ctx, testOwner, positionID, testTriggerer); err != nil {
		t.Fatalf("bark: %v", err)
	}
	if err := env.keeper.ClearFreeze(env.ctx, positionID); err != nil {
		t.Fatalf("clear freeze: %v", err)
	}

	status := env.keeper.GetStatus(env.ctx, positionID)
	if status.IsFreezed || status.AuctionID != 0 {
		t.Errorf("status after clear: frozen=%v, auction=%d", status.IsFreezed, status.AuctionID)
	}
	if env.custodian.GetPosition(env.ctx, positionID).Frozen {
		t.Error("custodian position still frozen")
	}
	// Zeroed balances reclassify as healthy
	if status.RiskLevel != types.RiskHealthy {
		t.Errorf("level after settlement: got %s", types.RiskLevelName(status.RiskLevel))
	}
}

func TestRecentRecordsLimit(t *testing.T) {
	env := setupEnv(t)
	env.postPrice(t, "60")

	for i := uint64(1); i <= 3; i++ {
		position := custodiantypes.NewPosition(i, testOwner, custodiantypes.TierAggressive, dec("100"), env.ctx.BlockTime().Unix())
		position.LBalance = dec("50000")
		position.Collateral = dec("1000")
		env.custodian.SetPosition(env.ctx, position)
		if _, err := env.keeper.Bark(env.ctx, testOwner, i, testTriggerer); err != nil {
			t.Fatalf("bark %d: %v", i, err)
		}
	}

	if got := len(env.keeper.GetRecentRecords(env.ctx, 2)); got != 2 {
		t.Errorf("limited records: got %d, want 2", got)
	}
	if got := len(env.keeper.GetRecentRecords(env.ctx, 10)); got != 3 {
		t.Errorf("all records: got %d, want 3", got)
	}
}
