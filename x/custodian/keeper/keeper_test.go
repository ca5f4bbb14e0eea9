package keeper

import (
	"context"
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

	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

const testAuthority = "custodian-test-authority"

// Bech32 fixture addresses; the bank helpers reject anything hand-typed
var (
	testCreditor = sdk.AccAddress("creditor").String()
	testStranger = sdk.AccAddress("stranger").String()
	testOracle   = sdk.AccAddress("oracle").String()
)

// recordingBank is a permissive bank stub that counts operations
type recordingBank struct {
	minted sdk.Coins
	burned sdk.Coins
	sent   sdk.Coins
	pulled sdk.Coins
}

func (b *recordingBank) MintCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	b.minted = b.minted.Add(amt...)
	return nil
}

func (b *recordingBank) BurnCoins(ctx context.Context, moduleName string, amt sdk.Coins) error {
	b.burned = b.burned.Add(amt...)
	return nil
}

func (b *recordingBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	b.pulled = b.pulled.Add(amt...)
	return nil
}

func (b *recordingBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	b.sent = b.sent.Add(amt...)
	return nil
}

func setupKeeper(t *testing.T) (*Keeper, sdk.Context, *recordingBank) {
	t.Helper()

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	ctx := sdk.NewContext(stateStore, cmtproto.Header{
		Time:   time.Unix(1_700_000_000, 0),
		Height: 1,
	}, false, log.NewNopLogger())

	bank := &recordingBank{}
	k := NewKeeper(cdc, storeKey, bank, testAuthority, log.NewNopLogger())
	k.SetParams(ctx, types.DefaultParams())
	return k, ctx, bank
}

func dec(s string) math.LegacyDec {
	return math.LegacyMustNewDecFromStr(s)
}

func postPrice(t *testing.T, k *Keeper, ctx sdk.Context, price string) {
	t.Helper()
	if err := k.SetPrice(ctx, testOracle, dec(price)); err != nil {
		t.Fatalf("set price: %v", err)
	}
}

func TestMintCreatesPosition(t *testing.T) {
	k, ctx, bank := setupKeeper(t)
	postPrice(t, k, ctx, "120")

	result, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !result.StableMinted.Equal(dec("60000")) {
		t.Errorf("stable minted: got %s, want 60000", result.StableMinted)
	}
	if !result.LeverCredited.Equal(dec("60000")) {
		t.Errorf("lever credited: got %s, want 60000", result.LeverCredited)
	}
	if !result.MintPrice.Equal(dec("120")) {
		t.Errorf("mint price: got %s, want 120", result.MintPrice)
	}

	position := k.GetPosition(ctx, result.PositionID)
	if position == nil {
		t.Fatal("position not stored")
	}
	if !position.LBalance.Equal(dec("60000")) || !position.Collateral.Equal(dec("1000")) {
		t.Errorf("position balances: L=%s, C=%s", position.LBalance, position.Collateral)
	}

	ledger := k.GetLedger(ctx)
	if !ledger.TotalCollateral.Equal(dec("1000")) {
		t.Errorf("ledger collateral: got %s", ledger.TotalCollateral)
	}
	if !ledger.TotalStable.Equal(dec("60000")) || !ledger.TotalLever.Equal(dec("60000")) {
		t.Errorf("ledger claims: S=%s, L=%s", ledger.TotalStable, ledger.TotalLever)
	}

	if bank.pulled.IsZero() || bank.minted.IsZero() {
		t.Error("mint should pull collateral and mint stable")
	}
}

func TestMintMergesSameBucket(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	first, err := k.Mint(ctx, testCreditor, dec("500"), types.TierModerate)
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	second, err := k.Mint(ctx, testCreditor, dec("500"), types.TierModerate)
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if first.PositionID != second.PositionID {
		t.Errorf("same bucket should merge: got positions %d and %d", first.PositionID, second.PositionID)
	}

	position := k.GetPosition(ctx, first.PositionID)
	if !position.LBalance.Equal(dec("80000")) {
		t.Errorf("merged lever: got %s, want 80000", position.LBalance)
	}
	if !position.Collateral.Equal(dec("1000")) {
		t.Errorf("merged collateral: got %s, want 1000", position.Collateral)
	}
}

func TestMintSeparateBucketsPerPrice(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	first, err := k.Mint(ctx, testCreditor, dec("100"), types.TierAggressive)
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}

	postPrice(t, k, ctx, "110")
	second, err := k.Mint(ctx, testCreditor, dec("100"), types.TierAggressive)
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if first.PositionID == second.PositionID {
		t.Error("different mint prices should open different buckets")
	}

	positions := k.GetPositionsByOwner(ctx, testCreditor)
	if len(positions) != 2 {
		t.Errorf("owner index: got %d positions, want 2", len(positions))
	}
}

func TestMintRejectsInvalidInputs(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	if _, err := k.Mint(ctx, testCreditor, dec("100"), 7); !types.ErrInvalidTier.Is(err) {
		t.Errorf("invalid tier: got %v", err)
	}
	if _, err := k.Mint(ctx, testCreditor, math.LegacyZeroDec(), types.TierAggressive); !types.ErrInvalidAmount.Is(err) {
		t.Errorf("zero collateral: got %v", err)
	}
	if _, err := k.Mint(ctx, testCreditor, dec("-5"), types.TierAggressive); !types.ErrInvalidAmount.Is(err) {
		t.Errorf("negative collateral: got %v", err)
	}
	if _, err := k.Mint(ctx, "not-a-bech32-address", dec("100"), types.TierAggressive); err == nil {
		t.Error("malformed creditor address accepted")
	}
}

func TestMintFailsWithoutOracle(t *testing.T) {
	k, ctx, _ := setupKeeper(t)

	if _, err := k.Mint(ctx, testCreditor, dec("100"), types.TierAggressive); !types.ErrOracleUnavailable.Is(err) {
		t.Errorf("missing oracle: got %v", err)
	}
}

func TestMintFailsOnStalePrice(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	maxAge := k.GetParams(ctx).MaxPriceAgeSeconds
	staleCtx := ctx.WithBlockTime(ctx.BlockTime().Add(time.Duration(maxAge+1) * time.Second))

	if _, err := k.Mint(staleCtx, testCreditor, dec("100"), types.TierAggressive); !types.ErrOracleUnavailable.Is(err) {
		t.Errorf("stale oracle: got %v", err)
	}
}

func TestBurnRoundTrip(t *testing.T) {
	k, ctx, bank := setupKeeper(t)
	postPrice(t, k, ctx, "120")

	minted, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	result, err := k.Burn(ctx, testCreditor, minted.PositionID, dec("50"))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !result.LeverBurned.Equal(dec("30000")) {
		t.Errorf("lever burned: got %s, want 30000", result.LeverBurned)
	}
	if !result.StableBurned.Equal(dec("30000")) {
		t.Errorf("stable burned: got %s, want 30000", result.StableBurned)
	}
	// underlying = divisor * stable / price = 2 * 30000 / 120
	if !result.UnderlyingReturned.Equal(dec("500")) {
		t.Errorf("underlying returned: got %s, want 500", result.UnderlyingReturned)
	}

	position := k.GetPosition(ctx, minted.PositionID)
	if !position.LBalance.Equal(dec("30000")) {
		t.Errorf("remaining lever: got %s, want 30000", position.LBalance)
	}

	if bank.burned.IsZero() || bank.sent.IsZero() {
		t.Error("burn should burn stable and return underlying")
	}

	// Burning the rest leaves the position inert
	if _, err := k.Burn(ctx, testCreditor, minted.PositionID, dec("100")); err != nil {
		t.Fatalf("full burn: %v", err)
	}
	position = k.GetPosition(ctx, minted.PositionID)
	if !position.IsInert() {
		t.Errorf("position should be inert, L=%s", position.LBalance)
	}
	if _, err := k.Burn(ctx, testCreditor, minted.PositionID, dec("10")); !types.ErrInsufficientLever.Is(err) {
		t.Errorf("burn on inert position: got %v", err)
	}
}

func TestBurnValidatesOwnerAndPercentage(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	minted, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierConservative)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := k.Burn(ctx, testStranger, minted.PositionID, dec("10")); !types.ErrNotPositionOwner.Is(err) {
		t.Errorf("wrong owner: got %v", err)
	}
	if _, err := k.Burn(ctx, testCreditor, minted.PositionID, dec("101")); !types.ErrInvalidPercentage.Is(err) {
		t.Errorf("over 100 percent: got %v", err)
	}
	if _, err := k.Burn(ctx, testCreditor, minted.PositionID, math.LegacyZeroDec()); !types.ErrInvalidPercentage.Is(err) {
		t.Errorf("zero percent: got %v", err)
	}
	if _, err := k.Burn(ctx, testCreditor, 999, dec("10")); !types.ErrPositionNotFound.Is(err) {
		t.Errorf("missing position: got %v", err)
	}
}

func TestNetNavDeductsInterest(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	minted, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	position := k.GetPosition(ctx, minted.PositionID)

	// No time elapsed: net equals gross equals 1
	nav, err := k.NetNav(ctx, position)
	if err != nil {
		t.Fatalf("net nav: %v", err)
	}
	if !nav.Equal(math.LegacyOneDec()) {
		t.Errorf("nav at mint: got %s, want 1", nav)
	}

	// A year later at the same price the 300 bps annual rate has accrued
	later := ctx.WithBlockTime(ctx.BlockTime().Add(time.Duration(types.SecondsPerYear) * time.Second))
	postPrice(t, k, later, "100")
	nav, err = k.NetNav(later, position)
	if err != nil {
		t.Fatalf("net nav after year: %v", err)
	}
	if !nav.Equal(dec("0.97")) {
		t.Errorf("nav after a year: got %s, want 0.97", nav)
	}
}

func TestNetNavFloor(t *testing.T) {
	k, ctx, _ := setupKeeper(t)

	params := k.GetParams(ctx)
	params.MinNetNav = dec("-0.5")
	k.SetParams(ctx, params)

	// Aggressive gross NAV at Pt=20 is (40-100)/100 = -0.6, below the floor
	postPrice(t, k, ctx, "100")
	minted, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	postPrice(t, k, ctx, "20")

	nav, err := k.NetNav(ctx, k.GetPosition(ctx, minted.PositionID))
	if err != nil {
		t.Fatalf("net nav: %v", err)
	}
	if !nav.Equal(dec("-0.5")) {
		t.Errorf("floored nav: got %s, want -0.5", nav)
	}
}

func TestPreviewsAreStateless(t *testing.T) {
	k, ctx, _ := setupKeeper(t)

	preview, err := k.PreviewMint(types.TierConservative, dec("900"), dec("100"))
	if err != nil {
		t.Fatalf("preview mint: %v", err)
	}
	if !preview.StableMinted.Equal(dec("10000")) || !preview.LeverCredited.Equal(dec("80000")) {
		t.Errorf("preview split: S=%s, L=%s", preview.StableMinted, preview.LeverCredited)
	}
	if preview.PositionID != 0 {
		t.Error("preview must not allocate a position")
	}

	if _, err := k.PreviewMint(types.TierConservative, dec("900"), math.LegacyZeroDec()); !types.ErrInvalidPrice.Is(err) {
		t.Errorf("preview with zero price: got %v", err)
	}

	// No ledger movement from previews
	if !k.GetLedger(ctx).TotalStable.IsZero() {
		t.Error("preview changed the ledger")
	}
}

func TestSeizeAndUnfreeze(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	minted, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	lever, collateral, err := k.SeizePosition(ctx, minted.PositionID)
	if err != nil {
		t.Fatalf("seize: %v", err)
	}
	if !lever.Equal(dec("50000")) || !collateral.Equal(dec("1000")) {
		t.Errorf("seized amounts: L=%s, C=%s", lever, collateral)
	}

	position := k.GetPosition(ctx, minted.PositionID)
	if !position.Frozen || !position.LBalance.IsZero() || !position.Collateral.IsZero() {
		t.Errorf("post-seizure position: frozen=%v, L=%s, C=%s", position.Frozen, position.LBalance, position.Collateral)
	}

	ledger := k.GetLedger(ctx)
	if !ledger.TotalCollateral.IsZero() || !ledger.TotalLever.IsZero() {
		t.Errorf("ledger after seizure: C=%s, L=%s", ledger.TotalCollateral, ledger.TotalLever)
	}

	// Frozen bucket rejects mints and burns
	if _, err := k.Mint(ctx, testCreditor, dec("100"), types.TierAggressive); !types.ErrPositionFrozen.Is(err) {
		t.Errorf("mint into frozen bucket: got %v", err)
	}
	if _, _, err := k.SeizePosition(ctx, minted.PositionID); !types.ErrPositionFrozen.Is(err) {
		t.Errorf("double seize: got %v", err)
	}

	k.UnfreezePosition(ctx, minted.PositionID)
	if k.GetPosition(ctx, minted.PositionID).Frozen {
		t.Error("position should be unfrozen")
	}
}

func TestAdjustDeficitIsSigned(t *testing.T) {
	k, ctx, _ := setupKeeper(t)

	k.AdjustDeficit(ctx, dec("250"))
	if got := k.GetLedger(ctx).Deficit; !got.Equal(dec("250")) {
		t.Errorf("deficit: got %s, want 250", got)
	}
	k.AdjustDeficit(ctx, dec("-300"))
	if got := k.GetLedger(ctx).Deficit; !got.Equal(dec("-50")) {
		t.Errorf("deficit after surplus: got %s, want -50", got)
	}
}

func TestPriceUpdaterSet(t *testing.T) {
	k, ctx, _ := setupKeeper(t)

	if !k.IsPriceUpdater(ctx, testAuthority) {
		t.Error("authority is always an updater")
	}
	if k.IsPriceUpdater(ctx, testOracle) {
		t.Error("unknown address should not be an updater")
	}

	k.GrantPriceUpdater(ctx, testOracle)
	if !k.IsPriceUpdater(ctx, testOracle) {
		t.Error("granted address should be an updater")
	}

	updaters := k.GetPriceUpdaters(ctx)
	if len(updaters) != 1 || updaters[0] != testOracle {
		t.Errorf("updater set: got %v", updaters)
	}

	k.RevokePriceUpdater(ctx, testOracle)
	if k.IsPriceUpdater(ctx, testOracle) {
		t.Error("revoked address should not be an updater")
	}
}

func TestLeverageTokenInfos(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	postPrice(t, k, ctx, "100")

	if _, err := k.Mint(ctx, testCreditor, dec("1000"), types.TierAggressive); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := k.Mint(ctx, testCreditor, dec("900"), types.TierConservative); err != nil {
		t.Fatalf("mint: %v", err)
	}

	infos := k.GetLeverageTokenInfos(ctx)
	if len(infos) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(infos))
	}
	totals := map[uint8]math.LegacyDec{}
	for _, info := range infos {
		totals[info.Tier] = info.TotalLever
	}
	if !totals[types.TierAggressive].Equal(dec("50000")) {
		t.Errorf("aggressive total: got %s", totals[types.TierAggressive])
	}
	if !totals[types.TierConservative].Equal(dec("80000")) {
		t.Errorf("conservative total: got %s", totals[types.TierConservative])
	}
	if !totals[types.TierModerate].IsZero() {
		t.Errorf("moderate total: got %s", totals[types.TierModerate])
	}
}
