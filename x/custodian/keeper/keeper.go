package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// Store key prefixes
var (
	ParamsKey            = []byte{0x01}
	LedgerKey            = []byte{0x02}
	PositionKeyPrefix    = []byte{0x03}
	PositionIndexPrefix  = []byte{0x04}
	PositionCounterKey   = []byte{0x05}
	PriceKey             = []byte{0x06}
	PriceUpdaterPrefix   = []byte{0x07}
	OwnerPositionsPrefix = []byte{0x08}
)

// BankKeeper defines the expected interface for the bank module
type BankKeeper interface {
	MintCoins(ctx context.Context, moduleName string, amt sdk.Coins) error
	BurnCoins(ctx context.Context, moduleName string, amt sdk.Coins) error
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
}

// Keeper manages the custodian module state
type Keeper struct {
	cdc        codec.BinaryCodec
	storeKey   storetypes.StoreKey
	bankKeeper BankKeeper
	logger     log.Logger
	authority  string
}

// NewKeeper creates a new custodian keeper
func NewKeeper(
	cdc codec.BinaryCodec,
	storeKey storetypes.StoreKey,
	bankKeeper BankKeeper,
	authority string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		cdc:        cdc,
		storeKey:   storeKey,
		bankKeeper: bankKeeper,
		authority:  authority,
		logger:     logger.With("module", "x/custodian"),
	}
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// ============ Params ============

// SetParams saves the module parameters
func (k *Keeper) SetParams(ctx sdk.Context, params types.Params) {
	store := k.GetStore(ctx)
	bz, _ := json.Marshal(params)
	store.Set(ParamsKey, bz)
}

// GetParams retrieves the module parameters
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	store := k.GetStore(ctx)
	bz := store.Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.DefaultParams()
	}
	return params
}

// ============ Ledger ============

// SetLedger saves the claim totals
func (k *Keeper) SetLedger(ctx sdk.Context, ledger *types.Ledger) {
	store := k.GetStore(ctx)
	ledger.UpdatedAt = ctx.BlockTime().Unix()
	bz, _ := json.Marshal(ledger)
	store.Set(LedgerKey, bz)
}

// GetLedger retrieves the claim totals
func (k *Keeper) GetLedger(ctx sdk.Context) *types.Ledger {
	store := k.GetStore(ctx)
	bz := store.Get(LedgerKey)
	if bz == nil {
		return types.NewLedger()
	}
	var ledger types.Ledger
	if err := json.Unmarshal(bz, &ledger); err != nil {
		return types.NewLedger()
	}
	return &ledger
}

// AdjustDeficit applies a signed delta to the ledger deficit. Only the
// auction settlement path reaches this method.
func (k *Keeper) AdjustDeficit(ctx sdk.Context, delta math.LegacyDec) {
	ledger := k.GetLedger(ctx)
	ledger.Deficit = ledger.Deficit.Add(delta)
	k.SetLedger(ctx, ledger)

	k.logger.Info("deficit adjusted",
		"delta", delta.String(),
		"deficit", ledger.Deficit.String(),
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"custodian_deficit_adjusted",
			sdk.NewAttribute("delta", delta.String()),
			sdk.NewAttribute("deficit", ledger.Deficit.String()),
		),
	)
}

// ============ Position Storage ============

// positionKey generates the key for a position by ID
func positionKey(positionID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, positionID)
	return append(PositionKeyPrefix, bz...)
}

// positionIndexKey generates the (owner, tier, mintPrice) index key
func positionIndexKey(owner string, tier uint8, mintPrice math.LegacyDec) []byte {
	suffix := fmt.Sprintf("%s:%d:%s", owner, tier, mintPrice.String())
	return append(PositionIndexPrefix, []byte(suffix)...)
}

// ownerPositionsKey generates the owner index key
func ownerPositionsKey(owner string, positionID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, positionID)
	return append(OwnerPositionsPrefix, append([]byte(owner+":"), bz...)...)
}

// SetPosition saves a position and its secondary indexes
func (k *Keeper) SetPosition(ctx sdk.Context, position *types.Position) {
	store := k.GetStore(ctx)
	position.UpdatedAt = ctx.BlockTime().Unix()

	bz, _ := json.Marshal(position)
	store.Set(positionKey(position.PositionID), bz)

	idBz := make([]byte, 8)
	binary.BigEndian.PutUint64(idBz, position.PositionID)
	store.Set(positionIndexKey(position.Owner, position.Tier, position.MintPrice), idBz)
	store.Set(ownerPositionsKey(position.Owner, position.PositionID), idBz)
}

// GetPosition retrieves a position by ID
func (k *Keeper) GetPosition(ctx sdk.Context, positionID uint64) *types.Position {
	store := k.GetStore(ctx)
	bz := store.Get(positionKey(positionID))
	if bz == nil {
		return nil
	}
	var position types.Position
	if err := json.Unmarshal(bz, &position); err != nil {
		return nil
	}
	return &position
}

// GetPositionByBucket retrieves a position by its (owner, tier, mintPrice) identity
func (k *Keeper) GetPositionByBucket(ctx sdk.Context, owner string, tier uint8, mintPrice math.LegacyDec) *types.Position {
	store := k.GetStore(ctx)
	bz := store.Get(positionIndexKey(owner, tier, mintPrice))
	if bz == nil {
		return nil
	}
	return k.GetPosition(ctx, binary.BigEndian.Uint64(bz))
}

// GetPositionsByOwner returns all positions for an owner
func (k *Keeper) GetPositionsByOwner(ctx sdk.Context, owner string) []*types.Position {
	store := k.GetStore(ctx)
	prefix := append(OwnerPositionsPrefix, []byte(owner+":")...)
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	var positions []*types.Position
	for ; iterator.Valid(); iterator.Next() {
		position := k.GetPosition(ctx, binary.BigEndian.Uint64(iterator.Value()))
		if position != nil {
			positions = append(positions, position)
		}
	}
	return positions
}

// GetAllPositions returns every position in the arena
func (k *Keeper) GetAllPositions(ctx sdk.Context) []*types.Position {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, PositionKeyPrefix)
	defer iterator.Close()

	var positions []*types.Position
	for ; iterator.Valid(); iterator.Next() {
		var position types.Position
		if err := json.Unmarshal(iterator.Value(), &position); err != nil {
			continue
		}
		positions = append(positions, &position)
	}
	return positions
}

// nextPositionID increments and returns the monotonic position counter
func (k *Keeper) nextPositionID(ctx sdk.Context) uint64 {
	store := k.GetStore(ctx)
	bz := store.Get(PositionCounterKey)
	var counter uint64
	if bz != nil {
		counter = binary.BigEndian.Uint64(bz)
	}
	counter++

	newBz := make([]byte, 8)
	binary.BigEndian.PutUint64(newBz, counter)
	store.Set(PositionCounterKey, newBz)

	return counter
}

// ============ Bank Helpers ============

// decToCoin converts an 18-decimal amount to a coin in base units
func decToCoin(denom string, amount math.LegacyDec) sdk.Coin {
	return sdk.NewCoin(denom, math.NewIntFromBigInt(amount.BigInt()))
}

// coinToDec converts base units back to an 18-decimal amount
func coinToDec(coin sdk.Coin) math.LegacyDec {
	return math.LegacyNewDecFromBigIntWithPrec(coin.Amount.BigInt(), math.LegacyPrecision)
}

// pullCollateral transfers underlying from an account into the module
func (k *Keeper) pullCollateral(ctx sdk.Context, from string, amount math.LegacyDec) error {
	params := k.GetParams(ctx)
	addr, err := sdk.AccAddressFromBech32(from)
	if err != nil {
		return err
	}
	coin := decToCoin(params.CollateralDenom, amount)
	return k.bankKeeper.SendCoinsFromAccountToModule(ctx, addr, types.ModuleName, sdk.NewCoins(coin))
}

// SendUnderlying transfers underlying from the module to an account
func (k *Keeper) SendUnderlying(ctx sdk.Context, to string, amount math.LegacyDec) error {
	if amount.IsZero() {
		return nil
	}
	params := k.GetParams(ctx)
	addr, err := sdk.AccAddressFromBech32(to)
	if err != nil {
		return err
	}
	coin := decToCoin(params.CollateralDenom, amount)
	return k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, addr, sdk.NewCoins(coin))
}

// mintStable mints stable claims to an account
func (k *Keeper) mintStable(ctx sdk.Context, to string, amount math.LegacyDec) error {
	params := k.GetParams(ctx)
	addr, err := sdk.AccAddressFromBech32(to)
	if err != nil {
		return err
	}
	coin := decToCoin(params.StableDenom, amount)
	coins := sdk.NewCoins(coin)
	if err := k.bankKeeper.MintCoins(ctx, types.ModuleName, coins); err != nil {
		return err
	}
	return k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, addr, coins)
}

// BurnStableFrom pulls stable claims from an account and burns them
func (k *Keeper) BurnStableFrom(ctx sdk.Context, from string, amount math.LegacyDec) error {
	params := k.GetParams(ctx)
	addr, err := sdk.AccAddressFromBech32(from)
	if err != nil {
		return err
	}
	coin := decToCoin(params.StableDenom, amount)
	coins := sdk.NewCoins(coin)
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, addr, types.ModuleName, coins); err != nil {
		return err
	}
	return k.bankKeeper.BurnCoins(ctx, types.ModuleName, coins)
}
