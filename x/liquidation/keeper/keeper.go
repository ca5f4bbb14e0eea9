package keeper

import (
	"encoding/binary"
	"encoding/json"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// Store key prefixes
var (
	ParamsKey         = []byte{0x01}
	StatusKeyPrefix   = []byte{0x02}
	RecordKeyPrefix   = []byte{0x03}
	RecordCounterKey  = []byte{0x04}
)

// CustodianKeeper defines the expected interface for the custodian module
type CustodianKeeper interface {
	GetPosition(ctx sdk.Context, positionID uint64) *custodiantypes.Position
	GetAllPositions(ctx sdk.Context) []*custodiantypes.Position
	GetPositionsByOwner(ctx sdk.Context, owner string) []*custodiantypes.Position
	NetNav(ctx sdk.Context, position *custodiantypes.Position) (math.LegacyDec, error)
	CurrentPrice(ctx sdk.Context) (math.LegacyDec, int64, bool)
	SeizePosition(ctx sdk.Context, positionID uint64) (lever, collateral math.LegacyDec, err error)
	UnfreezePosition(ctx sdk.Context, positionID uint64)
	SendUnderlying(ctx sdk.Context, to string, amount math.LegacyDec) error
}

// AuctionKeeper defines the expected interface for the auction module
type AuctionKeeper interface {
	StartAuction(ctx sdk.Context, owner string, positionID uint64, valueToBeBurned, underlyingBudget, startingPrice math.LegacyDec) (uint64, error)
	ForgetAuction(auctionID uint64)
}

// Keeper manages the liquidation module state
type Keeper struct {
	cdc             codec.BinaryCodec
	storeKey        storetypes.StoreKey
	custodianKeeper CustodianKeeper
	auctionKeeper   AuctionKeeper
	riskIndex       *riskIndex
	logger          log.Logger
	authority       string
}

// NewKeeper creates a new liquidation keeper
func NewKeeper(
	cdc codec.BinaryCodec,
	storeKey storetypes.StoreKey,
	custodianKeeper CustodianKeeper,
	authority string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		cdc:             cdc,
		storeKey:        storeKey,
		custodianKeeper: custodianKeeper,
		riskIndex:       newRiskIndex(),
		authority:       authority,
		logger:          logger.With("module", "x/liquidation"),
	}
}

// SetAuctionKeeper wires the auction keeper after construction. The auction
// module depends on this keeper in turn, so the reference is set late.
func (k *Keeper) SetAuctionKeeper(auctionKeeper AuctionKeeper) {
	k.auctionKeeper = auctionKeeper
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

// ============ Status Storage ============

// statusKey generates the key for a position's liquidation status
func statusKey(positionID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, positionID)
	return append(StatusKeyPrefix, bz...)
}

// SetStatus saves a liquidation status
func (k *Keeper) SetStatus(ctx sdk.Context, status *types.LiquidationStatus) {
	store := k.GetStore(ctx)
	status.UpdatedAt = ctx.BlockTime().Unix()
	bz, _ := json.Marshal(status)
	store.Set(statusKey(status.PositionID), bz)
}

// GetStatus retrieves a position's liquidation status, defaulting to healthy
func (k *Keeper) GetStatus(ctx sdk.Context, positionID uint64) *types.LiquidationStatus {
	store := k.GetStore(ctx)
	bz := store.Get(statusKey(positionID))
	if bz == nil {
		return &types.LiquidationStatus{PositionID: positionID, RiskLevel: types.RiskHealthy}
	}
	var status types.LiquidationStatus
	if err := json.Unmarshal(bz, &status); err != nil {
		return &types.LiquidationStatus{PositionID: positionID, RiskLevel: types.RiskHealthy}
	}
	return &status
}

// GetAllStatuses returns every stored liquidation status
func (k *Keeper) GetAllStatuses(ctx sdk.Context) []*types.LiquidationStatus {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, StatusKeyPrefix)
	defer iterator.Close()

	var statuses []*types.LiquidationStatus
	for ; iterator.Valid(); iterator.Next() {
		var status types.LiquidationStatus
		if err := json.Unmarshal(iterator.Value(), &status); err != nil {
			continue
		}
		statuses = append(statuses, &status)
	}
	return statuses
}

// ============ Record Storage ============

// SetRecord saves a liquidation record
func (k *Keeper) SetRecord(ctx sdk.Context, record *types.LiquidationRecord) {
	store := k.GetStore(ctx)
	key := append(RecordKeyPrefix, []byte(record.RecordID)...)
	bz, _ := json.Marshal(record)
	store.Set(key, bz)
}

// GetRecord retrieves a liquidation record
func (k *Keeper) GetRecord(ctx sdk.Context, recordID string) *types.LiquidationRecord {
	store := k.GetStore(ctx)
	key := append(RecordKeyPrefix, []byte(recordID)...)
	bz := store.Get(key)
	if bz == nil {
		return nil
	}
	var record types.LiquidationRecord
	if err := json.Unmarshal(bz, &record); err != nil {
		return nil
	}
	return &record
}

// GetRecentRecords returns the most recent liquidation records
func (k *Keeper) GetRecentRecords(ctx sdk.Context, limit int) []*types.LiquidationRecord {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStoreReversePrefixIterator(store, RecordKeyPrefix)
	defer iterator.Close()

	var records []*types.LiquidationRecord
	count := 0
	for ; iterator.Valid() && count < limit; iterator.Next() {
		var record types.LiquidationRecord
		if err := json.Unmarshal(iterator.Value(), &record); err != nil {
			continue
		}
		records = append(records, &record)
		count++
	}
	return records
}
