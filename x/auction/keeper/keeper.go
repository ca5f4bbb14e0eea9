package keeper

import (
	"encoding/binary"
	"encoding/json"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/x/auction/types"
)

// Store key prefixes
var (
	ParamsKey         = []byte{0x01}
	AuctionKeyPrefix  = []byte{0x02}
	AuctionCounterKey = []byte{0x03}
)

// CustodianKeeper defines the expected interface for the custodian module
type CustodianKeeper interface {
	CurrentPrice(ctx sdk.Context) (math.LegacyDec, int64, bool)
	BurnStableForAuction(ctx sdk.Context, buyer string, amount math.LegacyDec) error
	SendUnderlying(ctx sdk.Context, to string, amount math.LegacyDec) error
	AdjustDeficit(ctx sdk.Context, delta math.LegacyDec)
	ReturnCollateral(ctx sdk.Context, amount math.LegacyDec)
}

// LiquidationKeeper defines the expected interface for the liquidation module
type LiquidationKeeper interface {
	ClearFreeze(ctx sdk.Context, positionID uint64) error
}

// Keeper manages the auction module state
type Keeper struct {
	cdc               codec.BinaryCodec
	storeKey          storetypes.StoreKey
	custodianKeeper   CustodianKeeper
	liquidationKeeper LiquidationKeeper
	staleIndex        *staleIndex
	logger            log.Logger
	authority         string
}

// NewKeeper creates a new auction keeper
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
		staleIndex:      newStaleIndex(),
		authority:       authority,
		logger:          logger.With("module", "x/auction"),
	}
}

// SetLiquidationKeeper wires the liquidation keeper after construction. The
// liquidation module depends on this keeper in turn, so the reference is set
// late.
func (k *Keeper) SetLiquidationKeeper(liquidationKeeper LiquidationKeeper) {
	k.liquidationKeeper = liquidationKeeper
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

// ============ Auction Storage ============

// auctionKey generates the key for an auction
func auctionKey(auctionID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, auctionID)
	return append(AuctionKeyPrefix, bz...)
}

// SetAuction saves an auction
func (k *Keeper) SetAuction(ctx sdk.Context, auction *types.Auction) {
	store := k.GetStore(ctx)
	bz, _ := json.Marshal(auction)
	store.Set(auctionKey(auction.AuctionID), bz)
}

// GetAuction retrieves an auction
func (k *Keeper) GetAuction(ctx sdk.Context, auctionID uint64) *types.Auction {
	store := k.GetStore(ctx)
	bz := store.Get(auctionKey(auctionID))
	if bz == nil {
		return nil
	}
	var auction types.Auction
	if err := json.Unmarshal(bz, &auction); err != nil {
		return nil
	}
	return &auction
}

// GetAllAuctions returns every stored auction
func (k *Keeper) GetAllAuctions(ctx sdk.Context) []*types.Auction {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, AuctionKeyPrefix)
	defer iterator.Close()

	var auctions []*types.Auction
	for ; iterator.Valid(); iterator.Next() {
		var auction types.Auction
		if err := json.Unmarshal(iterator.Value(), &auction); err != nil {
			continue
		}
		auctions = append(auctions, &auction)
	}
	return auctions
}

// GetActiveAuctions returns every open auction
func (k *Keeper) GetActiveAuctions(ctx sdk.Context) []*types.Auction {
	var active []*types.Auction
	for _, auction := range k.GetAllAuctions(ctx) {
		if auction.Active {
			active = append(active, auction)
		}
	}
	return active
}

// nextAuctionID returns the next auction ID and advances the counter
func (k *Keeper) nextAuctionID(ctx sdk.Context) uint64 {
	store := k.GetStore(ctx)
	bz := store.Get(AuctionCounterKey)
	var id uint64 = 1
	if bz != nil {
		id = binary.BigEndian.Uint64(bz) + 1
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, id)
	store.Set(AuctionCounterKey, next)
	return id
}
