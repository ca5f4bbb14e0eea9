package keeper

import (
	"encoding/json"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// SetPrice posts a new oracle price. The caller must already be authorized.
func (k *Keeper) SetPrice(ctx sdk.Context, updater string, price math.LegacyDec) error {
	if !price.IsPositive() {
		return types.ErrInvalidPrice
	}

	store := k.GetStore(ctx)
	data := &types.PriceData{
		Price:     price,
		Timestamp: ctx.BlockTime().Unix(),
		Updater:   updater,
	}
	bz, _ := json.Marshal(data)
	store.Set(PriceKey, bz)

	k.logger.Info("oracle price updated",
		"price", price.String(),
		"updater", updater,
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"custodian_price_updated",
			sdk.NewAttribute("price", price.String()),
			sdk.NewAttribute("updater", updater),
		),
	)

	return nil
}

// GetPriceData returns the raw posted price, or nil if never set
func (k *Keeper) GetPriceData(ctx sdk.Context) *types.PriceData {
	store := k.GetStore(ctx)
	bz := store.Get(PriceKey)
	if bz == nil {
		return nil
	}
	var data types.PriceData
	if err := json.Unmarshal(bz, &data); err != nil {
		return nil
	}
	return &data
}

// CurrentPrice returns the posted price, its timestamp, and whether it is
// usable. A price older than MaxPriceAgeSeconds is invalid; every
// NAV-dependent operation must fail closed on an invalid price.
func (k *Keeper) CurrentPrice(ctx sdk.Context) (math.LegacyDec, int64, bool) {
	data := k.GetPriceData(ctx)
	if data == nil {
		return math.LegacyZeroDec(), 0, false
	}
	params := k.GetParams(ctx)
	now := ctx.BlockTime().Unix()
	return data.Price, data.Timestamp, data.IsValid(now, params.MaxPriceAgeSeconds)
}

// validPrice returns the current price or ErrOracleUnavailable
func (k *Keeper) validPrice(ctx sdk.Context) (math.LegacyDec, error) {
	price, _, ok := k.CurrentPrice(ctx)
	if !ok {
		return math.LegacyZeroDec(), types.ErrOracleUnavailable
	}
	return price, nil
}

// ============ Updater Set ============

// priceUpdaterKey generates the key for an authorized updater entry
func priceUpdaterKey(updater string) []byte {
	return append(PriceUpdaterPrefix, []byte(updater)...)
}

// GrantPriceUpdater adds an address to the authorized updater set
func (k *Keeper) GrantPriceUpdater(ctx sdk.Context, updater string) {
	store := k.GetStore(ctx)
	store.Set(priceUpdaterKey(updater), []byte{1})
	k.logger.Info("price updater granted", "updater", updater)
}

// RevokePriceUpdater removes an address from the authorized updater set
func (k *Keeper) RevokePriceUpdater(ctx sdk.Context, updater string) {
	store := k.GetStore(ctx)
	store.Delete(priceUpdaterKey(updater))
	k.logger.Info("price updater revoked", "updater", updater)
}

// IsPriceUpdater reports whether an address may post prices. The authority
// is always allowed.
func (k *Keeper) IsPriceUpdater(ctx sdk.Context, updater string) bool {
	if updater == k.authority {
		return true
	}
	store := k.GetStore(ctx)
	return store.Has(priceUpdaterKey(updater))
}

// GetPriceUpdaters returns all authorized updater addresses
func (k *Keeper) GetPriceUpdaters(ctx sdk.Context) []string {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, PriceUpdaterPrefix)
	defer iterator.Close()

	var updaters []string
	for ; iterator.Valid(); iterator.Next() {
		updaters = append(updaters, string(iterator.Key()[len(PriceUpdaterPrefix):]))
	}
	return updaters
}
