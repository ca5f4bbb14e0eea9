package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// Mint pulls collateral from the creditor, mints stable claims to them, and
// credits lever claims to the (creditor, tier, price) position bucket.
// All ledger writes happen before the bank transfers.
func (k *Keeper) Mint(ctx sdk.Context, creditor string, collateral math.LegacyDec, tier uint8) (*types.MintResult, error) {
	if !types.IsValidTier(tier) {
		return nil, types.ErrInvalidTier
	}
	if collateral.IsNil() || !collateral.IsPositive() {
		return nil, types.ErrInvalidAmount
	}

	price, err := k.validPrice(ctx)
	if err != nil {
		return nil, err
	}

	stable, lever := types.SplitMint(tier, collateral, price)
	now := ctx.BlockTime().Unix()

	position := k.GetPositionByBucket(ctx, creditor, tier, price)
	if position == nil {
		position = types.NewPosition(k.nextPositionID(ctx), creditor, tier, price, now)
	} else if position.Frozen {
		return nil, types.ErrPositionFrozen
	}

	position.LBalance = position.LBalance.Add(lever)
	position.Collateral = position.Collateral.Add(collateral)
	position.LastAccrualTime = now
	k.SetPosition(ctx, position)

	ledger := k.GetLedger(ctx)
	ledger.TotalCollateral = ledger.TotalCollateral.Add(collateral)
	ledger.TotalStable = ledger.TotalStable.Add(stable)
	ledger.TotalLever = ledger.TotalLever.Add(lever)
	k.SetLedger(ctx, ledger)

	if err := k.pullCollateral(ctx, creditor, collateral); err != nil {
		return nil, err
	}
	if err := k.mintStable(ctx, creditor, stable); err != nil {
		return nil, err
	}

	k.logger.Info("minted tranche claims",
		"creditor", creditor,
		"tier", types.TierName(tier),
		"collateral", collateral.String(),
		"stable", stable.String(),
		"lever", lever.String(),
		"price", price.String(),
		"position_id", position.PositionID,
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"custodian_mint",
			sdk.NewAttribute("creditor", creditor),
			sdk.NewAttribute("tier", types.TierName(tier)),
			sdk.NewAttribute("collateral", collateral.String()),
			sdk.NewAttribute("stable_minted", stable.String()),
			sdk.NewAttribute("lever_credited", lever.String()),
			sdk.NewAttribute("mint_price", price.String()),
		),
	)

	return &types.MintResult{
		PositionID:    position.PositionID,
		StableMinted:  stable,
		LeverCredited: lever,
		MintPrice:     price,
	}, nil
}

// PreviewMint projects the claims a deposit would create at a given price.
// Pure: no state change.
func (k *Keeper) PreviewMint(tier uint8, collateral, price math.LegacyDec) (*types.MintResult, error) {
	if !types.IsValidTier(tier) {
		return nil, types.ErrInvalidTier
	}
	if collateral.IsNil() || !collateral.IsPositive() {
		return nil, types.ErrInvalidAmount
	}
	if price.IsNil() || !price.IsPositive() {
		return nil, types.ErrInvalidPrice
	}
	stable, lever := types.SplitMint(tier, collateral, price)
	return &types.MintResult{
		StableMinted:  stable,
		LeverCredited: lever,
		MintPrice:     price,
	}, nil
}

// Burn redeems a percentage of a position's lever claims. The owner must
// surrender the matching stable claims; the underlying comes back at the
// current oracle price.
func (k *Keeper) Burn(ctx sdk.Context, owner string, positionID uint64, percentage math.LegacyDec) (*types.BurnResult, error) {
	if percentage.IsNil() || !percentage.IsPositive() || percentage.GT(math.LegacyNewDec(100)) {
		return nil, types.ErrInvalidPercentage
	}

	position := k.GetPosition(ctx, positionID)
	if position == nil {
		return nil, types.ErrPositionNotFound
	}
	if position.Owner != owner {
		return nil, types.ErrNotPositionOwner
	}
	if position.Frozen {
		return nil, types.ErrPositionFrozen
	}
	if position.IsInert() {
		return nil, types.ErrInsufficientLever
	}

	price, err := k.validPrice(ctx)
	if err != nil {
		return nil, err
	}

	fraction := percentage.Quo(math.LegacyNewDec(100))
	leverBurned := position.LBalance.Mul(fraction)
	stableBurned := leverBurned.Quo(types.TierLeverageRatio(position.Tier))
	underlyingReturned := types.TierDivisor(position.Tier).Mul(stableBurned).Quo(price)
	collateralReleased := position.Collateral.Mul(fraction)

	position.LBalance = position.LBalance.Sub(leverBurned)
	position.Collateral = position.Collateral.Sub(collateralReleased)
	position.LastAccrualTime = ctx.BlockTime().Unix()
	k.SetPosition(ctx, position)

	ledger := k.GetLedger(ctx)
	ledger.TotalCollateral = ledger.TotalCollateral.Sub(underlyingReturned)
	ledger.TotalStable = ledger.TotalStable.Sub(stableBurned)
	ledger.TotalLever = ledger.TotalLever.Sub(leverBurned)
	k.SetLedger(ctx, ledger)

	if err := k.BurnStableFrom(ctx, owner, stableBurned); err != nil {
		return nil, err
	}
	if err := k.SendUnderlying(ctx, owner, underlyingReturned); err != nil {
		return nil, err
	}

	k.logger.Info("burned tranche claims",
		"owner", owner,
		"position_id", positionID,
		"percentage", percentage.String(),
		"lever_burned", leverBurned.String(),
		"stable_burned", stableBurned.String(),
		"underlying_returned", underlyingReturned.String(),
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"custodian_burn",
			sdk.NewAttribute("owner", owner),
			sdk.NewAttribute("tier", types.TierName(position.Tier)),
			sdk.NewAttribute("lever_burned", leverBurned.String()),
			sdk.NewAttribute("stable_burned", stableBurned.String()),
			sdk.NewAttribute("underlying_returned", underlyingReturned.String()),
		),
	)

	return &types.BurnResult{
		PositionID:         positionID,
		LeverBurned:        leverBurned,
		StableBurned:       stableBurned,
		UnderlyingReturned: underlyingReturned,
	}, nil
}

// PreviewBurn projects a burn at a given price without touching state
func (k *Keeper) PreviewBurn(ctx sdk.Context, positionID uint64, percentage, price math.LegacyDec) (*types.BurnResult, error) {
	if percentage.IsNil() || !percentage.IsPositive() || percentage.GT(math.LegacyNewDec(100)) {
		return nil, types.ErrInvalidPercentage
	}
	if price.IsNil() || !price.IsPositive() {
		return nil, types.ErrInvalidPrice
	}

	position := k.GetPosition(ctx, positionID)
	if position == nil {
		return nil, types.ErrPositionNotFound
	}

	fraction := percentage.Quo(math.LegacyNewDec(100))
	leverBurned := position.LBalance.Mul(fraction)
	stableBurned := leverBurned.Quo(types.TierLeverageRatio(position.Tier))
	underlyingReturned := types.TierDivisor(position.Tier).Mul(stableBurned).Quo(price)

	return &types.BurnResult{
		PositionID:         positionID,
		LeverBurned:        leverBurned,
		StableBurned:       stableBurned,
		UnderlyingReturned: underlyingReturned,
	}, nil
}

// ============ Liquidation Support ============

// SeizePosition freezes a position and removes its lever claims and
// attributed collateral from the ledger totals. Returns the seized amounts.
func (k *Keeper) SeizePosition(ctx sdk.Context, positionID uint64) (lever, collateral math.LegacyDec, err error) {
	position := k.GetPosition(ctx, positionID)
	if position == nil {
		return math.LegacyZeroDec(), math.LegacyZeroDec(), types.ErrPositionNotFound
	}
	if position.Frozen {
		return math.LegacyZeroDec(), math.LegacyZeroDec(), types.ErrPositionFrozen
	}

	lever = position.LBalance
	collateral = position.Collateral

	position.LBalance = math.LegacyZeroDec()
	position.Collateral = math.LegacyZeroDec()
	position.Frozen = true
	k.SetPosition(ctx, position)

	ledger := k.GetLedger(ctx)
	ledger.TotalCollateral = ledger.TotalCollateral.Sub(collateral)
	ledger.TotalLever = ledger.TotalLever.Sub(lever)
	k.SetLedger(ctx, ledger)

	return lever, collateral, nil
}

// UnfreezePosition lifts the liquidation freeze after auction settlement
func (k *Keeper) UnfreezePosition(ctx sdk.Context, positionID uint64) {
	position := k.GetPosition(ctx, positionID)
	if position == nil {
		return
	}
	position.Frozen = false
	position.LastAccrualTime = ctx.BlockTime().Unix()
	k.SetPosition(ctx, position)
}

// BurnStableForAuction burns stable claims surrendered by an auction buyer
// and decrements the outstanding stable total.
func (k *Keeper) BurnStableForAuction(ctx sdk.Context, buyer string, amount math.LegacyDec) error {
	ledger := k.GetLedger(ctx)
	ledger.TotalStable = ledger.TotalStable.Sub(amount)
	k.SetLedger(ctx, ledger)
	return k.BurnStableFrom(ctx, buyer, amount)
}

// ReturnCollateral credits leftover auction collateral back to the ledger
func (k *Keeper) ReturnCollateral(ctx sdk.Context, amount math.LegacyDec) {
	if amount.IsZero() {
		return
	}
	ledger := k.GetLedger(ctx)
	ledger.TotalCollateral = ledger.TotalCollateral.Add(amount)
	k.SetLedger(ctx, ledger)
}
