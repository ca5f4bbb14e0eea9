package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/x/auction/types"
)

// StartAuction opens a declining-price auction over seized collateral. The
// budget is the underlying on sale, valueToBeBurned the stable value the sale
// must recover. Called by the liquidation module.
func (k *Keeper) StartAuction(
	ctx sdk.Context,
	owner string,
	positionID uint64,
	valueToBeBurned, underlyingBudget, startingPrice math.LegacyDec,
) (uint64, error) {
	if !valueToBeBurned.IsPositive() {
		return 0, types.ErrInvalidAmount.Wrap("burn target must be positive")
	}
	if !underlyingBudget.IsPositive() {
		return 0, types.ErrInvalidAmount.Wrap("underlying budget must be positive")
	}
	if !startingPrice.IsPositive() {
		return 0, types.ErrInvalidAmount.Wrap("starting price must be positive")
	}

	now := ctx.BlockTime().Unix()
	auction := &types.Auction{
		AuctionID:            k.nextAuctionID(ctx),
		OriginalOwner:        owner,
		PositionID:           positionID,
		ValueToBeBurned:      valueToBeBurned,
		OriginalValueToBurn:  valueToBeBurned,
		UnderlyingAmount:     underlyingBudget,
		SoldUnderlyingAmount: math.LegacyZeroDec(),
		StartTime:            now,
		StartingPrice:        startingPrice,
		Active:               true,
		CreatedAt:            now,
	}
	k.SetAuction(ctx, auction)
	k.staleIndex.insert(auction, k.GetParams(ctx))

	k.logger.Info("auction started",
		"auction_id", auction.AuctionID,
		"position_id", positionID,
		"owner", owner,
		"burn_target", valueToBeBurned.String(),
		"underlying_budget", underlyingBudget.String(),
		"starting_price", startingPrice.String(),
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"auction_started",
			sdk.NewAttribute("auction_id", math.NewIntFromUint64(auction.AuctionID).String()),
			sdk.NewAttribute("position_id", math.NewIntFromUint64(positionID).String()),
			sdk.NewAttribute("burn_target", valueToBeBurned.String()),
			sdk.NewAttribute("underlying_budget", underlyingBudget.String()),
			sdk.NewAttribute("starting_price", startingPrice.String()),
		),
	)

	return auction.AuctionID, nil
}

// ForgetAuction drops an auction from the in-memory reset index. The
// liquidation module calls this when the transaction that opened the auction
// fails after the fact, since the rollback reverts the store but not the
// index.
func (k *Keeper) ForgetAuction(auctionID uint64) {
	k.staleIndex.remove(auctionID)
}

// CurrentClearingPrice returns the decayed price of an open auction at the
// current block time
func (k *Keeper) CurrentClearingPrice(ctx sdk.Context, auction *types.Auction) math.LegacyDec {
	params := k.GetParams(ctx)
	decay := types.LinearDecrease{Tau: params.Tau}
	elapsed := ctx.BlockTime().Unix() - auction.StartTime
	return decay.Price(auction.StartingPrice, elapsed)
}

// needsReset reports whether an auction has gone stale, either by outliving
// its reset deadline or by decaying below the price drop threshold
func (k *Keeper) needsReset(ctx sdk.Context, auction *types.Auction, params types.Params) bool {
	elapsed := ctx.BlockTime().Unix() - auction.StartTime
	if elapsed > params.ResetTime {
		return true
	}
	decay := types.LinearDecrease{Tau: params.Tau}
	price := decay.Price(auction.StartingPrice, elapsed)
	return price.LT(params.PriceDropThreshold.Mul(auction.StartingPrice))
}

// GetAuctionStatus returns the live view of an auction
func (k *Keeper) GetAuctionStatus(ctx sdk.Context, auctionID uint64) (*types.AuctionStatus, error) {
	auction := k.GetAuction(ctx, auctionID)
	if auction == nil {
		return nil, types.ErrAuctionNotFound
	}
	if !auction.Active {
		return &types.AuctionStatus{AuctionID: auctionID, CurrentPrice: math.LegacyZeroDec()}, nil
	}
	return &types.AuctionStatus{
		AuctionID:    auctionID,
		NeedsReset:   k.needsReset(ctx, auction, k.GetParams(ctx)),
		CurrentPrice: k.CurrentClearingPrice(ctx, auction),
		Active:       true,
	}, nil
}

// ResetAuction re-anchors a stale auction to the live oracle price and
// restarts its decay clock. Permissionless; anyone may reset a stale auction.
func (k *Keeper) ResetAuction(ctx sdk.Context, auctionID uint64) (math.LegacyDec, error) {
	auction := k.GetAuction(ctx, auctionID)
	if auction == nil {
		return math.LegacyDec{}, types.ErrAuctionNotFound
	}
	if !auction.Active {
		return math.LegacyDec{}, types.ErrAuctionInactive
	}

	params := k.GetParams(ctx)
	if !k.needsReset(ctx, auction, params) {
		return math.LegacyDec{}, types.ErrNoResetNeeded
	}

	price, _, ok := k.custodianKeeper.CurrentPrice(ctx)
	if !ok {
		return math.LegacyDec{}, types.ErrOracleUnavailable
	}

	oldPrice := auction.StartingPrice
	auction.StartingPrice = params.PriceMultiplier.Mul(price)
	auction.StartTime = ctx.BlockTime().Unix()
	k.SetAuction(ctx, auction)
	k.staleIndex.insert(auction, params)

	k.logger.Info("auction reset",
		"auction_id", auctionID,
		"old_starting_price", oldPrice.String(),
		"new_starting_price", auction.StartingPrice.String(),
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"auction_reset",
			sdk.NewAttribute("auction_id", math.NewIntFromUint64(auctionID).String()),
			sdk.NewAttribute("old_starting_price", oldPrice.String()),
			sdk.NewAttribute("new_starting_price", auction.StartingPrice.String()),
		),
	)

	return auction.StartingPrice, nil
}

// PurchaseUnderlying sells underlying from an open auction at the current
// clearing price. The buyer pays in stable claims, which are burned. A
// purchase is clipped so the sale never recovers more than the remaining burn
// target and never sells more than the remaining budget. Purchases below the
// minimum lot are rejected unless they finish the auction.
func (k *Keeper) PurchaseUnderlying(
	ctx sdk.Context,
	buyer string,
	auctionID uint64,
	maxUnderlying, maxAcceptablePrice math.LegacyDec,
	recipient string,
) (*types.PurchaseResult, error) {
	auction := k.GetAuction(ctx, auctionID)
	if auction == nil {
		return nil, types.ErrAuctionNotFound
	}
	if !auction.Active {
		return nil, types.ErrAuctionInactive
	}
	if !maxUnderlying.IsPositive() {
		return nil, types.ErrInvalidAmount.Wrap("max underlying must be positive")
	}
	if recipient == "" {
		recipient = buyer
	}

	params := k.GetParams(ctx)
	if k.needsReset(ctx, auction, params) {
		return nil, types.ErrNeedsReset
	}

	price := k.CurrentClearingPrice(ctx, auction)
	if price.IsZero() {
		return nil, types.ErrZeroPrice
	}
	if price.GT(maxAcceptablePrice) {
		return nil, types.ErrPriceTooHigh
	}

	// Clip to the remaining budget, then to the amount that exactly recovers
	// the remaining burn target.
	amount := maxUnderlying
	if amount.GT(auction.UnderlyingAmount) {
		amount = auction.UnderlyingAmount
	}
	targetBound := auction.ValueToBeBurned.Quo(price)
	if amount.GT(targetBound) {
		amount = targetBound
	}

	finishesTarget := amount.Equal(targetBound)
	drainsBudget := amount.Equal(auction.UnderlyingAmount)
	if amount.LT(params.MinAuctionAmount) && !finishesTarget && !drainsBudget {
		return nil, types.ErrAmountTooSmall
	}

	cost := amount.Mul(price)

	auction.UnderlyingAmount = auction.UnderlyingAmount.Sub(amount)
	auction.SoldUnderlyingAmount = auction.SoldUnderlyingAmount.Add(amount)
	auction.ValueToBeBurned = auction.ValueToBeBurned.Sub(cost)
	if auction.ValueToBeBurned.IsNegative() {
		auction.ValueToBeBurned = math.LegacyZeroDec()
	}

	closed := false
	deficitDelta := math.LegacyZeroDec()
	switch {
	case auction.ValueToBeBurned.IsZero():
		// Burn target hit; leftover underlying flows back to the ledger.
		closed = true
	case auction.UnderlyingAmount.IsZero():
		// Budget exhausted short of the target; the shortfall is socialized
		// as protocol deficit.
		closed = true
		deficitDelta = auction.ValueToBeBurned
	}

	leftover := math.LegacyZeroDec()
	if closed {
		leftover = auction.UnderlyingAmount
		auction.UnderlyingAmount = math.LegacyZeroDec()
		auction.Active = false
		auction.ClosedAt = ctx.BlockTime().Unix()
	}
	k.SetAuction(ctx, auction)

	// State is final; external transfers come last.
	if err := k.custodianKeeper.BurnStableForAuction(ctx, buyer, cost); err != nil {
		return nil, err
	}
	if err := k.custodianKeeper.SendUnderlying(ctx, recipient, amount); err != nil {
		return nil, err
	}

	if closed {
		// The index entry goes only after the transfers; a failed purchase
		// must leave the auction visible to the reset sweep.
		k.staleIndex.remove(auctionID)
		if deficitDelta.IsPositive() {
			k.custodianKeeper.AdjustDeficit(ctx, deficitDelta)
		}
		k.custodianKeeper.ReturnCollateral(ctx, leftover)
		if err := k.liquidationKeeper.ClearFreeze(ctx, auction.PositionID); err != nil {
			k.logger.Warn("freeze clear after auction close failed",
				"auction_id", auctionID,
				"position_id", auction.PositionID,
				"error", err,
			)
		}
	}

	k.logger.Info("auction purchase",
		"auction_id", auctionID,
		"buyer", buyer,
		"recipient", recipient,
		"underlying", amount.String(),
		"price", price.String(),
		"cost", cost.String(),
		"remaining_target", auction.ValueToBeBurned.String(),
		"closed", closed,
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"auction_purchase",
			sdk.NewAttribute("auction_id", math.NewIntFromUint64(auctionID).String()),
			sdk.NewAttribute("buyer", buyer),
			sdk.NewAttribute("underlying", amount.String()),
			sdk.NewAttribute("price", price.String()),
			sdk.NewAttribute("cost", cost.String()),
		),
	)
	if closed {
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				"auction_closed",
				sdk.NewAttribute("auction_id", math.NewIntFromUint64(auctionID).String()),
				sdk.NewAttribute("sold", auction.SoldUnderlyingAmount.String()),
				sdk.NewAttribute("deficit_delta", deficitDelta.String()),
				sdk.NewAttribute("returned_collateral", leftover.String()),
			),
		)
	}

	return &types.PurchaseResult{
		AuctionID:       auctionID,
		UnderlyingSold:  amount,
		StableCost:      cost,
		ClearingPrice:   price,
		AuctionClosed:   closed,
		DeficitDelta:    deficitDelta,
		RemainingTarget: auction.ValueToBeBurned,
	}, nil
}
