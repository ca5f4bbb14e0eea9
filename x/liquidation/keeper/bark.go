package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// Bark seizes an undercollateralized position and starts its recovery
// auction. The liquidation condition is re-validated against the live NAV
// regardless of the stored risk level. The owner is paid their remaining
// value less the penalty, the triggerer earns the keeper reward, and the
// rest of the position's collateral becomes the auction budget.
func (k *Keeper) Bark(ctx sdk.Context, owner string, positionID uint64, triggerer string) (*types.LiquidationRecord, error) {
	position := k.custodianKeeper.GetPosition(ctx, positionID)
	if position == nil {
		return nil, types.ErrPositionNotFound
	}

	status := k.GetStatus(ctx, positionID)
	if status.IsFreezed {
		return nil, types.ErrPositionFrozen
	}
	if position.IsInert() {
		return nil, types.ErrPositionInert
	}

	price, _, ok := k.custodianKeeper.CurrentPrice(ctx)
	if !ok {
		return nil, custodiantypes.ErrOracleUnavailable
	}

	netNav, err := k.custodianKeeper.NetNav(ctx, position)
	if err != nil {
		return nil, err
	}

	params := k.GetParams(ctx)
	if netNav.GTE(params.LiquidationThreshold) {
		return nil, types.ErrNavAboveThreshold
	}

	lBalance := position.LBalance
	penaltyValue := params.PenaltyRate.Mul(lBalance)

	ownerReturnValue := lBalance.Mul(netNav).Sub(penaltyValue)
	if ownerReturnValue.IsNegative() {
		ownerReturnValue = math.LegacyZeroDec()
	}
	ownerReturn := ownerReturnValue.Quo(price)

	valueToBeBurned := lBalance.Quo(custodiantypes.TierLeverageRatio(position.Tier))
	startingPrice := params.PriceMultiplier.Mul(price)

	underlyingNeeded := valueToBeBurned.Quo(startingPrice)
	rewardValue := params.FixedReward
	if underlyingNeeded.GT(params.MinAuctionAmount) {
		excess := valueToBeBurned.Sub(params.MinAuctionAmount.Mul(startingPrice))
		rewardValue = rewardValue.Add(params.PercentageReward.Mul(excess))
	}
	keeperReward := rewardValue.Quo(price)

	auctionBudget := position.Collateral.Sub(ownerReturn).Sub(keeperReward)
	if !auctionBudget.IsPositive() {
		return nil, types.ErrInsufficientBudget
	}

	lever, _, err := k.custodianKeeper.SeizePosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	auctionID, err := k.auctionKeeper.StartAuction(ctx, owner, positionID, valueToBeBurned, auctionBudget, startingPrice)
	if err != nil {
		return nil, err
	}

	status.Owner = position.Owner
	status.RiskLevel = types.RiskLiquidatable
	status.IsFreezed = true
	status.AuctionID = auctionID
	k.SetStatus(ctx, status)

	record := &types.LiquidationRecord{
		RecordID:        uuid.New().String(),
		PositionID:      positionID,
		Owner:           position.Owner,
		Triggerer:       triggerer,
		AuctionID:       auctionID,
		LeverSeized:     lever,
		NetNav:          netNav,
		PenaltyValue:    penaltyValue,
		OwnerReturn:     ownerReturn,
		KeeperReward:    keeperReward,
		ValueToBeBurned: valueToBeBurned,
		AuctionBudget:   auctionBudget,
		StartingPrice:   startingPrice,
		Timestamp:       ctx.BlockTime().Unix(),
	}
	k.SetRecord(ctx, record)

	// Ledger writes are final; external transfers come last.
	if err := k.custodianKeeper.SendUnderlying(ctx, position.Owner, ownerReturn); err != nil {
		k.auctionKeeper.ForgetAuction(auctionID)
		return nil, err
	}
	if err := k.custodianKeeper.SendUnderlying(ctx, triggerer, keeperReward); err != nil {
		k.auctionKeeper.ForgetAuction(auctionID)
		return nil, err
	}

	// In-memory indexes move only once nothing can fail anymore. A failed
	// transaction rolls the store back but not the skip list.
	position.LBalance = math.LegacyZeroDec()
	position.Frozen = true
	k.TouchPosition(position)

	k.logger.Info("position barked",
		"position_id", positionID,
		"owner", position.Owner,
		"triggerer", triggerer,
		"auction_id", auctionID,
		"net_nav", netNav.String(),
		"owner_return", ownerReturn.String(),
		"keeper_reward", keeperReward.String(),
		"burn_target", valueToBeBurned.String(),
		"auction_budget", auctionBudget.String(),
		"starting_price", startingPrice.String(),
	)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"liquidation_started",
			sdk.NewAttribute("position_id", math.NewIntFromUint64(positionID).String()),
			sdk.NewAttribute("owner", position.Owner),
			sdk.NewAttribute("triggerer", triggerer),
			sdk.NewAttribute("auction_id", math.NewIntFromUint64(auctionID).String()),
			sdk.NewAttribute("starting_price", startingPrice.String()),
			sdk.NewAttribute("burn_target", valueToBeBurned.String()),
			sdk.NewAttribute("keeper_reward", keeperReward.String()),
		),
	)

	return record, nil
}
