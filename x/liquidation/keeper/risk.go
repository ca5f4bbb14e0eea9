package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// UpdateRiskLevel reclassifies a position from its live net NAV. Callable by
// anyone and idempotent: the only write is the stored risk level. Frozen
// positions stay liquidatable until their auction settles.
func (k *Keeper) UpdateRiskLevel(ctx sdk.Context, owner string, positionID uint64) (uint8, math.LegacyDec, error) {
	position := k.custodianKeeper.GetPosition(ctx, positionID)
	if position == nil {
		return 0, math.LegacyZeroDec(), types.ErrPositionNotFound
	}

	status := k.GetStatus(ctx, positionID)
	status.Owner = position.Owner

	if status.IsFreezed {
		return types.RiskLiquidatable, math.LegacyZeroDec(), nil
	}
	if position.IsInert() {
		if status.RiskLevel != types.RiskHealthy {
			status.RiskLevel = types.RiskHealthy
			k.SetStatus(ctx, status)
		}
		return types.RiskHealthy, math.LegacyZeroDec(), nil
	}

	netNav, err := k.custodianKeeper.NetNav(ctx, position)
	if err != nil {
		return 0, math.LegacyZeroDec(), err
	}

	params := k.GetParams(ctx)
	level := params.ClassifyRiskLevel(netNav)

	if level != status.RiskLevel {
		k.logger.Info("risk level changed",
			"position_id", positionID,
			"owner", position.Owner,
			"from", types.RiskLevelName(status.RiskLevel),
			"to", types.RiskLevelName(level),
			"net_nav", netNav.String(),
		)

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				"liquidation_risk_level_changed",
				sdk.NewAttribute("position_id", math.NewIntFromUint64(positionID).String()),
				sdk.NewAttribute("owner", position.Owner),
				sdk.NewAttribute("risk_level", types.RiskLevelName(level)),
				sdk.NewAttribute("net_nav", netNav.String()),
			),
		)
	}

	status.RiskLevel = level
	k.SetStatus(ctx, status)
	k.TouchPosition(position)

	return level, netNav, nil
}

// UpdateAllRiskLevels reclassifies every position held by an owner
func (k *Keeper) UpdateAllRiskLevels(ctx sdk.Context, owner string) int {
	updated := 0
	for _, position := range k.custodianKeeper.GetPositionsByOwner(ctx, owner) {
		if _, _, err := k.UpdateRiskLevel(ctx, owner, position.PositionID); err == nil {
			updated++
		}
	}
	return updated
}

// ClearFreeze lifts the freeze after auction settlement and reclassifies.
// Called by the auction module only.
func (k *Keeper) ClearFreeze(ctx sdk.Context, positionID uint64) error {
	status := k.GetStatus(ctx, positionID)
	if !status.IsFreezed {
		return types.ErrNotFrozen
	}

	status.IsFreezed = false
	status.AuctionID = 0
	k.SetStatus(ctx, status)

	k.custodianKeeper.UnfreezePosition(ctx, positionID)

	// Position balances are zeroed by the seizure, so this lands on healthy
	// unless a residual balance survives settlement.
	if _, _, err := k.UpdateRiskLevel(ctx, status.Owner, positionID); err != nil {
		k.logger.Warn("reclassification after settlement failed",
			"position_id", positionID,
			"error", err,
		)
	}

	k.logger.Info("liquidation freeze cleared", "position_id", positionID)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"liquidation_freeze_cleared",
			sdk.NewAttribute("position_id", math.NewIntFromUint64(positionID).String()),
		),
	)

	return nil
}
