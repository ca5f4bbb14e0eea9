package keeper

import (
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EndBlocker is called at the end of each block to sweep the position arena
// for risk level changes
func (k *Keeper) EndBlocker(ctx sdk.Context) error {
	blockHeight := ctx.BlockHeight()
	start := time.Now()

	if !k.riskIndex.built {
		k.RebuildRiskIndex(ctx)
	}

	price, _, ok := k.custodianKeeper.CurrentPrice(ctx)
	if !ok {
		// Never reclassify on stale oracle data.
		k.logger.Debug("risk sweep skipped, oracle unavailable", "block", blockHeight)
		return nil
	}

	candidates := k.CandidatePositions(ctx, price)
	reclassified := 0
	for _, positionID := range candidates {
		position := k.custodianKeeper.GetPosition(ctx, positionID)
		if position == nil || position.IsInert() || position.Frozen {
			continue
		}
		if _, _, err := k.UpdateRiskLevel(ctx, position.Owner, positionID); err == nil {
			reclassified++
		}
	}

	totalDuration := time.Since(start)

	k.logger.Debug("liquidation risk sweep completed",
		"block", blockHeight,
		"price", price.String(),
		"candidates", len(candidates),
		"reclassified", reclassified,
		"total_ms", totalDuration.Milliseconds(),
	)

	if len(candidates) > 0 {
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				"liquidation_risk_sweep",
				sdk.NewAttribute("block_height", math.NewInt(blockHeight).String()),
				sdk.NewAttribute("candidates", math.NewInt(int64(len(candidates))).String()),
				sdk.NewAttribute("reclassified", math.NewInt(int64(reclassified)).String()),
			),
		)
	}

	return nil
}
