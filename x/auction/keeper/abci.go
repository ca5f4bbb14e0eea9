package keeper

import (
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/x/auction/types"
)

// EndBlocker re-anchors stale auctions to the live oracle price
func (k *Keeper) EndBlocker(ctx sdk.Context) error {
	blockHeight := ctx.BlockHeight()
	start := time.Now()

	if !k.staleIndex.built {
		k.RebuildStaleIndex(ctx)
	}

	stale := k.staleIndex.staleBefore(ctx.BlockTime().Unix())
	if len(stale) == 0 {
		return nil
	}

	if _, _, ok := k.custodianKeeper.CurrentPrice(ctx); !ok {
		// Resets re-anchor to the oracle; without a fresh price the
		// auctions stay paused until one arrives.
		k.logger.Debug("auction reset sweep skipped, oracle unavailable",
			"block", blockHeight,
			"stale", len(stale),
		)
		return nil
	}

	resets := 0
	for _, auctionID := range stale {
		if _, err := k.ResetAuction(ctx, auctionID); err != nil {
			if types.ErrAuctionNotFound.Is(err) || types.ErrAuctionInactive.Is(err) {
				// Entry outlived its auction; drop it from the index.
				k.staleIndex.remove(auctionID)
			} else if !types.ErrNoResetNeeded.Is(err) {
				k.logger.Warn("auction reset failed",
					"auction_id", auctionID,
					"error", err,
				)
			}
			continue
		}
		resets++
	}

	k.logger.Debug("auction reset sweep completed",
		"block", blockHeight,
		"stale", len(stale),
		"resets", resets,
		"total_ms", time.Since(start).Milliseconds(),
	)

	if resets > 0 {
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				"auction_reset_sweep",
				sdk.NewAttribute("block_height", math.NewInt(blockHeight).String()),
				sdk.NewAttribute("resets", math.NewInt(int64(resets)).String()),
			),
		)
	}

	return nil
}
