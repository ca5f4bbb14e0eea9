package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// GrossNav computes the gross NAV per lever unit for a position at the
// current oracle price.
func (k *Keeper) GrossNav(ctx sdk.Context, position *types.Position) (math.LegacyDec, error) {
	price, err := k.validPrice(ctx)
	if err != nil {
		return math.LegacyZeroDec(), err
	}
	return types.GrossNav(position.Tier, position.MintPrice, price), nil
}

// NetNav computes gross NAV minus interest accrued since the position's
// last accrual timestamp, floored at params.MinNetNav.
func (k *Keeper) NetNav(ctx sdk.Context, position *types.Position) (math.LegacyDec, error) {
	gross, err := k.GrossNav(ctx, position)
	if err != nil {
		return math.LegacyZeroDec(), err
	}
	return k.netFromGross(ctx, position, gross), nil
}

// NetNavAtPrice computes net NAV at a caller-supplied price. Used by
// previews; does not touch the oracle.
func (k *Keeper) NetNavAtPrice(ctx sdk.Context, position *types.Position, price math.LegacyDec) math.LegacyDec {
	gross := types.GrossNav(position.Tier, position.MintPrice, price)
	return k.netFromGross(ctx, position, gross)
}

func (k *Keeper) netFromGross(ctx sdk.Context, position *types.Position, gross math.LegacyDec) math.LegacyDec {
	params := k.GetParams(ctx)
	interest := types.AccruedInterest(params.InterestRate, position.LastAccrualTime, ctx.BlockTime().Unix())
	net := gross.Sub(interest)
	if net.LT(params.MinNetNav) {
		net = params.MinNetNav
	}
	return net
}

// GetLeverageTokenInfos returns the per-tier summary of lever claims
func (k *Keeper) GetLeverageTokenInfos(ctx sdk.Context) []*types.LeverageTokenInfo {
	totals := map[uint8]math.LegacyDec{
		types.TierConservative: math.LegacyZeroDec(),
		types.TierModerate:     math.LegacyZeroDec(),
		types.TierAggressive:   math.LegacyZeroDec(),
	}
	for _, position := range k.GetAllPositions(ctx) {
		totals[position.Tier] = totals[position.Tier].Add(position.LBalance)
	}

	infos := make([]*types.LeverageTokenInfo, 0, 3)
	for _, tier := range []uint8{types.TierConservative, types.TierModerate, types.TierAggressive} {
		infos = append(infos, &types.LeverageTokenInfo{
			Tier:          tier,
			TierName:      types.TierName(tier),
			LeverageRatio: types.TierLeverageRatio(tier),
			Divisor:       types.TierDivisor(tier),
			TotalLever:    totals[tier],
		})
	}
	return infos
}
