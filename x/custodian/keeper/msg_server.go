package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// MsgServer defines the custodian MsgServer
type MsgServer struct {
	keeper *Keeper
}

// NewMsgServerImpl creates a new MsgServer instance
func NewMsgServerImpl(keeper *Keeper) *MsgServer {
	return &MsgServer{keeper: keeper}
}

// Mint handles MsgMint
func (m *MsgServer) Mint(ctx context.Context, msg *types.MsgMint) (*types.MsgMintResponse, error) {
	collateral, err := math.LegacyNewDecFromStr(msg.Collateral)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	result, err := m.keeper.Mint(sdkCtx, msg.Creditor, collateral, msg.Tier)
	if err != nil {
		return nil, err
	}

	return &types.MsgMintResponse{
		PositionID:    strconv.FormatUint(result.PositionID, 10),
		StableMinted:  result.StableMinted.String(),
		LeverCredited: result.LeverCredited.String(),
		MintPrice:     result.MintPrice.String(),
	}, nil
}

// Burn handles MsgBurn
func (m *MsgServer) Burn(ctx context.Context, msg *types.MsgBurn) (*types.MsgBurnResponse, error) {
	percentage, err := math.LegacyNewDecFromStr(msg.Percentage)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	result, err := m.keeper.Burn(sdkCtx, msg.Owner, msg.PositionID, percentage)
	if err != nil {
		return nil, err
	}

	return &types.MsgBurnResponse{
		LeverBurned:        result.LeverBurned.String(),
		StableBurned:       result.StableBurned.String(),
		UnderlyingReturned: result.UnderlyingReturned.String(),
	}, nil
}

// UpdatePrice handles MsgUpdatePrice
func (m *MsgServer) UpdatePrice(ctx context.Context, msg *types.MsgUpdatePrice) (*types.MsgUpdatePriceResponse, error) {
	price, err := math.LegacyNewDecFromStr(msg.Price)
	if err != nil {
		return nil, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if !m.keeper.IsPriceUpdater(sdkCtx, msg.Updater) {
		return nil, types.ErrUnauthorized
	}

	if err := m.keeper.SetPrice(sdkCtx, msg.Updater, price); err != nil {
		return nil, err
	}

	return &types.MsgUpdatePriceResponse{
		Price:     price.String(),
		Timestamp: sdkCtx.BlockTime().Unix(),
	}, nil
}

// GrantPriceUpdater handles MsgGrantPriceUpdater (authority only)
func (m *MsgServer) GrantPriceUpdater(ctx context.Context, msg *types.MsgGrantPriceUpdater) (*types.MsgGrantPriceUpdaterResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	if msg.Authority != m.keeper.GetAuthority() {
		return nil, types.ErrUnauthorized
	}

	if msg.Revoke {
		m.keeper.RevokePriceUpdater(sdkCtx, msg.Updater)
	} else {
		m.keeper.GrantPriceUpdater(sdkCtx, msg.Updater)
	}

	return &types.MsgGrantPriceUpdaterResponse{Granted: !msg.Revoke}, nil
}

// UpdateParams handles MsgUpdateParams (authority only)
func (m *MsgServer) UpdateParams(ctx context.Context, msg *types.MsgUpdateParams) (*types.MsgUpdateParamsResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	if msg.Authority != m.keeper.GetAuthority() {
		return nil, types.ErrUnauthorized
	}
	if err := msg.Params.Validate(); err != nil {
		return nil, err
	}

	m.keeper.SetParams(sdkCtx, msg.Params)
	return &types.MsgUpdateParamsResponse{}, nil
}
