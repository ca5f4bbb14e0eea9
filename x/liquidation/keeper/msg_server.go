package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// MsgServer defines the liquidation MsgServer
type MsgServer struct {
	keeper *Keeper
}

// NewMsgServerImpl creates a new MsgServer instance
func NewMsgServerImpl(keeper *Keeper) *MsgServer {
	return &MsgServer{keeper: keeper}
}

// Bark handles MsgBark
func (m *MsgServer) Bark(ctx context.Context, msg *types.MsgBark) (*types.MsgBarkResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	record, err := m.keeper.Bark(sdkCtx, msg.Owner, msg.PositionID, msg.Triggerer)
	if err != nil {
		return nil, err
	}

	return &types.MsgBarkResponse{
		AuctionID:     record.AuctionID,
		OwnerReturn:   record.OwnerReturn.String(),
		KeeperReward:  record.KeeperReward.String(),
		StartingPrice: record.StartingPrice.String(),
		BurnTarget:    record.ValueToBeBurned.String(),
	}, nil
}

// UpdateRiskLevel handles MsgUpdateRiskLevel
func (m *MsgServer) UpdateRiskLevel(ctx context.Context, msg *types.MsgUpdateRiskLevel) (*types.MsgUpdateRiskLevelResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	level, netNav, err := m.keeper.UpdateRiskLevel(sdkCtx, msg.Owner, msg.PositionID)
	if err != nil {
		return nil, err
	}

	return &types.MsgUpdateRiskLevelResponse{
		RiskLevel: level,
		NetNav:    netNav.String(),
	}, nil
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
