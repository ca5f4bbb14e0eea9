package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/tranche-protocol/x/auction/types"
)

// MsgServer defines the auction MsgServer
type MsgServer struct {
	keeper *Keeper
}

// NewMsgServerImpl creates a new MsgServer instance
func NewMsgServerImpl(keeper *Keeper) *MsgServer {
	return &MsgServer{keeper: keeper}
}

// PurchaseUnderlying handles MsgPurchaseUnderlying
func (m *MsgServer) PurchaseUnderlying(ctx context.Context, msg *types.MsgPurchaseUnderlying) (*types.MsgPurchaseUnderlyingResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	result, err := m.keeper.PurchaseUnderlying(sdkCtx, msg.Buyer, msg.AuctionID, msg.MaxUnderlying, msg.MaxAcceptablePrice, msg.Recipient)
	if err != nil {
		return nil, err
	}

	return &types.MsgPurchaseUnderlyingResponse{
		UnderlyingBought: result.UnderlyingSold.String(),
		StablePaid:       result.StableCost.String(),
		ClearingPrice:    result.ClearingPrice.String(),
		AuctionClosed:    result.AuctionClosed,
	}, nil
}

// ResetAuction handles MsgResetAuction
func (m *MsgServer) ResetAuction(ctx context.Context, msg *types.MsgResetAuction) (*types.MsgResetAuctionResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	newPrice, err := m.keeper.ResetAuction(sdkCtx, msg.AuctionID)
	if err != nil {
		return nil, err
	}

	return &types.MsgResetAuctionResponse{
		NewStartingPrice: newPrice.String(),
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
