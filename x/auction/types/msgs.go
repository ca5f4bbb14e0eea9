package types

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgPurchaseUnderlying = "purchase_underlying"
	TypeMsgResetAuction       = "reset_auction"
	TypeMsgUpdateParams       = "update_params"
)

// MsgPurchaseUnderlying buys seized collateral from an open auction at the
// current clearing price, paying in stable claims that are burned.
type MsgPurchaseUnderlying struct {
	Buyer              string         `json:"buyer"`
	AuctionID          uint64         `json:"auction_id"`
	MaxUnderlying      math.LegacyDec `json:"max_underlying"`
	MaxAcceptablePrice math.LegacyDec `json:"max_acceptable_price"`
	Recipient          string         `json:"recipient,omitempty"`
}

// Route implements sdk.Msg
func (msg MsgPurchaseUnderlying) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgPurchaseUnderlying) Type() string { return TypeMsgPurchaseUnderlying }

// ValidateBasic implements sdk.Msg
func (msg MsgPurchaseUnderlying) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Buyer); err != nil {
		return err
	}
	if msg.Recipient != "" {
		if _, err := sdk.AccAddressFromBech32(msg.Recipient); err != nil {
			return err
		}
	}
	if msg.MaxUnderlying.IsNil() || !msg.MaxUnderlying.IsPositive() {
		return ErrInvalidAmount.Wrap("max underlying must be positive")
	}
	if msg.MaxAcceptablePrice.IsNil() || !msg.MaxAcceptablePrice.IsPositive() {
		return ErrInvalidAmount.Wrap("max acceptable price must be positive")
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgPurchaseUnderlying) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Buyer)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgPurchaseUnderlying) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgPurchaseUnderlying) Reset() { *msg = MsgPurchaseUnderlying{} }

// String implements proto.Message
func (msg MsgPurchaseUnderlying) String() string {
	return fmt.Sprintf("MsgPurchaseUnderlying{Buyer: %s, AuctionID: %d, MaxUnderlying: %s}",
		msg.Buyer, msg.AuctionID, msg.MaxUnderlying)
}

// MsgPurchaseUnderlyingResponse defines the PurchaseUnderlying response
type MsgPurchaseUnderlyingResponse struct {
	UnderlyingBought string `json:"underlying_bought"`
	StablePaid       string `json:"stable_paid"`
	ClearingPrice    string `json:"clearing_price"`
	AuctionClosed    bool   `json:"auction_closed"`
}

// MsgResetAuction re-anchors a stale auction to the live oracle price
type MsgResetAuction struct {
	Caller    string `json:"caller"`
	AuctionID uint64 `json:"auction_id"`
}

// Route implements sdk.Msg
func (msg MsgResetAuction) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgResetAuction) Type() string { return TypeMsgResetAuction }

// ValidateBasic implements sdk.Msg
func (msg MsgResetAuction) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Caller); err != nil {
		return err
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgResetAuction) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Caller)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgResetAuction) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgResetAuction) Reset() { *msg = MsgResetAuction{} }

// String implements proto.Message
func (msg MsgResetAuction) String() string {
	return fmt.Sprintf("MsgResetAuction{Caller: %s, AuctionID: %d}", msg.Caller, msg.AuctionID)
}

// MsgResetAuctionResponse defines the ResetAuction response
type MsgResetAuctionResponse struct {
	NewStartingPrice string `json:"new_starting_price"`
}

// MsgUpdateParams updates the module parameters (authority only)
type MsgUpdateParams struct {
	Authority string `json:"authority"`
	Params    Params `json:"params"`
}

// Route implements sdk.Msg
func (msg MsgUpdateParams) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgUpdateParams) Type() string { return TypeMsgUpdateParams }

// ValidateBasic implements sdk.Msg
func (msg MsgUpdateParams) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Authority); err != nil {
		return err
	}
	return msg.Params.Validate()
}

// GetSigners implements sdk.Msg
func (msg MsgUpdateParams) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Authority)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgUpdateParams) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgUpdateParams) Reset() { *msg = MsgUpdateParams{} }

// String implements proto.Message
func (msg MsgUpdateParams) String() string {
	return fmt.Sprintf("MsgUpdateParams{Authority: %s}", msg.Authority)
}

// MsgUpdateParamsResponse defines the UpdateParams response
type MsgUpdateParamsResponse struct{}

// Ensure all messages implement sdk.Msg interface
var (
	_ sdk.Msg = &MsgPurchaseUnderlying{}
	_ sdk.Msg = &MsgResetAuction{}
	_ sdk.Msg = &MsgUpdateParams{}
)
