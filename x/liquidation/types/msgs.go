package types

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgBark            = "bark"
	TypeMsgUpdateRiskLevel = "update_risk_level"
	TypeMsgUpdateParams    = "update_params"
)

// MsgBark triggers the liquidation of an undercollateralized position
type MsgBark struct {
	Triggerer  string `json:"triggerer"`
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
}

// Route implements sdk.Msg
func (msg MsgBark) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgBark) Type() string { return TypeMsgBark }

// ValidateBasic implements sdk.Msg
func (msg MsgBark) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Triggerer); err != nil {
		return err
	}
	if _, err := sdk.AccAddressFromBech32(msg.Owner); err != nil {
		return err
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgBark) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Triggerer)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgBark) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgBark) Reset() { *msg = MsgBark{} }

// String implements proto.Message
func (msg MsgBark) String() string {
	return fmt.Sprintf("MsgBark{Triggerer: %s, Owner: %s, PositionID: %d}", msg.Triggerer, msg.Owner, msg.PositionID)
}

// MsgBarkResponse defines the Bark response
type MsgBarkResponse struct {
	AuctionID     uint64 `json:"auction_id"`
	OwnerReturn   string `json:"owner_return"`
	KeeperReward  string `json:"keeper_reward"`
	StartingPrice string `json:"starting_price"`
	BurnTarget    string `json:"burn_target"`
}

// MsgUpdateRiskLevel recomputes the stored risk level for a position
type MsgUpdateRiskLevel struct {
	Caller     string `json:"caller"`
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
}

// Route implements sdk.Msg
func (msg MsgUpdateRiskLevel) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgUpdateRiskLevel) Type() string { return TypeMsgUpdateRiskLevel }

// ValidateBasic implements sdk.Msg
func (msg MsgUpdateRiskLevel) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Caller); err != nil {
		return err
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgUpdateRiskLevel) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Caller)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgUpdateRiskLevel) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgUpdateRiskLevel) Reset() { *msg = MsgUpdateRiskLevel{} }

// String implements proto.Message
func (msg MsgUpdateRiskLevel) String() string {
	return fmt.Sprintf("MsgUpdateRiskLevel{Caller: %s, PositionID: %d}", msg.Caller, msg.PositionID)
}

// MsgUpdateRiskLevelResponse defines the UpdateRiskLevel response
type MsgUpdateRiskLevelResponse struct {
	RiskLevel uint8  `json:"risk_level"`
	NetNav    string `json:"net_nav"`
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
	_ sdk.Msg = &MsgBark{}
	_ sdk.Msg = &MsgUpdateRiskLevel{}
	_ sdk.Msg = &MsgUpdateParams{}
)
