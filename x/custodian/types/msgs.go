package types

import (
	"fmt"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgMint              = "mint"
	TypeMsgBurn              = "burn"
	TypeMsgUpdatePrice       = "update_price"
	TypeMsgGrantPriceUpdater = "grant_price_updater"
	TypeMsgUpdateParams      = "update_params"
)

// MsgMint deposits collateral and splits it into stable and lever claims
type MsgMint struct {
	Creditor   string `json:"creditor"`
	Collateral string `json:"collateral"`
	Tier       uint8  `json:"tier"`
}

// Route implements sdk.Msg
func (msg MsgMint) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgMint) Type() string { return TypeMsgMint }

// ValidateBasic implements sdk.Msg
func (msg MsgMint) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Creditor); err != nil {
		return err
	}
	if !IsValidTier(msg.Tier) {
		return ErrInvalidTier
	}
	if msg.Collateral == "" {
		return ErrInvalidAmount
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgMint) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Creditor)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgMint) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgMint) Reset() { *msg = MsgMint{} }

// String implements proto.Message
func (msg MsgMint) String() string {
	return fmt.Sprintf("MsgMint{Creditor: %s, Collateral: %s, Tier: %d}", msg.Creditor, msg.Collateral, msg.Tier)
}

// MsgMintResponse defines the Mint response
type MsgMintResponse struct {
	PositionID    string `json:"position_id"`
	StableMinted  string `json:"stable_minted"`
	LeverCredited string `json:"lever_credited"`
	MintPrice     string `json:"mint_price"`
}

// MsgBurn redeems a percentage of a position's lever claims for underlying
type MsgBurn struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"`
	Percentage string `json:"percentage"`
}

// Route implements sdk.Msg
func (msg MsgBurn) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgBurn) Type() string { return TypeMsgBurn }

// ValidateBasic implements sdk.Msg
func (msg MsgBurn) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Owner); err != nil {
		return err
	}
	if msg.Percentage == "" {
		return ErrInvalidPercentage
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgBurn) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Owner)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgBurn) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgBurn) Reset() { *msg = MsgBurn{} }

// String implements proto.Message
func (msg MsgBurn) String() string {
	return fmt.Sprintf("MsgBurn{Owner: %s, PositionID: %d, Percentage: %s}", msg.Owner, msg.PositionID, msg.Percentage)
}

// MsgBurnResponse defines the Burn response
type MsgBurnResponse struct {
	LeverBurned        string `json:"lever_burned"`
	StableBurned       string `json:"stable_burned"`
	UnderlyingReturned string `json:"underlying_returned"`
}

// MsgUpdatePrice posts a new oracle price for the collateral asset
type MsgUpdatePrice struct {
	Updater string `json:"updater"`
	Price   string `json:"price"`
}

// Route implements sdk.Msg
func (msg MsgUpdatePrice) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgUpdatePrice) Type() string { return TypeMsgUpdatePrice }

// ValidateBasic implements sdk.Msg
func (msg MsgUpdatePrice) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Updater); err != nil {
		return err
	}
	if msg.Price == "" {
		return ErrInvalidPrice
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgUpdatePrice) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Updater)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgUpdatePrice) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgUpdatePrice) Reset() { *msg = MsgUpdatePrice{} }

// String implements proto.Message
func (msg MsgUpdatePrice) String() string {
	return fmt.Sprintf("MsgUpdatePrice{Updater: %s, Price: %s}", msg.Updater, msg.Price)
}

// MsgUpdatePriceResponse defines the UpdatePrice response
type MsgUpdatePriceResponse struct {
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// MsgGrantPriceUpdater adds or removes an authorized oracle updater
type MsgGrantPriceUpdater struct {
	Authority string `json:"authority"`
	Updater   string `json:"updater"`
	Revoke    bool   `json:"revoke,omitempty"`
}

// Route implements sdk.Msg
func (msg MsgGrantPriceUpdater) Route() string { return ModuleName }

// Type implements sdk.Msg
func (msg MsgGrantPriceUpdater) Type() string { return TypeMsgGrantPriceUpdater }

// ValidateBasic implements sdk.Msg
func (msg MsgGrantPriceUpdater) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Authority); err != nil {
		return err
	}
	if _, err := sdk.AccAddressFromBech32(msg.Updater); err != nil {
		return err
	}
	return nil
}

// GetSigners implements sdk.Msg
func (msg MsgGrantPriceUpdater) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Authority)
	return []sdk.AccAddress{addr}
}

// ProtoMessage implements proto.Message
func (*MsgGrantPriceUpdater) ProtoMessage() {}

// Reset implements proto.Message
func (msg *MsgGrantPriceUpdater) Reset() { *msg = MsgGrantPriceUpdater{} }

// String implements proto.Message
func (msg MsgGrantPriceUpdater) String() string {
	return fmt.Sprintf("MsgGrantPriceUpdater{Authority: %s, Updater: %s, Revoke: %s}",
		msg.Authority, msg.Updater, strconv.FormatBool(msg.Revoke))
}

// MsgGrantPriceUpdaterResponse defines the GrantPriceUpdater response
type MsgGrantPriceUpdaterResponse struct {
	Granted bool `json:"granted"`
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
	_ sdk.Msg = &MsgMint{}
	_ sdk.Msg = &MsgBurn{}
	_ sdk.Msg = &MsgUpdatePrice{}
	_ sdk.Msg = &MsgGrantPriceUpdater{}
	_ sdk.Msg = &MsgUpdateParams{}
)
