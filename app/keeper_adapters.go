package app

import (
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	auctionkeeper "github.com/openalpha/tranche-protocol/x/auction/keeper"
	auctiontypes "github.com/openalpha/tranche-protocol/x/auction/types"
	custodiankeeper "github.com/openalpha/tranche-protocol/x/custodian/keeper"
	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	liquidationkeeper "github.com/openalpha/tranche-protocol/x/liquidation/keeper"
	liquidationtypes "github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// The custodian keeper backs the expected-keeper interfaces of both dependent
// modules directly; these assertions keep the wiring honest at compile time.
var (
	_ liquidationkeeper.CustodianKeeper = (*custodiankeeper.Keeper)(nil)
	_ auctionkeeper.CustodianKeeper     = (*custodiankeeper.Keeper)(nil)
	_ liquidationkeeper.AuctionKeeper   = (*auctionkeeper.Keeper)(nil)
	_ auctionkeeper.LiquidationKeeper   = (*liquidationkeeper.Keeper)(nil)
)

// RegisterModuleInterfaces registers the custom module message types with the
// interface registry
func RegisterModuleInterfaces(registry codectypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&custodiantypes.MsgMint{},
		&custodiantypes.MsgBurn{},
		&custodiantypes.MsgUpdatePrice{},
		&custodiantypes.MsgGrantPriceUpdater{},
		&custodiantypes.MsgUpdateParams{},
	)
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&liquidationtypes.MsgBark{},
		&liquidationtypes.MsgUpdateRiskLevel{},
		&liquidationtypes.MsgUpdateParams{},
	)
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&auctiontypes.MsgPurchaseUnderlying{},
		&auctiontypes.MsgResetAuction{},
		&auctiontypes.MsgUpdateParams{},
	)
}
