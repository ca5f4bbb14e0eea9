package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Auction module errors
var (
	ErrAuctionNotFound   = errorsmod.Register(ModuleName, 1, "auction not found")
	ErrAuctionInactive   = errorsmod.Register(ModuleName, 2, "auction is not active")
	ErrNeedsReset        = errorsmod.Register(ModuleName, 3, "auction needs reset")
	ErrNoResetNeeded     = errorsmod.Register(ModuleName, 4, "auction does not need a reset")
	ErrPriceTooHigh      = errorsmod.Register(ModuleName, 5, "clearing price above buyer limit")
	ErrAmountTooSmall    = errorsmod.Register(ModuleName, 6, "purchase below minimum auction amount")
	ErrInvalidAmount     = errorsmod.Register(ModuleName, 7, "invalid amount")
	ErrZeroPrice         = errorsmod.Register(ModuleName, 8, "clearing price is zero")
	ErrOracleUnavailable = errorsmod.Register(ModuleName, 9, "oracle price unavailable")
	ErrInvalidParams     = errorsmod.Register(ModuleName, 10, "invalid auction params")
	ErrUnauthorized      = errorsmod.Register(ModuleName, 11, "unauthorized")
)
