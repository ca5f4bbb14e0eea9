package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrNavAboveThreshold  = errors.Register("liquidation", 1, "NAV above liquidation threshold")
	ErrPositionFrozen     = errors.Register("liquidation", 2, "position is already frozen")
	ErrPositionNotFound   = errors.Register("liquidation", 3, "position not found")
	ErrPositionInert      = errors.Register("liquidation", 4, "position has no lever balance")
	ErrInsufficientBudget = errors.Register("liquidation", 5, "position collateral cannot cover owner return and reward")
	ErrInvalidParams      = errors.Register("liquidation", 6, "invalid params")
	ErrUnauthorized       = errors.Register("liquidation", 7, "unauthorized")
	ErrNotFrozen          = errors.Register("liquidation", 8, "position is not frozen")
)
