package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrInvalidTier           = errors.Register("custodian", 1, "unknown tranche tier")
	ErrInvalidAmount         = errors.Register("custodian", 2, "amount must be positive")
	ErrInvalidPercentage     = errors.Register("custodian", 3, "percentage must be in (0, 100]")
	ErrPositionNotFound      = errors.Register("custodian", 4, "position not found")
	ErrNotPositionOwner      = errors.Register("custodian", 5, "not position owner")
	ErrInsufficientLever     = errors.Register("custodian", 6, "insufficient lever balance")
	ErrOracleUnavailable     = errors.Register("custodian", 7, "oracle price unavailable or stale")
	ErrUnauthorized          = errors.Register("custodian", 8, "unauthorized")
	ErrInvalidParams         = errors.Register("custodian", 9, "invalid params")
	ErrInvalidPrice          = errors.Register("custodian", 10, "price must be positive")
	ErrPositionFrozen        = errors.Register("custodian", 11, "position is frozen pending liquidation")
	ErrInsufficientCollateral = errors.Register("custodian", 12, "insufficient position collateral")
)
