package economy

import "errors"

// Every user-triggered failure is a rejected operation with no partial
// state change; operations validate everything before mutating anything.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOutOfStock           = errors.New("out of stock")
	ErrAssetNotFound        = errors.New("asset not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrNotOwner             = errors.New("account does not own this asset")
	ErrNothingToClaim       = errors.New("nothing to claim")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrConcurrencyConflict  = errors.New("concurrent modification conflict")
	ErrConfigurationMissing = errors.New("house account is not configured")
)
