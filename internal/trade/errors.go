package trade

import "errors"

// Settlement error kinds. Validation errors (invalid quantity/price,
// unknown instrument) are detected before any mutation and are safe to
// retry after correcting input. Business-rule errors (insufficient funds
// or position) are terminal for that request and carry the actual vs.
// requested magnitudes in their messages. ErrCommitFailed indicates an
// infrastructure failure during the atomic write; no partial state is
// visible and the request may be retried.
var (
	ErrInvalidQuantity      = errors.New("trade: quantity must be a positive multiple of the lot size")
	ErrInvalidPrice         = errors.New("trade: price must be positive")
	ErrUnknownInstrument    = errors.New("trade: unknown instrument")
	ErrInsufficientFunds    = errors.New("trade: insufficient funds")
	ErrInsufficientPosition = errors.New("trade: insufficient position")
	ErrCommitFailed         = errors.New("trade: settlement commit failed")
)
