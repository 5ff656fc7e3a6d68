// Package risk implements position limits checked before a buy settles.
//
// Two limits apply: a per-instrument cap on held quantity, and an
// aggregate cap on total cost basis across all open positions. Either cap
// can be disabled by setting it to zero.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

var (
	// ErrPositionLimitExceeded is returned when a buy would push one
	// instrument's held quantity beyond the per-instrument maximum.
	ErrPositionLimitExceeded = errors.New("risk: per-instrument position limit exceeded")

	// ErrExposureLimitExceeded is returned when a buy would push the
	// aggregate cost basis across all positions beyond the maximum.
	ErrExposureLimitExceeded = errors.New("risk: aggregate exposure limit exceeded")
)

// PositionLimiter enforces buy-side position limits.
type PositionLimiter struct {
	// MaxQtyPerInstrument is the maximum held quantity in any single
	// instrument. Zero disables the check.
	MaxQtyPerInstrument int64

	// MaxTotalCostBasis is the maximum aggregate cost basis across all
	// open positions. Zero disables the check.
	MaxTotalCostBasis decimal.Decimal
}

// NewPositionLimiter creates a limiter with the given caps.
func NewPositionLimiter(maxQtyPerInstrument int64, maxTotalCostBasis decimal.Decimal) *PositionLimiter {
	return &PositionLimiter{
		MaxQtyPerInstrument: maxQtyPerInstrument,
		MaxTotalCostBasis:   maxTotalCostBasis,
	}
}

// CheckBuy validates whether buying quantity units at a total cost of
// cost respects the limits, given the current open positions.
//
// Returns nil if the buy is within limits, or an error describing the
// violation. Sells are never limit-checked; they only reduce exposure.
func (l *PositionLimiter) CheckBuy(symbol string, quantity int64, cost decimal.Decimal, positions []model.Position) error {
	if l == nil {
		return nil
	}

	if l.MaxQtyPerInstrument > 0 {
		var held int64
		for _, p := range positions {
			if p.Symbol == symbol {
				held = p.Quantity
				break
			}
		}
		if held+quantity > l.MaxQtyPerInstrument {
			return ErrPositionLimitExceeded
		}
	}

	if l.MaxTotalCostBasis.IsPositive() {
		total := cost
		for _, p := range positions {
			total = total.Add(p.AvgCost.Mul(decimal.NewFromInt(p.Quantity)))
		}
		if total.GreaterThan(l.MaxTotalCostBasis) {
			return ErrExposureLimitExceeded
		}
	}

	return nil
}
