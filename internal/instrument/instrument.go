// Package instrument handles instrument symbol validation and the default
// price catalog the system is seeded with at startup.
package instrument

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

// LotSize is the minimum tradable increment. Every trade quantity must be
// a positive integer multiple of it.
const LotSize int64 = 100

// InitialBalance is the cash balance the account is seeded with before
// any trade occurs.
var InitialBalance = decimal.NewFromInt(100000)

// symbolRegex matches 1-10 uppercase letters, optionally dot-separated
// (e.g. AAPL, BRK.B).
var symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}(\.[A-Z]{1,2})?$`)

var (
	ErrInvalidSymbol = errors.New("instrument: invalid symbol format")
	ErrInvalidPrice  = errors.New("instrument: price must be positive")
)

// ValidateSymbol checks that sym is a well-formed instrument symbol. It
// does not check catalog membership; that is the store's job.
func ValidateSymbol(sym string) error {
	if !symbolRegex.MatchString(sym) {
		return fmt.Errorf("%w: %q (expected 1-10 uppercase letters)", ErrInvalidSymbol, sym)
	}
	return nil
}

// ValidatePrice checks that p is a usable execution or catalog price.
func ValidatePrice(p decimal.Decimal) error {
	if p.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: got %s", ErrInvalidPrice, p)
	}
	return nil
}

// DefaultCatalog returns the fixed instrument list used to seed the price
// catalog. Seeding is idempotent; existing rows win on restart.
func DefaultCatalog() []model.Instrument {
	return []model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("185.00")},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Price: decimal.RequireFromString("410.50")},
		{Symbol: "GOOG", Name: "Alphabet Inc.", Price: decimal.RequireFromString("152.30")},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.RequireFromString("178.25")},
		{Symbol: "TSLA", Name: "Tesla Inc.", Price: decimal.RequireFromString("248.75")},
	}
}
