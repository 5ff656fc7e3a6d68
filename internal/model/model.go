// Package model defines the core domain types shared across the
// settlement engine. All monetary values use shopspring/decimal — never
// float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides recorded in the ledger.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Instrument is a tradable entry in the price catalog. The price is the
// only field that changes after seeding; instruments are never deleted.
type Instrument struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Name   string          `json:"name" db:"name"`
	Price  decimal.Decimal `json:"price" db:"price"`
}

// Position is the account's open holding in one instrument. Quantity is
// always a positive multiple of the lot size; a position that would reach
// quantity zero is deleted, never stored at zero. AvgCost is the
// weighted-average cost basis: it moves on buys and stays fixed on
// partial sells.
type Position struct {
	Symbol   string          `json:"symbol" db:"symbol"`
	Quantity int64           `json:"quantity" db:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost" db:"avg_cost"`
}

// Account holds the single cash balance. The balance is never negative;
// every buy is checked against it before any mutation.
type Account struct {
	Balance decimal.Decimal `json:"balance" db:"balance"`
}

// LedgerEntry is an immutable record of one settled trade. Once created,
// these are never modified or deleted. ProfitLoss is populated only for
// sell entries. Name is a snapshot of the instrument's display name at
// trade time.
type LedgerEntry struct {
	ID         string           `json:"id" db:"id"`
	Side       string           `json:"side" db:"side"` // "buy" or "sell"
	Symbol     string           `json:"symbol" db:"symbol"`
	Name       string           `json:"name" db:"name"`
	Quantity   int64            `json:"quantity" db:"quantity"`
	Price      decimal.Decimal  `json:"price" db:"price"`       // execution price
	Notional   decimal.Decimal  `json:"notional" db:"notional"` // price * quantity
	ProfitLoss *decimal.Decimal `json:"profit_loss,omitempty" db:"profit_loss"`
	Timestamp  time.Time        `json:"timestamp" db:"timestamp"`
}

// Holding is one position marked to the current catalog price.
type Holding struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Quantity          int64           `json:"quantity"`
	AvgCost           decimal.Decimal `json:"avg_cost"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	MarketValue       decimal.Decimal `json:"market_value"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	Unrealized        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPercent decimal.Decimal `json:"unrealized_pnl_percent"`
}

// PortfolioView aggregates the cash balance and all holdings with P&L
// totals. Totals are accumulated at full precision and rounded only at
// the point of output.
type PortfolioView struct {
	Balance            decimal.Decimal `json:"balance"`
	Holdings           []Holding       `json:"holdings"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalCostBasis     decimal.Decimal `json:"total_cost_basis"`
	TotalProfitLoss    decimal.Decimal `json:"total_pnl"`
	TotalProfitLossPct decimal.Decimal `json:"total_pnl_percent"`
	TotalAssets        decimal.Decimal `json:"total_assets"`
}
