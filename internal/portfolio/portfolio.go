// Package portfolio derives portfolio valuation from positions and
// current catalog prices. It is pure and read-only: callers pass in a
// consistent snapshot of balance, positions, and prices, and get back a
// fully computed view.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Totals are accumulated at full precision and rounded to the money scale
// only on the reported figures, so rounding error never compounds across
// positions.
package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/costbasis"
	"github.com/papertrade/settlement-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Compute values every position at its current catalog price and
// aggregates totals. A position whose symbol is absent from prices
// contributes zero market value rather than erroring; a zero cost basis
// yields a zero percentage rather than dividing by zero.
func Compute(balance decimal.Decimal, positions []model.Position, instruments []model.Instrument) model.PortfolioView {
	prices := make(map[string]decimal.Decimal, len(instruments))
	names := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		prices[inst.Symbol] = inst.Price
		names[inst.Symbol] = inst.Name
	}

	holdings := make([]model.Holding, 0, len(positions))
	totalValue := decimal.Zero
	totalCost := decimal.Zero

	for _, pos := range positions {
		price := prices[pos.Symbol] // zero value for uncataloged symbols
		qty := decimal.NewFromInt(pos.Quantity)

		marketValue := price.Mul(qty)
		cost := pos.AvgCost.Mul(qty)
		unrealized := marketValue.Sub(cost)

		pct := decimal.Zero
		if cost.IsPositive() {
			pct = unrealized.Div(cost).Mul(hundred)
		}

		holdings = append(holdings, model.Holding{
			Symbol:            pos.Symbol,
			Name:              names[pos.Symbol],
			Quantity:          pos.Quantity,
			AvgCost:           pos.AvgCost,
			CurrentPrice:      price,
			MarketValue:       costbasis.RoundMoney(marketValue),
			CostBasis:         costbasis.RoundMoney(cost),
			Unrealized:        costbasis.RoundMoney(unrealized),
			UnrealizedPercent: costbasis.RoundMoney(pct),
		})

		totalValue = totalValue.Add(marketValue)
		totalCost = totalCost.Add(cost)
	}

	totalPnL := totalValue.Sub(totalCost)
	totalPct := decimal.Zero
	if totalCost.IsPositive() {
		totalPct = totalPnL.Div(totalCost).Mul(hundred)
	}

	return model.PortfolioView{
		Balance:            costbasis.RoundMoney(balance),
		Holdings:           holdings,
		TotalValue:         costbasis.RoundMoney(totalValue),
		TotalCostBasis:     costbasis.RoundMoney(totalCost),
		TotalProfitLoss:    costbasis.RoundMoney(totalPnL),
		TotalProfitLossPct: costbasis.RoundMoney(totalPct),
		TotalAssets:        costbasis.RoundMoney(balance.Add(totalValue)),
	}
}
