// Package costbasis implements the weighted-average cost-basis accounting
// used by the settlement engine.
//
// The average-cost method works as follows:
//   - On a buy, the position's average cost is re-weighted across the old
//     and new lots.
//   - On a partial sell, the average cost is unchanged; realized gains are
//     computed at sell time against the pre-sale average cost and the
//     remaining lot continues to carry that same average cost.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Results that feed persisted state or outputs are rounded to MoneyScale
// using decimal.Round, which rounds half away from zero.
package costbasis

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places for all persisted and
// reported monetary values.
const MoneyScale int32 = 2

// Notional returns price * quantity. Quantities are whole units, so the
// product is exact for a price already at MoneyScale.
func Notional(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// BlendedAvgCost returns the weighted-average cost of a position after
// adding quantity units at price to an existing lot of oldQty units at
// oldAvg:
//
//	(oldAvg*oldQty + price*quantity) / (oldQty + quantity)
//
// rounded to MoneyScale. oldQty may be zero, in which case the result is
// price rounded to MoneyScale.
func BlendedAvgCost(oldAvg decimal.Decimal, oldQty int64, price decimal.Decimal, quantity int64) decimal.Decimal {
	newQty := oldQty + quantity
	total := Notional(oldAvg, oldQty).Add(Notional(price, quantity))
	return total.Div(decimal.NewFromInt(newQty)).Round(MoneyScale)
}

// RealizedPnL returns the gain or loss realized by selling quantity units
// at price against an average cost of avgCost:
//
//	(price - avgCost) * quantity
//
// rounded to MoneyScale. Negative for a losing sale.
func RealizedPnL(price, avgCost decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Sub(avgCost).Mul(decimal.NewFromInt(quantity)).Round(MoneyScale)
}

// RoundMoney rounds v to MoneyScale, half away from zero. Used at output
// boundaries; intermediate accumulation stays at full precision.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyScale)
}
