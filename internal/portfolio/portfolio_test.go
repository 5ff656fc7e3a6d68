package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute_Empty(t *testing.T) {
	view := Compute(d("100000"), nil, nil)

	if !view.TotalValue.IsZero() {
		t.Errorf("expected total_value=0, got %s", view.TotalValue)
	}
	if !view.TotalProfitLossPct.IsZero() {
		t.Errorf("expected total_pnl_percent=0, got %s", view.TotalProfitLossPct)
	}
	if !view.TotalAssets.Equal(d("100000.00")) {
		t.Errorf("expected total_assets=100000.00, got %s", view.TotalAssets)
	}
	if len(view.Holdings) != 0 {
		t.Errorf("expected no holdings, got %d", len(view.Holdings))
	}
}

func TestCompute_SinglePosition(t *testing.T) {
	positions := []model.Position{
		{Symbol: "AAPL", Quantity: 200, AvgCost: d("15.00")},
	}
	instruments := []model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: d("25.00")},
	}

	view := Compute(d("1000.00"), positions, instruments)

	if len(view.Holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(view.Holdings))
	}
	h := view.Holdings[0]
	if h.Name != "Apple Inc." {
		t.Errorf("expected name snapshot, got %q", h.Name)
	}
	if !h.MarketValue.Equal(d("5000.00")) {
		t.Errorf("expected market_value=5000.00, got %s", h.MarketValue)
	}
	if !h.CostBasis.Equal(d("3000.00")) {
		t.Errorf("expected cost_basis=3000.00, got %s", h.CostBasis)
	}
	if !h.Unrealized.Equal(d("2000.00")) {
		t.Errorf("expected unrealized=2000.00, got %s", h.Unrealized)
	}
	// 2000 / 3000 * 100 = 66.67 after output rounding.
	if !h.UnrealizedPercent.Equal(d("66.67")) {
		t.Errorf("expected unrealized_percent=66.67, got %s", h.UnrealizedPercent)
	}
	if !view.TotalAssets.Equal(d("6000.00")) {
		t.Errorf("expected total_assets=6000.00, got %s", view.TotalAssets)
	}
}

func TestCompute_MissingPriceContributesZero(t *testing.T) {
	positions := []model.Position{
		{Symbol: "GONE", Quantity: 100, AvgCost: d("10.00")},
	}

	view := Compute(d("500.00"), positions, nil)

	h := view.Holdings[0]
	if !h.MarketValue.IsZero() {
		t.Errorf("expected market_value=0 for uncataloged symbol, got %s", h.MarketValue)
	}
	if !h.Unrealized.Equal(d("-1000.00")) {
		t.Errorf("expected unrealized=-1000.00, got %s", h.Unrealized)
	}
	if !view.TotalAssets.Equal(d("500.00")) {
		t.Errorf("expected total_assets=balance only, got %s", view.TotalAssets)
	}
}

func TestCompute_RoundsOutputsNotAccumulation(t *testing.T) {
	// Three positions whose individual values round differently than
	// their full-precision sum. Each holding value is 100 * 10.3333... but
	// prices here are exact 2dp, so craft the drift via avg cost percent.
	positions := []model.Position{
		{Symbol: "A", Quantity: 300, AvgCost: d("3.33")},
		{Symbol: "B", Quantity: 300, AvgCost: d("3.33")},
		{Symbol: "C", Quantity: 300, AvgCost: d("3.33")},
	}
	instruments := []model.Instrument{
		{Symbol: "A", Name: "A", Price: d("3.34")},
		{Symbol: "B", Name: "B", Price: d("3.34")},
		{Symbol: "C", Name: "C", Price: d("3.34")},
	}

	view := Compute(decimal.Zero, positions, instruments)

	// Totals from full-precision accumulation: 3 * 300 * 0.01 = 9.00.
	if !view.TotalProfitLoss.Equal(d("9.00")) {
		t.Errorf("expected total_pnl=9.00, got %s", view.TotalProfitLoss)
	}
	if !view.TotalValue.Equal(d("3006.00")) {
		t.Errorf("expected total_value=3006.00, got %s", view.TotalValue)
	}
}

func TestCompute_TotalPercent(t *testing.T) {
	positions := []model.Position{
		{Symbol: "A", Quantity: 100, AvgCost: d("10.00")},
		{Symbol: "B", Quantity: 100, AvgCost: d("30.00")},
	}
	instruments := []model.Instrument{
		{Symbol: "A", Name: "A", Price: d("20.00")},
		{Symbol: "B", Name: "B", Price: d("30.00")},
	}

	view := Compute(decimal.Zero, positions, instruments)

	// pnl = 1000 over cost 4000 → 25.00%.
	if !view.TotalProfitLossPct.Equal(d("25.00")) {
		t.Errorf("expected total_pnl_percent=25.00, got %s", view.TotalProfitLossPct)
	}
}
