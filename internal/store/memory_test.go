package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	ms := NewMemoryStore()
	err := ms.Seed(context.Background(), []model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: d("185.00")},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Price: d("410.50")},
	}, d("100000"))
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return ms
}

func TestSeed_Idempotent(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()

	// Mutate state, then re-seed: existing rows must win.
	ms.SetBalance(ctx, d("50000"))
	ms.UpdateInstrumentPrice(ctx, "AAPL", d("1.00"))

	err := ms.Seed(ctx, []model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: d("185.00")},
	}, d("100000"))
	if err != nil {
		t.Fatalf("re-seed failed: %v", err)
	}

	balance, _ := ms.GetBalance(ctx)
	if !balance.Equal(d("50000")) {
		t.Errorf("re-seed overwrote balance: %s", balance)
	}
	inst, _ := ms.GetInstrument(ctx, "AAPL")
	if !inst.Price.Equal(d("1.00")) {
		t.Errorf("re-seed overwrote price: %s", inst.Price)
	}
}

func TestGetBalance_UnseededIsError(t *testing.T) {
	ms := NewMemoryStore()
	_, err := ms.GetBalance(context.Background())
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAtomic_RollsBackAllState(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := ms.Atomic(ctx, func(tx Store) error {
		if err := tx.SetBalance(ctx, d("1")); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, model.Position{Symbol: "AAPL", Quantity: 100, AvgCost: d("10.00")}); err != nil {
			return err
		}
		if err := tx.InsertLedgerEntry(ctx, &model.LedgerEntry{ID: "x", Side: model.SideBuy, Symbol: "AAPL"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	balance, _ := ms.GetBalance(ctx)
	if !balance.Equal(d("100000")) {
		t.Errorf("balance not rolled back: %s", balance)
	}
	if _, err := ms.GetPosition(ctx, "AAPL"); !errors.Is(err, ErrPositionNotFound) {
		t.Error("position not rolled back")
	}
	if n, _ := ms.CountLedgerEntries(ctx); n != 0 {
		t.Errorf("ledger not rolled back: %d entries", n)
	}
}

func TestAtomic_CommitsOnSuccess(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()

	err := ms.Atomic(ctx, func(tx Store) error {
		if err := tx.SetBalance(ctx, d("99000")); err != nil {
			return err
		}
		return tx.UpsertPosition(ctx, model.Position{Symbol: "AAPL", Quantity: 100, AvgCost: d("10.00")})
	})
	if err != nil {
		t.Fatalf("atomic failed: %v", err)
	}

	balance, _ := ms.GetBalance(ctx)
	if !balance.Equal(d("99000")) {
		t.Errorf("balance not committed: %s", balance)
	}
	pos, err := ms.GetPosition(ctx, "AAPL")
	if err != nil || pos.Quantity != 100 {
		t.Errorf("position not committed: %v %v", pos, err)
	}
}

func TestListLedgerEntries_NewestFirst(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		ms.InsertLedgerEntry(ctx, &model.LedgerEntry{ID: id, Side: model.SideBuy, Symbol: "AAPL"})
	}

	entries, _ := ms.ListLedgerEntries(ctx, 0, 2)
	if len(entries) != 2 || entries[0].ID != "d" || entries[1].ID != "c" {
		t.Errorf("expected [d c], got %v", entries)
	}

	entries, _ = ms.ListLedgerEntries(ctx, 2, 10)
	if len(entries) != 2 || entries[0].ID != "b" || entries[1].ID != "a" {
		t.Errorf("expected [b a], got %v", entries)
	}

	entries, _ = ms.ListLedgerEntries(ctx, 10, 10)
	if len(entries) != 0 {
		t.Errorf("expected empty page past end, got %d", len(entries))
	}
}

func TestGetSnapshot_Consistent(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()

	ms.Atomic(ctx, func(tx Store) error {
		tx.SetBalance(ctx, d("90000"))
		return tx.UpsertPosition(ctx, model.Position{Symbol: "MSFT", Quantity: 200, AvgCost: d("50.00")})
	})

	snap, err := ms.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !snap.Balance.Equal(d("90000")) {
		t.Errorf("expected balance=90000, got %s", snap.Balance)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Symbol != "MSFT" {
		t.Errorf("unexpected positions: %v", snap.Positions)
	}
	if len(snap.Instruments) != 2 {
		t.Errorf("expected 2 instruments, got %d", len(snap.Instruments))
	}
}
