package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/costbasis"
	"github.com/papertrade/settlement-engine/internal/instrument"
	"github.com/papertrade/settlement-engine/internal/model"
	"github.com/papertrade/settlement-engine/internal/risk"
	"github.com/papertrade/settlement-engine/internal/store"
)

// TradeRequest is a parsed and validated trade request. Price is optional:
// nil means "execute at the current catalog price". decimal.Decimal
// accepts both JSON numbers and numeric strings, so the field has a single
// semantic type regardless of how the client encodes it.
type TradeRequest struct {
	Symbol   string           `json:"symbol"`
	Quantity int64            `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Buy settles a buy: it debits cash, creates or re-weights the position,
// and appends a ledger entry, all as one atomic unit. It returns the
// committed ledger entry and the resulting balance.
func (s *Service) Buy(ctx context.Context, req TradeRequest) (*model.LedgerEntry, decimal.Decimal, error) {
	if err := validateRequest(req); err != nil {
		return nil, decimal.Zero, err
	}

	// Serialize settlement: at most one in-flight read-modify-write.
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry *model.LedgerEntry
	var newBalance decimal.Decimal

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		inst, err := s.resolveInstrument(ctx, tx, req.Symbol)
		if err != nil {
			return err
		}

		execPrice := inst.Price
		if req.Price != nil {
			execPrice = *req.Price
		}
		cost := costbasis.Notional(execPrice, req.Quantity)

		balance, err := tx.GetBalance(ctx)
		if err != nil {
			return err
		}
		if balance.LessThan(cost) {
			return fmt.Errorf("%w: required %s, available %s",
				ErrInsufficientFunds, cost, balance)
		}

		positions, err := tx.ListPositions(ctx)
		if err != nil {
			return err
		}
		if err := s.limiter.CheckBuy(req.Symbol, req.Quantity, cost, positions); err != nil {
			return err
		}

		pos := model.Position{
			Symbol:   req.Symbol,
			Quantity: req.Quantity,
			AvgCost:  costbasis.RoundMoney(execPrice),
		}
		if old, err := tx.GetPosition(ctx, req.Symbol); err == nil {
			pos.Quantity = old.Quantity + req.Quantity
			pos.AvgCost = costbasis.BlendedAvgCost(old.AvgCost, old.Quantity, execPrice, req.Quantity)
		} else if !errors.Is(err, store.ErrPositionNotFound) {
			return err
		}

		newBalance = balance.Sub(cost)
		if err := tx.SetBalance(ctx, newBalance); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, pos); err != nil {
			return err
		}

		// Ledger entry goes last: its existence implies the preceding
		// state writes applied.
		entry = &model.LedgerEntry{
			ID:        uuid.New().String(),
			Side:      model.SideBuy,
			Symbol:    inst.Symbol,
			Name:      inst.Name,
			Quantity:  req.Quantity,
			Price:     execPrice,
			Notional:  cost,
			Timestamp: time.Now().UTC(),
		}
		return tx.InsertLedgerEntry(ctx, entry)
	})
	if err != nil {
		return nil, decimal.Zero, classify(err)
	}

	return entry, newBalance, nil
}

// Sell settles a sell: it credits cash, shrinks or deletes the position,
// and appends a ledger entry with realized P&L, all as one atomic unit.
func (s *Service) Sell(ctx context.Context, req TradeRequest) (*model.LedgerEntry, decimal.Decimal, error) {
	if err := validateRequest(req); err != nil {
		return nil, decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entry *model.LedgerEntry
	var newBalance decimal.Decimal

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		inst, err := s.resolveInstrument(ctx, tx, req.Symbol)
		if err != nil {
			return err
		}

		execPrice := inst.Price
		if req.Price != nil {
			execPrice = *req.Price
		}

		pos, err := tx.GetPosition(ctx, req.Symbol)
		if errors.Is(err, store.ErrPositionNotFound) {
			return fmt.Errorf("%w: held 0, requested %d", ErrInsufficientPosition, req.Quantity)
		}
		if err != nil {
			return err
		}
		if pos.Quantity < req.Quantity {
			return fmt.Errorf("%w: held %d, requested %d",
				ErrInsufficientPosition, pos.Quantity, req.Quantity)
		}

		revenue := costbasis.Notional(execPrice, req.Quantity)
		pnl := costbasis.RealizedPnL(execPrice, pos.AvgCost, req.Quantity)

		balance, err := tx.GetBalance(ctx)
		if err != nil {
			return err
		}
		newBalance = balance.Add(revenue)
		if err := tx.SetBalance(ctx, newBalance); err != nil {
			return err
		}

		if pos.Quantity == req.Quantity {
			if err := tx.DeletePosition(ctx, req.Symbol); err != nil {
				return err
			}
		} else {
			// Average cost is unchanged by a partial sell: realized gains
			// are computed against the pre-sale average and the remaining
			// lot keeps carrying it.
			pos.Quantity -= req.Quantity
			if err := tx.UpsertPosition(ctx, *pos); err != nil {
				return err
			}
		}

		entry = &model.LedgerEntry{
			ID:         uuid.New().String(),
			Side:       model.SideSell,
			Symbol:     inst.Symbol,
			Name:       inst.Name,
			Quantity:   req.Quantity,
			Price:      execPrice,
			Notional:   revenue,
			ProfitLoss: &pnl,
			Timestamp:  time.Now().UTC(),
		}
		return tx.InsertLedgerEntry(ctx, entry)
	})
	if err != nil {
		return nil, decimal.Zero, classify(err)
	}

	return entry, newBalance, nil
}

// validateRequest checks quantity and optional price before any state is
// touched.
func validateRequest(req TradeRequest) error {
	if req.Quantity <= 0 || req.Quantity%instrument.LotSize != 0 {
		return fmt.Errorf("%w (lot size %d): got %d",
			ErrInvalidQuantity, instrument.LotSize, req.Quantity)
	}
	if req.Price != nil {
		if err := instrument.ValidatePrice(*req.Price); err != nil {
			return fmt.Errorf("%w: got %s", ErrInvalidPrice, *req.Price)
		}
	}
	return nil
}

// resolveInstrument looks the symbol up in the catalog, enumerating the
// known symbols in the error to aid the caller.
func (s *Service) resolveInstrument(ctx context.Context, tx store.Store, symbol string) (*model.Instrument, error) {
	inst, err := tx.GetInstrument(ctx, symbol)
	if errors.Is(err, store.ErrInstrumentNotFound) {
		instruments, listErr := tx.ListInstruments(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
		}
		symbols := make([]string, 0, len(instruments))
		for _, i := range instruments {
			symbols = append(symbols, i.Symbol)
		}
		return nil, fmt.Errorf("%w: %s (known: %s)",
			ErrUnknownInstrument, symbol, strings.Join(symbols, ", "))
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// classify maps unexpected persistence failures to ErrCommitFailed while
// letting validation and business-rule errors through untouched.
func classify(err error) error {
	for _, known := range []error{
		ErrInvalidQuantity, ErrInvalidPrice, ErrUnknownInstrument,
		ErrInsufficientFunds, ErrInsufficientPosition,
		risk.ErrPositionLimitExceeded, risk.ErrExposureLimitExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrCommitFailed, err)
}
