// Package trade provides the settlement engine and the HTTP handlers for
// executing trades, managing catalog prices, and querying the portfolio
// and transaction ledger.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/instrument"
	"github.com/papertrade/settlement-engine/internal/metrics"
	"github.com/papertrade/settlement-engine/internal/model"
	"github.com/papertrade/settlement-engine/internal/portfolio"
	"github.com/papertrade/settlement-engine/internal/risk"
	"github.com/papertrade/settlement-engine/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Service handles trades against the single account. A mutex serializes
// settlement execution (single-instance); the store's Atomic boundary
// guards against partial writes on persistence failure.
type Service struct {
	store   store.Store
	limiter *risk.PositionLimiter
	mu      sync.Mutex
	hub     *Hub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service. Pass nil for hub if WebSocket
// broadcasting is not needed; pass nil for limiter to disable risk limits.
func NewService(st store.Store, limiter *risk.PositionLimiter, hub *Hub) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		hub:     hub,
	}
}

// --- Request/Response types ---

// TradeResponse is the JSON body returned from the trade endpoints: the
// committed ledger entry plus the resulting cash balance.
type TradeResponse struct {
	Entry   model.LedgerEntry `json:"entry"`
	Balance decimal.Decimal   `json:"balance"`
}

// SetPriceRequest is the JSON body for PUT /prices/{symbol}.
type SetPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// TransactionsResponse is the paged ledger listing, newest first.
type TransactionsResponse struct {
	Entries []model.LedgerEntry `json:"entries"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Total   int64               `json:"total"`
}

// --- HTTP Handlers ---

// HandleBuy handles POST /api/v1/trade/buy
func (s *Service) HandleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.SideBuy, s.Buy)
}

// HandleSell handles POST /api/v1/trade/sell
func (s *Service) HandleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.SideSell, s.Sell)
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request, side string,
	settle func(context.Context, TradeRequest) (*model.LedgerEntry, decimal.Decimal, error),
) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	start := time.Now()
	entry, balance, err := settle(r.Context(), req)
	if err != nil {
		status, code := errorStatus(err)
		metrics.SettlementRejections.WithLabelValues(code).Inc()
		writeError(w, status, code, err.Error())
		return
	}

	metrics.SettlementsTotal.WithLabelValues(side).Inc()
	metrics.SettlementLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())
	metrics.CashBalance.Set(balance.InexactFloat64())

	slog.Info("trade settled",
		"id", entry.ID,
		"side", entry.Side,
		"symbol", entry.Symbol,
		"qty", entry.Quantity,
		"price", entry.Price.String(),
		"notional", entry.Notional.String(),
		"balance", balance.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "trade_settled",
			Symbol:   entry.Symbol,
			Side:     entry.Side,
			Quantity: entry.Quantity,
			Price:    entry.Price.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{Entry: *entry, Balance: balance})
}

// ListPrices handles GET /api/v1/prices
func (s *Service) ListPrices(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.store.ListInstruments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list instruments")
		return
	}
	if instruments == nil {
		instruments = []model.Instrument{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(instruments)
}

// SetPrice handles PUT /api/v1/prices/{symbol}
func (s *Service) SetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if err := instrument.ValidatePrice(req.Price); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_price", err.Error())
		return
	}

	ctx := r.Context()
	if err := s.store.UpdateInstrumentPrice(ctx, symbol, req.Price); err != nil {
		if errors.Is(err, store.ErrInstrumentNotFound) {
			writeError(w, http.StatusNotFound, "unknown_instrument", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to update price")
		return
	}

	inst, err := s.store.GetInstrument(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to read updated instrument")
		return
	}

	slog.Info("price updated", "symbol", symbol, "price", req.Price.String())

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:   "price_updated",
			Symbol: symbol,
			Price:  req.Price.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(inst)
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load portfolio")
		return
	}

	view := portfolio.Compute(snap.Balance, snap.Positions, snap.Instruments)
	metrics.OpenPositions.Set(float64(len(view.Holdings)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// GetTransactions handles GET /api/v1/transactions?page=&limit=
// Entries are returned newest first.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	ctx := r.Context()
	entries, err := s.store.ListLedgerEntries(ctx, (page-1)*limit, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list transactions")
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	total, err := s.store.CountLedgerEntries(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to count transactions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransactionsResponse{
		Entries: entries,
		Page:    page,
		Limit:   limit,
		Total:   total,
	})
}

// --- Helpers ---

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// errorStatus maps a settlement error to an HTTP status and a stable
// machine-readable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, ErrInvalidPrice):
		return http.StatusBadRequest, "invalid_price"
	case errors.Is(err, ErrUnknownInstrument):
		return http.StatusNotFound, "unknown_instrument"
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, ErrInsufficientPosition):
		return http.StatusConflict, "insufficient_position"
	case errors.Is(err, risk.ErrPositionLimitExceeded),
		errors.Is(err, risk.ErrExposureLimitExceeded):
		return http.StatusConflict, "position_limit"
	default:
		return http.StatusInternalServerError, "commit_failed"
	}
}

// writeError writes a JSON error response with a machine-readable code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
