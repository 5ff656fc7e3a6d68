package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the price catalog. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Settlement state (balance, positions, ledger) is never cached:
// it must always reflect the last committed settlement.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	data, err := s.rdb.Get(ctx, instrumentKey(symbol)).Bytes()
	if err == nil {
		var inst model.Instrument
		if json.Unmarshal(data, &inst) == nil {
			return &inst, nil
		}
	}

	inst, err := s.primary.GetInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cacheInstrument(ctx, inst)
	return inst, nil
}

func (s *CachedStore) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	data, err := s.rdb.Get(ctx, catalogKey).Bytes()
	if err == nil {
		var instruments []model.Instrument
		if json.Unmarshal(data, &instruments) == nil {
			return instruments, nil
		}
	}

	instruments, err := s.primary.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(instruments); err == nil {
		s.rdb.Set(ctx, catalogKey, data, s.ttl)
	}
	return instruments, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpdateInstrumentPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if err := s.primary.UpdateInstrumentPrice(ctx, symbol, price); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, instrumentKey(symbol), catalogKey)
	return nil
}

func (s *CachedStore) Seed(ctx context.Context, instruments []model.Instrument, initialBalance decimal.Decimal) error {
	if err := s.primary.Seed(ctx, instruments, initialBalance); err != nil {
		return err
	}
	s.rdb.Del(ctx, catalogKey)
	return nil
}

// --- Passthrough (settlement state, never cached) ---

func (s *CachedStore) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.primary.GetBalance(ctx)
}

func (s *CachedStore) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	return s.primary.SetBalance(ctx, balance)
}

func (s *CachedStore) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, symbol)
}

func (s *CachedStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	return s.primary.ListPositions(ctx)
}

func (s *CachedStore) UpsertPosition(ctx context.Context, pos model.Position) error {
	return s.primary.UpsertPosition(ctx, pos)
}

func (s *CachedStore) DeletePosition(ctx context.Context, symbol string) error {
	return s.primary.DeletePosition(ctx, symbol)
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

func (s *CachedStore) ListLedgerEntries(ctx context.Context, offset, limit int) ([]model.LedgerEntry, error) {
	return s.primary.ListLedgerEntries(ctx, offset, limit)
}

func (s *CachedStore) CountLedgerEntries(ctx context.Context) (int64, error) {
	return s.primary.CountLedgerEntries(ctx)
}

// Atomic runs against the primary's transactional view; the callback must
// see uncached state.
func (s *CachedStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.primary.Atomic(ctx, fn)
}

func (s *CachedStore) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	return s.primary.GetSnapshot(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheInstrument(ctx context.Context, inst *model.Instrument) {
	if data, err := json.Marshal(inst); err == nil {
		s.rdb.Set(ctx, instrumentKey(inst.Symbol), data, s.ttl)
	}
}

const catalogKey = "instruments:all"

func instrumentKey(symbol string) string { return fmt.Sprintf("instrument:%s", symbol) }
