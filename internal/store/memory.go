package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	seeded      bool
	balance     decimal.Decimal
	instruments map[string]*model.Instrument
	positions   map[string]*model.Position
	ledger      []model.LedgerEntry

	// FailLedgerAppend, when set, makes the next InsertLedgerEntry fail
	// with the given error. Test hook for the rollback path.
	FailLedgerAppend error
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instruments: make(map[string]*model.Instrument),
		positions:   make(map[string]*model.Position),
	}
}

func (s *MemoryStore) Seed(_ context.Context, instruments []model.Instrument, initialBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range instruments {
		if _, ok := s.instruments[inst.Symbol]; !ok {
			copy := inst
			s.instruments[inst.Symbol] = &copy
		}
	}
	if !s.seeded {
		s.balance = initialBalance
		s.seeded = true
	}
	return nil
}

// --- Price catalog ---

func (s *MemoryStore) GetInstrument(_ context.Context, symbol string) (*model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInstrumentLocked(symbol)
}

func (s *MemoryStore) getInstrumentLocked(symbol string) (*model.Instrument, error) {
	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	copy := *inst
	return &copy, nil
}

func (s *MemoryStore) ListInstruments(_ context.Context) ([]model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInstrumentsLocked(), nil
}

func (s *MemoryStore) listInstrumentsLocked() []model.Instrument {
	instruments := make([]model.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		instruments = append(instruments, *inst)
	}
	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i].Symbol < instruments[j].Symbol
	})
	return instruments
}

func (s *MemoryStore) UpdateInstrumentPrice(_ context.Context, symbol string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateInstrumentPriceLocked(symbol, price)
}

func (s *MemoryStore) updateInstrumentPriceLocked(symbol string, price decimal.Decimal) error {
	inst, ok := s.instruments[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	inst.Price = price
	return nil
}

// --- Cash account ---

func (s *MemoryStore) GetBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBalanceLocked()
}

func (s *MemoryStore) getBalanceLocked() (decimal.Decimal, error) {
	if !s.seeded {
		return decimal.Zero, ErrAccountNotFound
	}
	return s.balance, nil
}

func (s *MemoryStore) SetBalance(_ context.Context, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBalanceLocked(balance)
}

func (s *MemoryStore) setBalanceLocked(balance decimal.Decimal) error {
	if !s.seeded {
		return ErrAccountNotFound
	}
	s.balance = balance
	return nil
}

// --- Position book ---

func (s *MemoryStore) GetPosition(_ context.Context, symbol string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPositionLocked(symbol)
}

func (s *MemoryStore) getPositionLocked(symbol string) (*model.Position, error) {
	pos, ok := s.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	copy := *pos
	return &copy, nil
}

func (s *MemoryStore) ListPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPositionsLocked(), nil
}

func (s *MemoryStore) listPositionsLocked() []model.Position {
	positions := make([]model.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

func (s *MemoryStore) UpsertPosition(_ context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertPositionLocked(pos)
	return nil
}

func (s *MemoryStore) upsertPositionLocked(pos model.Position) {
	copy := pos
	s.positions[pos.Symbol] = &copy
}

func (s *MemoryStore) DeletePosition(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
	return nil
}

// --- Immutable ledger ---

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLedgerEntryLocked(entry)
}

func (s *MemoryStore) insertLedgerEntryLocked(entry *model.LedgerEntry) error {
	if s.FailLedgerAppend != nil {
		err := s.FailLedgerAppend
		s.FailLedgerAppend = nil
		return err
	}
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) ListLedgerEntries(_ context.Context, offset, limit int) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLedgerEntriesLocked(offset, limit), nil
}

// listLedgerEntriesLocked returns newest first; the slice preserves
// insertion order, so iterate from the tail.
func (s *MemoryStore) listLedgerEntriesLocked(offset, limit int) []model.LedgerEntry {
	n := len(s.ledger)
	if offset >= n || limit <= 0 {
		return nil
	}
	var entries []model.LedgerEntry
	for i := n - 1 - offset; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, s.ledger[i])
	}
	return entries
}

func (s *MemoryStore) CountLedgerEntries(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ledger)), nil
}

// --- Transactions and snapshots ---

// Atomic holds the write lock for the whole callback and restores a
// snapshot of all state if fn fails, so no partial mutation survives.
func (s *MemoryStore) Atomic(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.cloneLocked()
	if err := fn(&memoryTx{s: s}); err != nil {
		s.restoreLocked(undo)
		return err
	}
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, err := s.getBalanceLocked()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Balance:     balance,
		Positions:   s.listPositionsLocked(),
		Instruments: s.listInstrumentsLocked(),
	}, nil
}

type memState struct {
	balance     decimal.Decimal
	instruments map[string]*model.Instrument
	positions   map[string]*model.Position
	ledgerLen   int
}

func (s *MemoryStore) cloneLocked() memState {
	st := memState{
		balance:     s.balance,
		instruments: make(map[string]*model.Instrument, len(s.instruments)),
		positions:   make(map[string]*model.Position, len(s.positions)),
		ledgerLen:   len(s.ledger),
	}
	for k, v := range s.instruments {
		copy := *v
		st.instruments[k] = &copy
	}
	for k, v := range s.positions {
		copy := *v
		st.positions[k] = &copy
	}
	return st
}

func (s *MemoryStore) restoreLocked(st memState) {
	s.balance = st.balance
	s.instruments = st.instruments
	s.positions = st.positions
	s.ledger = s.ledger[:st.ledgerLen]
}

// memoryTx exposes the locked mutators to an Atomic callback. The outer
// MemoryStore already holds the write lock, so these must not re-lock.
type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) GetInstrument(_ context.Context, symbol string) (*model.Instrument, error) {
	return t.s.getInstrumentLocked(symbol)
}

func (t *memoryTx) ListInstruments(_ context.Context) ([]model.Instrument, error) {
	return t.s.listInstrumentsLocked(), nil
}

func (t *memoryTx) UpdateInstrumentPrice(_ context.Context, symbol string, price decimal.Decimal) error {
	return t.s.updateInstrumentPriceLocked(symbol, price)
}

func (t *memoryTx) GetBalance(_ context.Context) (decimal.Decimal, error) {
	return t.s.getBalanceLocked()
}

func (t *memoryTx) SetBalance(_ context.Context, balance decimal.Decimal) error {
	return t.s.setBalanceLocked(balance)
}

func (t *memoryTx) GetPosition(_ context.Context, symbol string) (*model.Position, error) {
	return t.s.getPositionLocked(symbol)
}

func (t *memoryTx) ListPositions(_ context.Context) ([]model.Position, error) {
	return t.s.listPositionsLocked(), nil
}

func (t *memoryTx) UpsertPosition(_ context.Context, pos model.Position) error {
	t.s.upsertPositionLocked(pos)
	return nil
}

func (t *memoryTx) DeletePosition(_ context.Context, symbol string) error {
	delete(t.s.positions, symbol)
	return nil
}

func (t *memoryTx) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	return t.s.insertLedgerEntryLocked(entry)
}

func (t *memoryTx) ListLedgerEntries(_ context.Context, offset, limit int) ([]model.LedgerEntry, error) {
	return t.s.listLedgerEntriesLocked(offset, limit), nil
}

func (t *memoryTx) CountLedgerEntries(_ context.Context) (int64, error) {
	return int64(len(t.s.ledger)), nil
}

func (t *memoryTx) Seed(_ context.Context, _ []model.Instrument, _ decimal.Decimal) error {
	return fmt.Errorf("store: seed inside transaction not supported")
}

func (t *memoryTx) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *memoryTx) GetSnapshot(_ context.Context) (*Snapshot, error) {
	balance, err := t.s.getBalanceLocked()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Balance:     balance,
		Positions:   t.s.listPositionsLocked(),
		Instruments: t.s.listInstrumentsLocked(),
	}, nil
}
