// Package store defines the persistence interface for the settlement
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

var (
	// ErrInstrumentNotFound is returned when a symbol is not in the catalog.
	ErrInstrumentNotFound = errors.New("store: instrument not found")

	// ErrPositionNotFound is returned when no open position exists for a symbol.
	ErrPositionNotFound = errors.New("store: position not found")

	// ErrAccountNotFound is returned when the account row is missing. After
	// seeding this indicates an infrastructure fault, never a fresh account.
	ErrAccountNotFound = errors.New("store: account not found")
)

// Snapshot is a consistent read of all settlement state: the balance and
// positions observed together with the prices used to value them.
type Snapshot struct {
	Balance     decimal.Decimal
	Positions   []model.Position
	Instruments []model.Instrument
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. The four durable collections
// are instruments, the single-row account, positions keyed by symbol, and
// the append-only ledger.
type Store interface {
	// --- Price catalog ---

	// GetInstrument retrieves one catalog entry by symbol.
	GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error)

	// ListInstruments returns the full catalog, ordered by symbol.
	ListInstruments(ctx context.Context) ([]model.Instrument, error)

	// UpdateInstrumentPrice overwrites one instrument's current price.
	UpdateInstrumentPrice(ctx context.Context, symbol string, price decimal.Decimal) error

	// --- Cash account ---

	// GetBalance reads the account balance. Inside Atomic the row is
	// locked for the duration of the transaction.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// SetBalance writes the account balance.
	SetBalance(ctx context.Context, balance decimal.Decimal) error

	// --- Position book ---

	// GetPosition retrieves the open position for a symbol.
	GetPosition(ctx context.Context, symbol string) (*model.Position, error)

	// ListPositions returns all open positions, ordered by symbol.
	ListPositions(ctx context.Context) ([]model.Position, error)

	// UpsertPosition creates or replaces the position for its symbol.
	UpsertPosition(ctx context.Context, pos model.Position) error

	// DeletePosition removes the position for a symbol.
	DeletePosition(ctx context.Context, symbol string) error

	// --- Immutable ledger ---

	// InsertLedgerEntry appends an immutable trade record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// ListLedgerEntries returns entries newest first, ties broken by
	// insertion order, with offset/limit paging.
	ListLedgerEntries(ctx context.Context, offset, limit int) ([]model.LedgerEntry, error)

	// CountLedgerEntries returns the total number of ledger entries.
	CountLedgerEntries(ctx context.Context) (int64, error)

	// --- Lifecycle and consistency ---

	// Seed initializes the catalog and account once. Idempotent: existing
	// rows win on restart.
	Seed(ctx context.Context, instruments []model.Instrument, initialBalance decimal.Decimal) error

	// Atomic runs fn against a transactional view of the store. All writes
	// made by fn become visible together on success; on error none do.
	Atomic(ctx context.Context, fn func(Store) error) error

	// GetSnapshot returns a consistent read of balance, positions, and
	// catalog prices. Read-only callers must use it rather than composing
	// individual reads.
	GetSnapshot(ctx context.Context) (*Snapshot, error)
}
