package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/settlement-engine/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// statement methods serve pooled and transactional execution.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool // nil when the store is bound to a transaction
	inTx bool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

// EnsureSchema creates the durable collections if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS instruments (
			symbol TEXT PRIMARY KEY,
			name   TEXT NOT NULL,
			price  NUMERIC NOT NULL CHECK (price > 0)
		);
		CREATE TABLE IF NOT EXISTS account (
			id      INT PRIMARY KEY CHECK (id = 1),
			balance NUMERIC NOT NULL CHECK (balance >= 0)
		);
		CREATE TABLE IF NOT EXISTS positions (
			symbol   TEXT PRIMARY KEY,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			avg_cost NUMERIC NOT NULL CHECK (avg_cost > 0)
		);
		CREATE TABLE IF NOT EXISTS ledger_entries (
			seq         BIGSERIAL PRIMARY KEY,
			id          UUID NOT NULL UNIQUE,
			side        TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
			symbol      TEXT NOT NULL,
			name        TEXT NOT NULL,
			quantity    BIGINT NOT NULL,
			price       NUMERIC NOT NULL,
			notional    NUMERIC NOT NULL,
			profit_loss NUMERIC,
			ts          TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_ts
			ON ledger_entries (ts DESC, seq DESC);
	`)
	return err
}

func (s *PostgresStore) Seed(ctx context.Context, instruments []model.Instrument, initialBalance decimal.Decimal) error {
	for _, inst := range instruments {
		_, err := s.db.Exec(ctx,
			`INSERT INTO instruments (symbol, name, price)
			 VALUES ($1, $2, $3::NUMERIC)
			 ON CONFLICT (symbol) DO NOTHING`,
			inst.Symbol, inst.Name, inst.Price.String(),
		)
		if err != nil {
			return fmt.Errorf("seed instrument %s: %w", inst.Symbol, err)
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO account (id, balance)
		 VALUES (1, $1::NUMERIC)
		 ON CONFLICT (id) DO NOTHING`,
		initialBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	return nil
}

// --- Price catalog ---

func (s *PostgresStore) GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	var inst model.Instrument
	var price string

	err := s.db.QueryRow(ctx,
		`SELECT symbol, name, price::TEXT FROM instruments WHERE symbol = $1`, symbol).
		Scan(&inst.Symbol, &inst.Name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument %s: %w", symbol, err)
	}

	inst.Price, _ = decimal.NewFromString(price)
	return &inst, nil
}

func (s *PostgresStore) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.Query(ctx,
		`SELECT symbol, name, price::TEXT FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		var price string
		if err := rows.Scan(&inst.Symbol, &inst.Name, &price); err != nil {
			return nil, err
		}
		inst.Price, _ = decimal.NewFromString(price)
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

func (s *PostgresStore) UpdateInstrumentPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE instruments SET price = $2::NUMERIC WHERE symbol = $1`,
		symbol, price.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	return nil
}

// --- Cash account ---

func (s *PostgresStore) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	q := `SELECT balance::TEXT FROM account WHERE id = 1`
	if s.inTx {
		// Row lock serializes concurrent settlements at the database.
		q += ` FOR UPDATE`
	}

	var balance string
	err := s.db.QueryRow(ctx, q).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	b, _ := decimal.NewFromString(balance)
	return b, nil
}

func (s *PostgresStore) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE account SET balance = $1::NUMERIC WHERE id = 1`,
		balance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// --- Position book ---

func (s *PostgresStore) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	q := `SELECT symbol, quantity, avg_cost::TEXT FROM positions WHERE symbol = $1`
	if s.inTx {
		q += ` FOR UPDATE`
	}

	var pos model.Position
	var avgCost string
	err := s.db.QueryRow(ctx, q, symbol).Scan(&pos.Symbol, &pos.Quantity, &avgCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", symbol, err)
	}

	pos.AvgCost, _ = decimal.NewFromString(avgCost)
	return &pos, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.Query(ctx,
		`SELECT symbol, quantity, avg_cost::TEXT FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var pos model.Position
		var avgCost string
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &avgCost); err != nil {
			return nil, err
		}
		pos.AvgCost, _ = decimal.NewFromString(avgCost)
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, pos model.Position) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO positions (symbol, quantity, avg_cost)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (symbol) DO UPDATE
		 SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost`,
		pos.Symbol, pos.Quantity, pos.AvgCost.String(),
	)
	return err
}

func (s *PostgresStore) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol)
	return err
}

// --- Immutable ledger ---

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	var pnl *string
	if e.ProfitLoss != nil {
		v := e.ProfitLoss.String()
		pnl = &v
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_entries (id, side, symbol, name, quantity, price, notional, profit_loss, ts)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		e.ID, e.Side, e.Symbol, e.Name, e.Quantity,
		e.Price.String(), e.Notional.String(), pnl, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListLedgerEntries(ctx context.Context, offset, limit int) ([]model.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::TEXT, side, symbol, name, quantity,
		        price::TEXT, notional::TEXT, profit_loss::TEXT, ts
		 FROM ledger_entries
		 ORDER BY ts DESC, seq DESC
		 OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var priceS, notionalS string
		var pnlS *string

		if err := rows.Scan(&e.ID, &e.Side, &e.Symbol, &e.Name, &e.Quantity,
			&priceS, &notionalS, &pnlS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Price, _ = decimal.NewFromString(priceS)
		e.Notional, _ = decimal.NewFromString(notionalS)
		if pnlS != nil {
			pnl, _ := decimal.NewFromString(*pnlS)
			e.ProfitLoss = &pnl
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountLedgerEntries(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n)
	return n, err
}

// --- Transactions and snapshots ---

func (s *PostgresStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	txStore := &PostgresStore{db: tx, inTx: true}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSnapshot reads balance, positions, and the catalog inside one
// REPEATABLE READ transaction so paired writes are never observed torn.
func (s *PostgresStore) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	if s.inTx {
		return s.snapshotReads(ctx, s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	snap, err := s.snapshotReads(ctx, &PostgresStore{db: tx})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) snapshotReads(ctx context.Context, st Store) (*Snapshot, error) {
	balance, err := st.GetBalance(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := st.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	instruments, err := st.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Balance: balance, Positions: positions, Instruments: instruments}, nil
}
