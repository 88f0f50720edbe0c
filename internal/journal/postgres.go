package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfer_journal (
    id                UUID PRIMARY KEY,
    tx_hash           TEXT NOT NULL UNIQUE,
    from_account      TEXT NOT NULL,
    to_account        TEXT NOT NULL,
    amount            TEXT NOT NULL,
    amount_wei        TEXT NOT NULL,
    balance_at_submit TEXT NOT NULL,
    fiat_value        TEXT NOT NULL DEFAULT '',
    recipient_balance TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    detail            TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_journal_from_idx ON transfer_journal (from_account, created_at DESC);`

const selectColumns = `SELECT id, tx_hash, from_account, to_account, amount, amount_wei, balance_at_submit,
        fiat_value, recipient_balance, status, detail, created_at FROM transfer_journal`

// PostgresJournal stores entries in PostgreSQL.
type PostgresJournal struct {
	db *pgxpool.Pool
}

// NewPostgresJournal constructs a Postgres-backed journal.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// EnsureSchema creates the journal table when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Record inserts an entry keyed by its transaction hash.
func (j *PostgresJournal) Record(ctx context.Context, entry Entry) error {
	id := uuid.New()
	if entry.ID != "" {
		parsed, err := uuid.Parse(entry.ID)
		if err != nil {
			return err
		}
		id = parsed
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tag, err := j.db.Exec(ctx, `INSERT INTO transfer_journal (id, tx_hash, from_account, to_account, amount, amount_wei,
        balance_at_submit, fiat_value, recipient_balance, status, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (tx_hash) DO NOTHING`,
		id, strings.ToLower(entry.TxHash), strings.ToLower(entry.From), strings.ToLower(entry.To), entry.Amount, entry.AmountWei,
		entry.BalanceAtSubmit, entry.FiatValue, entry.RecipientBalance, string(entry.Status), entry.Detail, createdAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

// Get fetches an entry by transaction hash.
func (j *PostgresJournal) Get(ctx context.Context, txHash string) (Entry, error) {
	row := j.db.QueryRow(ctx, selectColumns+` WHERE tx_hash = $1`, strings.ToLower(txHash))
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// ListByAccount returns the newest entries of an account, or of all accounts when from is empty.
func (j *PostgresJournal) ListByAccount(ctx context.Context, from string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if from == "" {
		rows, err = j.db.Query(ctx, selectColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = j.db.Query(ctx, selectColumns+` WHERE from_account = $1 ORDER BY created_at DESC LIMIT $2`, strings.ToLower(from), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e      Entry
		id     uuid.UUID
		status string
	)
	if err := row.Scan(&id, &e.TxHash, &e.From, &e.To, &e.Amount, &e.AmountWei, &e.BalanceAtSubmit,
		&e.FiatValue, &e.RecipientBalance, &status, &e.Detail, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.ID = id.String()
	e.Status = Status(status)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
