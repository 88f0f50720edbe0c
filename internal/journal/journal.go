// Package journal keeps a local audit trail of every transfer that reached
// the network, including the ones whose backend record failed.
package journal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no entry exists for a transaction hash.
	ErrNotFound = errors.New("journal entry not found")
	// ErrDuplicate is returned when an entry for the transaction hash already exists.
	ErrDuplicate = errors.New("journal entry exists")
)

// Status describes how far bookkeeping of a broadcast transfer got.
type Status string

const (
	// StatusRecorded means the backend stored the record with a fiat value.
	StatusRecorded Status = "recorded"
	// StatusRecordedWithoutPrice means the backend stored the record without a fiat value.
	StatusRecordedWithoutPrice Status = "recorded_without_price"
	// StatusBackendRejected means the backend explicitly refused the record.
	StatusBackendRejected Status = "backend_rejected"
	// StatusBackendUnreachable means the record never reached the backend.
	StatusBackendUnreachable Status = "backend_unreachable"
)

// Entry is one broadcast transfer.
type Entry struct {
	ID               string
	TxHash           string
	From             string
	To               string
	Amount           string
	AmountWei        string
	BalanceAtSubmit  string
	FiatValue        string
	RecipientBalance string
	Status           Status
	Detail           string
	CreatedAt        time.Time
}

// Journal is implemented by the journal backends.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Get(ctx context.Context, txHash string) (Entry, error)
	ListByAccount(ctx context.Context, from string, limit int) ([]Entry, error)
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
