package wallet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind names a transaction lifecycle event.
type EventKind int

const (
	// EventAccepted is emitted once the network accepted the transaction; it carries the hash.
	EventAccepted EventKind = iota + 1
	// EventReceipt is emitted when the transaction was mined.
	EventReceipt
	// EventError is emitted when the provider reports a terminal failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventReceipt:
		return "receipt"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification.
type Event struct {
	Kind    EventKind
	Hash    ecommon.Hash
	Receipt *types.Receipt
	Err     error
}

// TxHandle delivers lifecycle events of one submitted transaction. The
// channel is closed after the last event.
type TxHandle struct {
	events chan Event
	once   sync.Once
}

// NewTxHandle returns an open handle. Providers emit into it; consumers read Events.
func NewTxHandle() *TxHandle {
	return &TxHandle{events: make(chan Event, 4)}
}

// Events returns the lifecycle event stream.
func (h *TxHandle) Events() <-chan Event {
	return h.events
}

// Emit publishes an event. It never blocks: events past the buffer are
// dropped, since consumers only need the first terminal ones.
func (h *TxHandle) Emit(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}

// Close ends the event stream.
func (h *TxHandle) Close() {
	h.once.Do(func() { close(h.events) })
}

// ErrReceiptTimeout is emitted when no receipt shows up within the watch window.
var ErrReceiptTimeout = errors.New("timed out waiting for receipt")

// ErrTransactionReverted is emitted when the mined transaction failed.
var ErrTransactionReverted = errors.New("transaction reverted")

type receiptFunc func(ctx context.Context, hash ecommon.Hash) (*types.Receipt, error)

// watchReceipt polls for the receipt of hash and emits the terminal event.
func watchReceipt(hash ecommon.Hash, fetch receiptFunc, interval, timeout time.Duration, handle *TxHandle, logger *slog.Logger) {
	defer handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			handle.Emit(Event{Kind: EventError, Hash: hash, Err: ErrReceiptTimeout})
			return
		case <-ticker.C:
			receipt, err := fetch(ctx, hash)
			if err != nil {
				logger.Debug("receipt poll failed", "tx_hash", hash.Hex(), "error", err)
				continue
			}
			if receipt == nil {
				continue
			}
			handle.Emit(Event{Kind: EventReceipt, Hash: hash, Receipt: receipt})
			if receipt.Status == types.ReceiptStatusFailed {
				handle.Emit(Event{Kind: EventError, Hash: hash, Err: ErrTransactionReverted})
			}
			return
		}
	}
}
