package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/walletconnector/internal/logging"
)

// Provider is the wallet capability: it authorizes accounts and signs and
// broadcasts transactions on the user's behalf.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	SendTransaction(ctx context.Context, tx TxDescriptor) (*TxHandle, error)
}

const (
	defaultPollInterval   = 2 * time.Second
	defaultReceiptTimeout = 10 * time.Minute
)

// ProviderOptions tunes receipt watching for the built-in providers.
type ProviderOptions struct {
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	Logger         *slog.Logger
}

func (o ProviderOptions) withDefaults() ProviderOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = defaultReceiptTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}
