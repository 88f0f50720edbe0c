package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/congo-pay/walletconnector/internal/amount"
	"github.com/congo-pay/walletconnector/internal/chain"
	"github.com/congo-pay/walletconnector/internal/metrics"
)

var (
	// ErrProviderUnavailable means no wallet provider is configured in this environment.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrConnectionRejected means the provider refused or failed account authorization.
	ErrConnectionRejected = errors.New("wallet connection rejected")
	// ErrBalanceUnavailable means the chain could not report the account balance.
	ErrBalanceUnavailable = errors.New("wallet balance unavailable")
	// ErrNotConnected is returned when an operation needs a connected account.
	ErrNotConnected = errors.New("wallet not connected")
)

// Manager owns the wallet session. Only Connect mutates it.
type Manager struct {
	provider Provider
	chain    chain.Reader
	logger   *slog.Logger

	mu      sync.RWMutex
	session Session
}

// NewManager builds a session manager. provider may be nil when no wallet is
// present; Connect then fails with ErrProviderUnavailable.
func NewManager(provider Provider, reader chain.Reader, logger *slog.Logger) *Manager {
	return &Manager{provider: provider, chain: reader, logger: logger}
}

// Available reports whether a wallet provider is present.
func (m *Manager) Available() bool {
	return m.provider != nil
}

// Connect requests account authorization and loads the first account's
// balance. The session is replaced only when both steps succeed.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	if m.provider == nil {
		return Session{}, ErrProviderUnavailable
	}

	var accounts []string
	err := metrics.ObserveCall(metrics.CallRequestAccounts, func() error {
		var err error
		accounts, err = m.provider.RequestAccounts(ctx)
		return err
	})
	if err != nil {
		m.logger.Warn("wallet authorization failed", "error", err)
		return Session{}, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return Session{}, fmt.Errorf("%w: no accounts authorized", ErrConnectionRejected)
	}
	account := accounts[0]

	var wei *big.Int
	err = metrics.ObserveCall(metrics.CallBalance, func() error {
		var err error
		wei, err = m.chain.BalanceAt(ctx, account)
		return err
	})
	if err != nil {
		m.logger.Warn("wallet balance lookup failed", "account", account, "error", err)
		return Session{}, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	session := Session{
		Account:     account,
		BalanceWei:  wei,
		Balance:     amount.FromBaseUnits(wei, amount.NativeDecimals),
		ConnectedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.logger.Info("wallet connected", "account", session.Account, "balance", session.Balance)
	return session, nil
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.session
	if s.BalanceWei != nil {
		s.BalanceWei = new(big.Int).Set(s.BalanceWei)
	}
	return s
}

// CurrentAccount returns the connected account or "" before Connect succeeded.
func (m *Manager) CurrentAccount() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Account
}

// CurrentBalance returns the balance in native units as of connection time,
// or "" before Connect succeeded.
func (m *Manager) CurrentBalance() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Balance
}

// SendTransaction forwards tx to the wallet provider.
func (m *Manager) SendTransaction(ctx context.Context, tx TxDescriptor) (*TxHandle, error) {
	if m.provider == nil {
		return nil, ErrProviderUnavailable
	}
	return m.provider.SendTransaction(ctx, tx)
}
