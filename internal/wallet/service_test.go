package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/congo-pay/walletconnector/internal/logging"
)

const account = "0x1111111111111111111111111111111111111111"

type stubProvider struct {
	accounts []string
	err      error
}

func (p *stubProvider) RequestAccounts(context.Context) ([]string, error) {
	return p.accounts, p.err
}

func (p *stubProvider) SendTransaction(context.Context, TxDescriptor) (*TxHandle, error) {
	return NewTxHandle(), nil
}

type stubChain struct {
	balance *big.Int
	err     error
}

func (c *stubChain) BalanceAt(context.Context, string) (*big.Int, error) {
	return c.balance, c.err
}

func (c *stubChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func TestConnectLoadsSession(t *testing.T) {
	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	m := NewManager(&stubProvider{accounts: []string{account, "0x2"}}, &stubChain{balance: wei}, logging.Discard())

	session, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.Account != account {
		t.Fatalf("expected first account %s, got %s", account, session.Account)
	}
	if session.Balance != "2.5" {
		t.Fatalf("expected balance 2.5, got %s", session.Balance)
	}
	if m.CurrentAccount() != account || m.CurrentBalance() != "2.5" {
		t.Fatalf("session not stored: %s %s", m.CurrentAccount(), m.CurrentBalance())
	}

	// Callers get a copy of the balance.
	got := m.Session()
	got.BalanceWei.SetInt64(0)
	if m.Session().BalanceWei.Cmp(wei) != 0 {
		t.Fatalf("session balance mutated through snapshot")
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	m := NewManager(nil, &stubChain{balance: big.NewInt(1)}, logging.Discard())
	if m.Available() {
		t.Fatalf("expected provider to be unavailable")
	}
	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := m.SendTransaction(context.Background(), TxDescriptor{}); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable on send, got %v", err)
	}
}

func TestConnectRejected(t *testing.T) {
	cases := map[string]*stubProvider{
		"refused":     {err: errors.New("user rejected the request")},
		"no accounts": {},
	}
	for name, provider := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewManager(provider, &stubChain{balance: big.NewInt(1)}, logging.Discard())
			if _, err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionRejected) {
				t.Fatalf("expected ErrConnectionRejected, got %v", err)
			}
			if m.Session().Connected() {
				t.Fatalf("session should stay disconnected")
			}
		})
	}
}

func TestConnectBalanceFailureKeepsPreviousSession(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(1_000_000_000_000_000_000)}
	provider := &stubProvider{accounts: []string{account}}
	m := NewManager(provider, chain, logging.Discard())

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("first connect: %v", err)
	}

	provider.accounts = []string{"0x3333333333333333333333333333333333333333"}
	chain.err = errors.New("node unavailable")
	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrBalanceUnavailable) {
		t.Fatalf("expected ErrBalanceUnavailable, got %v", err)
	}

	session := m.Session()
	if session.Account != account || session.Balance != "1" {
		t.Fatalf("expected previous session to survive, got %+v", session)
	}
}
