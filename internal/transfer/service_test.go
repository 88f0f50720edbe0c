package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletconnector/internal/backend"
	"github.com/congo-pay/walletconnector/internal/journal"
	"github.com/congo-pay/walletconnector/internal/logging"
	"github.com/congo-pay/walletconnector/internal/wallet"
)

const (
	sender    = "0x1111111111111111111111111111111111111111"
	recipient = "0x2222222222222222222222222222222222222222"
	txHash    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

var fiveEth = new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))

type fakeProvider struct {
	sends   atomic.Int32
	sendErr error
	// eventErr makes the handle report an error instead of acceptance.
	eventErr error
	// silent leaves the handle open without events.
	silent bool
	gate   chan struct{}

	mu   sync.Mutex
	last wallet.TxDescriptor
}

func (p *fakeProvider) RequestAccounts(context.Context) ([]string, error) {
	return []string{sender}, nil
}

func (p *fakeProvider) SendTransaction(_ context.Context, tx wallet.TxDescriptor) (*wallet.TxHandle, error) {
	p.sends.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.last = tx
	p.mu.Unlock()
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	h := wallet.NewTxHandle()
	switch {
	case p.silent:
	case p.eventErr != nil:
		h.Emit(wallet.Event{Kind: wallet.EventError, Err: p.eventErr})
		h.Close()
	default:
		h.Emit(wallet.Event{Kind: wallet.EventAccepted, Hash: ecommon.HexToHash(txHash)})
		h.Close()
	}
	return h, nil
}

func (p *fakeProvider) lastTx() wallet.TxDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

type fakeChain struct {
	calls atomic.Int32
}

func (c *fakeChain) BalanceAt(context.Context, string) (*big.Int, error) {
	return new(big.Int).Set(fiveEth), nil
}

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.calls.Add(1)
	return big.NewInt(1_000_000_000), nil
}

type fakeRecipient struct {
	calls atomic.Int32
	err   error
}

func (r *fakeRecipient) Resolve(context.Context) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return recipient, nil
}

type fakeOracle struct {
	calls atomic.Int32
	price decimal.Decimal
	err   error
}

func (o *fakeOracle) USDPrice(context.Context, string) (decimal.Decimal, error) {
	o.calls.Add(1)
	return o.price, o.err
}

type fakeStore struct {
	calls   atomic.Int32
	mu      sync.Mutex
	records []backend.Record
	result  backend.StoreResult
	err     error
}

func (s *fakeStore) StoreData(_ context.Context, rec backend.Record) (backend.StoreResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return s.result, s.err
}

type harness struct {
	provider  *fakeProvider
	chain     *fakeChain
	recipient *fakeRecipient
	oracle    *fakeOracle
	store     *fakeStore
	journal   journal.Journal
	manager   *wallet.Manager
	orch      *Orchestrator
}

func newHarness(t *testing.T, connect bool, mutate func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		provider:  &fakeProvider{},
		chain:     &fakeChain{},
		recipient: &fakeRecipient{},
		oracle:    &fakeOracle{price: decimal.RequireFromString("2000")},
		store:     &fakeStore{result: backend.StoreResult{RecipientBalance: "11.5"}},
		journal:   journal.NewInMemory(),
	}
	if mutate != nil {
		mutate(h)
	}
	var provider wallet.Provider
	if h.provider != nil {
		provider = h.provider
	}
	h.manager = wallet.NewManager(provider, h.chain, logging.Discard())
	if connect {
		_, err := h.manager.Connect(context.Background())
		require.NoError(t, err)
	}
	orch, err := NewOrchestrator(Config{ConfirmationTimeout: time.Second}, Deps{
		Wallet:    h.manager,
		Recipient: h.recipient,
		Chain:     h.chain,
		Oracle:    h.oracle,
		Backend:   h.store,
		Journal:   h.journal,
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) externalCalls() int32 {
	sends := int32(0)
	if h.provider != nil {
		sends = h.provider.sends.Load()
	}
	return sends + h.chain.calls.Load() + h.recipient.calls.Load() + h.oracle.calls.Load() + h.store.calls.Load()
}

func TestSubmitInvalidAmountMakesNoCalls(t *testing.T) {
	for _, raw := range []string{"", "   ", "0", "-1", "abc", "NaN", "Infinity", "1.2.3", "0.0000000000000000001", "1e9999999", "1e60"} {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t, true, nil)

			_, err := h.orch.Submit(context.Background(), raw)

			var failure *Error
			require.ErrorAs(t, err, &failure)
			require.Equal(t, ReasonInvalidAmount, failure.Reason)
			require.False(t, failure.Sent())
			require.Zero(t, h.externalCalls())
			require.Equal(t, raw, h.orch.Snapshot().PendingAmount)
			require.Equal(t, StateIdle, h.orch.Snapshot().State)
		})
	}
}

func TestSubmitCompletesAndRecords(t *testing.T) {
	h := newHarness(t, true, nil)

	out, err := h.orch.Submit(context.Background(), "1.5")
	require.NoError(t, err)

	require.Equal(t, ecommon.HexToHash(txHash).Hex(), out.TxHash)
	require.Equal(t, "3000.0000", out.FiatValue)
	require.Equal(t, "11.5", out.RecipientBalance)

	tx := h.provider.lastTx()
	require.Equal(t, sender, tx.From)
	require.Equal(t, recipient, tx.To)
	require.Equal(t, uint64(DefaultGasLimit), tx.Gas)
	require.Equal(t, "1500000000000000000", tx.Value.String())

	require.Len(t, h.store.records, 1)
	require.Equal(t, backend.Record{
		From:    sender,
		Amount:  "1.5",
		Balance: "5",
		Dollar:  "3000.0000",
		TxHash:  out.TxHash,
	}, h.store.records[0])

	snap := h.orch.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.PendingAmount)
	require.NotNil(t, snap.LastOutcome)
	require.Nil(t, snap.LastError)

	entry, err := h.journal.Get(context.Background(), out.TxHash)
	require.NoError(t, err)
	require.Equal(t, journal.StatusRecorded, entry.Status)
	require.Equal(t, recipient, entry.To)
}

func TestSubmitSendsRecordBodyToBackend(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"data":{"balanceEth":"42"}}`))
	}))
	defer srv.Close()

	h := newHarness(t, true, nil)
	orch, err := NewOrchestrator(Config{}, Deps{
		Wallet:    h.manager,
		Recipient: h.recipient,
		Chain:     h.chain,
		Oracle:    h.oracle,
		Backend:   backend.New(srv.URL, 2*time.Second),
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)

	out, err := orch.Submit(context.Background(), " 1.5 ")
	require.NoError(t, err)
	require.Equal(t, "42", out.RecipientBalance)
	require.Equal(t, map[string]any{
		"from":    sender,
		"amount":  "1.5",
		"balance": "5",
		"dollar":  "3000.0000",
		"txHash":  out.TxHash,
	}, <-bodies)
}

func TestSubmitWithoutProvider(t *testing.T) {
	h := newHarness(t, false, func(h *harness) { h.provider = nil })

	_, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonProviderUnavailable, failure.Reason)
	require.ErrorIs(t, err, wallet.ErrProviderUnavailable)
	require.Zero(t, h.externalCalls())
}

func TestSubmitWhileDisconnected(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonSubmissionRejected, failure.Reason)
	require.ErrorIs(t, err, wallet.ErrNotConnected)
	require.Zero(t, h.externalCalls())
}

func TestSubmitRecipientUnavailable(t *testing.T) {
	h := newHarness(t, true, func(h *harness) { h.recipient.err = errors.New("backend down") })

	_, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonRecipientUnavailable, failure.Reason)
	require.Zero(t, h.provider.sends.Load())
	require.Equal(t, "1", h.orch.Snapshot().PendingAmount)
}

func TestSubmitRejectedKeepsPendingAmount(t *testing.T) {
	for name, mutate := range map[string]func(h *harness){
		"send error":  func(h *harness) { h.provider.sendErr = errors.New("user denied transaction signature") },
		"event error": func(h *harness) { h.provider.eventErr = errors.New("insufficient funds for gas") },
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, true, mutate)

			_, err := h.orch.Submit(context.Background(), "2.25")

			var failure *Error
			require.ErrorAs(t, err, &failure)
			require.Equal(t, ReasonSubmissionRejected, failure.Reason)
			require.False(t, failure.Sent())
			require.Zero(t, h.oracle.calls.Load())
			require.Zero(t, h.store.calls.Load())

			snap := h.orch.Snapshot()
			require.Equal(t, StateIdle, snap.State)
			require.Equal(t, "2.25", snap.PendingAmount)
			require.Nil(t, snap.LastOutcome)
		})
	}
}

func TestRetryResubmitsPendingAmount(t *testing.T) {
	h := newHarness(t, true, func(h *harness) { h.provider.sendErr = errors.New("denied") })

	_, err := h.orch.Submit(context.Background(), "0.75")
	require.Error(t, err)

	h.provider.sendErr = nil
	out, err := h.orch.Retry(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.75", out.Amount)
	require.Equal(t, "1500.0000", out.FiatValue)
	require.Empty(t, h.orch.Snapshot().PendingAmount)
}

func TestSubmitAcceptanceTimeout(t *testing.T) {
	h := newHarness(t, true, func(h *harness) { h.provider.silent = true })
	h.orch.cfg.ConfirmationTimeout = 20 * time.Millisecond

	_, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonNetworkError, failure.Reason)
	require.Zero(t, h.store.calls.Load())
}

func TestSubmitPriceUnavailableStillRecords(t *testing.T) {
	h := newHarness(t, true, func(h *harness) { h.oracle.err = errors.New("rate limited") })

	out, err := h.orch.Submit(context.Background(), "1.5")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonPriceUnavailable, failure.Reason)
	require.True(t, failure.Sent())
	require.Equal(t, out.TxHash, failure.TxHash)
	require.Contains(t, failure.Error(), "transfer sent")

	require.EqualValues(t, 1, h.store.calls.Load())
	require.Empty(t, h.store.records[0].Dollar)
	require.Empty(t, out.FiatValue)

	snap := h.orch.Snapshot()
	require.Empty(t, snap.PendingAmount)
	require.NotNil(t, snap.LastOutcome)

	entry, err := h.journal.Get(context.Background(), out.TxHash)
	require.NoError(t, err)
	require.Equal(t, journal.StatusRecordedWithoutPrice, entry.Status)
}

func TestSubmitBackendRejectedSurfacesMessage(t *testing.T) {
	h := newHarness(t, true, func(h *harness) { h.store.err = &backend.RejectedError{Message: "X"} })

	out, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonBackendRejected, failure.Reason)
	require.Equal(t, "X", failure.Message())
	require.Equal(t, out.TxHash, failure.TxHash)
	require.NotEmpty(t, failure.TxHash)

	entry, err := h.journal.Get(context.Background(), out.TxHash)
	require.NoError(t, err)
	require.Equal(t, journal.StatusBackendRejected, entry.Status)
	require.Equal(t, "X", entry.Detail)
}

func TestSubmitBackendUnreachable(t *testing.T) {
	h := newHarness(t, true, func(h *harness) {
		h.store.err = backend.ErrUnreachable
		h.oracle.err = errors.New("oracle down")
	})

	_, err := h.orch.Submit(context.Background(), "1")

	var failure *Error
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReasonNetworkError, failure.Reason)
	require.True(t, failure.Sent())
	require.ErrorIs(t, err, backend.ErrUnreachable)
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, true, func(h *harness) { h.provider.gate = gate })

	states, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Submit(context.Background(), "1")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.orch.Snapshot().State == StateSubmitting
	}, time.Second, time.Millisecond)

	_, err := h.orch.Submit(context.Background(), "2")
	require.ErrorIs(t, err, ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, h.provider.sends.Load())

	var seen []State
	for len(states) > 0 {
		seen = append(seen, <-states)
	}
	require.Equal(t, []State{
		StateValidating,
		StateSubmitting,
		StateAwaitingConfirmation,
		StateConverting,
		StateRecording,
		StateCompleted,
		StateIdle,
	}, seen)
}

func TestNewOrchestratorRequiresDeps(t *testing.T) {
	_, err := NewOrchestrator(Config{}, Deps{})
	require.Error(t, err)
}
