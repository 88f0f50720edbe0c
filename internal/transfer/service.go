package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletconnector/internal/amount"
	"github.com/congo-pay/walletconnector/internal/backend"
	"github.com/congo-pay/walletconnector/internal/chain"
	"github.com/congo-pay/walletconnector/internal/journal"
	"github.com/congo-pay/walletconnector/internal/metrics"
	"github.com/congo-pay/walletconnector/internal/notification"
	"github.com/congo-pay/walletconnector/internal/oracle"
	"github.com/congo-pay/walletconnector/internal/wallet"
)

const (
	// DefaultGasLimit covers a plain value transfer.
	DefaultGasLimit = 21000
	// DefaultFiatDecimals is the display precision of the fiat estimate.
	DefaultFiatDecimals = 4
)

// RecipientSource yields the destination address.
type RecipientSource interface {
	Resolve(ctx context.Context) (string, error)
}

// PriceOracle quotes the native asset in USD.
type PriceOracle interface {
	USDPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// RecordStore persists a broadcast transfer with the backend.
type RecordStore interface {
	StoreData(ctx context.Context, rec backend.Record) (backend.StoreResult, error)
}

// Config holds the fixed transfer parameters.
type Config struct {
	GasLimit     uint64
	FiatDecimals int32
	PriceAsset   string
	// ConfirmationTimeout bounds the wait for network acceptance. Zero waits forever.
	ConfirmationTimeout time.Duration
}

// Deps are the collaborators of the orchestrator. Journal and Notifier are optional.
type Deps struct {
	Wallet    *wallet.Manager
	Recipient RecipientSource
	Chain     chain.Reader
	Oracle    PriceOracle
	Backend   RecordStore
	Journal   journal.Journal
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// Outcome is the result of one attempt that reached the network.
type Outcome struct {
	TxHash           string
	Amount           string
	FiatValue        string
	RecipientBalance string
	CompletedAt      time.Time
}

// Snapshot is the observable orchestrator state.
type Snapshot struct {
	State         State
	PendingAmount string
	LastOutcome   *Outcome
	LastError     *Error
}

// Orchestrator runs one transfer attempt at a time through validation,
// submission, acceptance, fiat conversion and recording.
type Orchestrator struct {
	cfg Config
	d   Deps

	mu          sync.Mutex
	state       State
	pending     string
	lastOutcome *Outcome
	lastError   *Error
	subscribers map[int]chan State
	nextSubID   int
}

// NewOrchestrator validates dependencies and applies defaults.
func NewOrchestrator(cfg Config, d Deps) (*Orchestrator, error) {
	switch {
	case d.Wallet == nil:
		return nil, fmt.Errorf("wallet manager is required")
	case d.Recipient == nil:
		return nil, fmt.Errorf("recipient source is required")
	case d.Chain == nil:
		return nil, fmt.Errorf("chain reader is required")
	case d.Oracle == nil:
		return nil, fmt.Errorf("price oracle is required")
	case d.Backend == nil:
		return nil, fmt.Errorf("record store is required")
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.FiatDecimals <= 0 {
		cfg.FiatDecimals = DefaultFiatDecimals
	}
	if cfg.PriceAsset == "" {
		cfg.PriceAsset = oracle.DefaultAsset
	}
	if d.Journal == nil {
		d.Journal = journal.NewInMemory()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	return &Orchestrator{cfg: cfg, d: d, subscribers: make(map[int]chan State)}, nil
}

// Snapshot returns the current state for polling observers.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{State: o.state, PendingAmount: o.pending, LastOutcome: o.lastOutcome, LastError: o.lastError}
}

// Subscribe streams state transitions. Slow subscribers miss transitions
// rather than stalling the attempt. Call the returned func to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	ch := make(chan State, 16)
	o.subscribers[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if sub, ok := o.subscribers[id]; ok {
			delete(o.subscribers, id)
			close(sub)
		}
	}
}

// Retry submits the preserved pending amount again.
func (o *Orchestrator) Retry(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	raw := o.pending
	o.mu.Unlock()
	return o.Submit(ctx, raw)
}

// Submit runs a full transfer attempt for a raw amount in native units. It
// returns ErrBusy when another attempt is running, otherwise a *Error on
// failure. A failure after broadcast still returns the partial Outcome.
func (o *Orchestrator) Submit(ctx context.Context, raw string) (Outcome, error) {
	if err := o.begin(raw); err != nil {
		return Outcome{}, err
	}

	outcome, failure := o.run(ctx, raw)
	o.finish(ctx, outcome, failure)
	if failure != nil {
		return outcome, failure
	}
	return outcome, nil
}

func (o *Orchestrator) begin(raw string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}
	o.pending = raw
	o.lastOutcome = nil
	o.lastError = nil
	o.setStateLocked(StateValidating)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, raw string) (Outcome, *Error) {
	logger := o.d.Logger.With("attempt_id", uuid.NewString())

	amt, err := amount.Parse(raw)
	if err != nil {
		return Outcome{}, &Error{Reason: ReasonInvalidAmount, Err: err}
	}
	wei, err := amount.ToBaseUnits(amt, amount.NativeDecimals)
	if err != nil {
		return Outcome{}, &Error{Reason: ReasonInvalidAmount, Err: err}
	}
	if !o.d.Wallet.Available() {
		return Outcome{}, &Error{Reason: ReasonProviderUnavailable, Err: wallet.ErrProviderUnavailable}
	}
	session := o.d.Wallet.Session()
	if !session.Connected() {
		return Outcome{}, &Error{Reason: ReasonSubmissionRejected, Err: wallet.ErrNotConnected}
	}

	// Past this point the attempt runs to Completed or Failed.
	ctx = context.WithoutCancel(ctx)

	to, err := o.d.Recipient.Resolve(ctx)
	if err != nil {
		return Outcome{}, &Error{Reason: ReasonRecipientUnavailable, Err: err}
	}

	var gasPrice *big.Int
	err = metrics.ObserveCall(metrics.CallGasPrice, func() error {
		var err error
		gasPrice, err = o.d.Chain.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return Outcome{}, &Error{Reason: ReasonNetworkError, Err: err}
	}

	desc := wallet.TxDescriptor{
		From:     session.Account,
		To:       to,
		Value:    wei,
		Gas:      o.cfg.GasLimit,
		GasPrice: gasPrice,
	}
	logger.Debug("submitting transfer", "from", desc.From, "to", desc.To, "value_wei", wei.String(), "gas_price", gasPrice.String())

	o.setState(StateSubmitting)
	var handle *wallet.TxHandle
	err = metrics.ObserveCall(metrics.CallSendTransaction, func() error {
		var err error
		handle, err = o.d.Wallet.SendTransaction(ctx, desc)
		return err
	})
	if err != nil {
		if errors.Is(err, wallet.ErrProviderUnavailable) {
			return Outcome{}, &Error{Reason: ReasonProviderUnavailable, Err: err}
		}
		return Outcome{}, &Error{Reason: ReasonSubmissionRejected, Err: err}
	}

	o.setState(StateAwaitingConfirmation)
	hash, failure := o.awaitAccepted(handle)
	if failure != nil {
		return Outcome{}, failure
	}
	logger = logger.With("tx_hash", hash)
	logger.Info("transfer accepted by network")
	go o.watch(handle, logger)

	outcome := Outcome{TxHash: hash, Amount: strings.TrimSpace(raw)}

	o.setState(StateConverting)
	var price decimal.Decimal
	priceErr := metrics.ObserveCall(metrics.CallPrice, func() error {
		var err error
		price, err = o.d.Oracle.USDPrice(ctx, o.cfg.PriceAsset)
		return err
	})
	if priceErr != nil {
		logger.Warn("price lookup failed, recording without fiat value", "error", priceErr)
	} else {
		outcome.FiatValue = amount.Fiat(amt, price, o.cfg.FiatDecimals)
	}

	o.setState(StateRecording)
	var res backend.StoreResult
	storeErr := metrics.ObserveCall(metrics.CallStoreData, func() error {
		var err error
		res, err = o.d.Backend.StoreData(ctx, backend.Record{
			From:    session.Account,
			Amount:  outcome.Amount,
			Balance: session.Balance,
			Dollar:  outcome.FiatValue,
			TxHash:  hash,
		})
		return err
	})
	outcome.RecipientBalance = res.RecipientBalance
	outcome.CompletedAt = time.Now().UTC()

	failure = classifyBookkeeping(hash, priceErr, storeErr)
	o.journal(ctx, logger, session, to, wei, outcome, failure)
	return outcome, failure
}

// awaitAccepted blocks until the handle reports network acceptance, an
// error, or the confirmation timeout.
func (o *Orchestrator) awaitAccepted(handle *wallet.TxHandle) (string, *Error) {
	var timeout <-chan time.Time
	if o.cfg.ConfirmationTimeout > 0 {
		timer := time.NewTimer(o.cfg.ConfirmationTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case ev, ok := <-handle.Events():
			if !ok {
				return "", &Error{Reason: ReasonSubmissionRejected, Err: errors.New("wallet closed the transaction without a hash")}
			}
			switch ev.Kind {
			case wallet.EventAccepted, wallet.EventReceipt:
				return ev.Hash.Hex(), nil
			case wallet.EventError:
				return "", &Error{Reason: ReasonSubmissionRejected, Err: ev.Err}
			}
		case <-timeout:
			return "", &Error{
				Reason: ReasonNetworkError,
				Err:    fmt.Errorf("no network acceptance within %s, the transaction may still be broadcast", o.cfg.ConfirmationTimeout),
			}
		}
	}
}

// watch follows the remaining lifecycle events for logging only. The attempt
// does not wait for finality.
func (o *Orchestrator) watch(handle *wallet.TxHandle, logger *slog.Logger) {
	for ev := range handle.Events() {
		switch ev.Kind {
		case wallet.EventReceipt:
			if ev.Receipt != nil {
				logger.Info("transfer mined", "block", ev.Receipt.BlockNumber, "status", ev.Receipt.Status)
			}
		case wallet.EventError:
			logger.Warn("transfer failed after network acceptance", "error", ev.Err)
		}
	}
}

func classifyBookkeeping(hash string, priceErr, storeErr error) *Error {
	if storeErr != nil {
		var rejected *backend.RejectedError
		f := &Error{Reason: ReasonNetworkError, TxHash: hash, Err: storeErr}
		if errors.As(storeErr, &rejected) {
			f.Reason = ReasonBackendRejected
			f.Detail = rejected.Message
		}
		if priceErr != nil {
			f.Err = errors.Join(storeErr, priceErr)
		}
		return f
	}
	if priceErr != nil {
		return &Error{Reason: ReasonPriceUnavailable, TxHash: hash, Err: priceErr}
	}
	return nil
}

func (o *Orchestrator) journal(ctx context.Context, logger *slog.Logger, session wallet.Session, to string, wei *big.Int, outcome Outcome, failure *Error) {
	entry := journal.Entry{
		ID:               uuid.NewString(),
		TxHash:           outcome.TxHash,
		From:             session.Account,
		To:               to,
		Amount:           outcome.Amount,
		AmountWei:        wei.String(),
		BalanceAtSubmit:  session.Balance,
		FiatValue:        outcome.FiatValue,
		RecipientBalance: outcome.RecipientBalance,
		Status:           journal.StatusRecorded,
		CreatedAt:        outcome.CompletedAt,
	}
	if failure != nil {
		entry.Detail = failure.Message()
		switch failure.Reason {
		case ReasonPriceUnavailable:
			entry.Status = journal.StatusRecordedWithoutPrice
		case ReasonBackendRejected:
			entry.Status = journal.StatusBackendRejected
		default:
			entry.Status = journal.StatusBackendUnreachable
		}
	}
	if err := o.d.Journal.Record(ctx, entry); err != nil {
		logger.Error("journal write failed", "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, outcome Outcome, failure *Error) {
	o.mu.Lock()
	if failure == nil {
		o.lastOutcome = &outcome
		o.pending = ""
		o.setStateLocked(StateCompleted)
	} else {
		o.lastError = failure
		if failure.Sent() {
			o.lastOutcome = &outcome
			o.pending = ""
		}
		o.setStateLocked(StateFailed)
	}
	o.setStateLocked(StateIdle)
	o.mu.Unlock()

	account := o.d.Wallet.CurrentAccount()
	label := "completed"
	msg := notification.Message{Kind: notification.KindTransferCompleted, Destination: account, TxHash: outcome.TxHash}
	if failure == nil {
		msg.Body = fmt.Sprintf("Sent %s. Recipient balance: %s", outcome.Amount, outcome.RecipientBalance)
		o.d.Logger.Info("transfer completed", "tx_hash", outcome.TxHash, "fiat_value", outcome.FiatValue)
	} else {
		label = string(failure.Reason)
		msg.Body = failure.Error()
		if failure.Sent() {
			msg.Kind = notification.KindBookkeepingFailed
			o.d.Logger.Warn("transfer sent, bookkeeping failed", "tx_hash", failure.TxHash, "reason", failure.Reason, "error", failure.Err)
		} else {
			msg.Kind = notification.KindTransferNotSent
			o.d.Logger.Info("transfer not sent", "reason", failure.Reason, "error", failure.Err)
		}
	}
	metrics.ObserveTransfer(label)
	if err := o.d.Notifier.Send(ctx, msg); err != nil {
		o.d.Logger.Warn("notification failed", "error", err)
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setStateLocked(s)
}

func (o *Orchestrator) setStateLocked(s State) {
	o.state = s
	for _, ch := range o.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
