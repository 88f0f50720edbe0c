package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletconnector/internal/journal"
)

// Handler exposes transfer endpoints.
type Handler struct {
	orchestrator *Orchestrator
	journal      journal.Journal
}

// NewHandler constructs a transfer handler.
func NewHandler(orchestrator *Orchestrator, j journal.Journal) *Handler {
	return &Handler{orchestrator: orchestrator, journal: j}
}

type submitRequest struct {
	Amount string `json:"amount"`
}

type outcomeResponse struct {
	TxHash           string    `json:"tx_hash"`
	Amount           string    `json:"amount"`
	FiatValue        string    `json:"fiat_value,omitempty"`
	RecipientBalance string    `json:"recipient_balance,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

type failureResponse struct {
	Reason       Reason `json:"reason"`
	Message      string `json:"message"`
	TxHash       string `json:"tx_hash,omitempty"`
	TransferSent bool   `json:"transfer_sent"`
}

type stateResponse struct {
	State         State            `json:"state"`
	PendingAmount string           `json:"pending_amount,omitempty"`
	LastOutcome   *outcomeResponse `json:"last_outcome,omitempty"`
	LastError     *failureResponse `json:"last_error,omitempty"`
}

type entryResponse struct {
	TxHash           string    `json:"tx_hash"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	Amount           string    `json:"amount"`
	AmountWei        string    `json:"amount_wei"`
	BalanceAtSubmit  string    `json:"balance_at_submit"`
	FiatValue        string    `json:"fiat_value,omitempty"`
	RecipientBalance string    `json:"recipient_balance,omitempty"`
	Status           string    `json:"status"`
	Detail           string    `json:"detail,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toOutcome(o Outcome) outcomeResponse {
	return outcomeResponse(o)
}

func toFailure(e *Error) failureResponse {
	return failureResponse{Reason: e.Reason, Message: e.Message(), TxHash: e.TxHash, TransferSent: e.Sent()}
}

func toEntry(e journal.Entry) entryResponse {
	return entryResponse{
		TxHash:           e.TxHash,
		From:             e.From,
		To:               e.To,
		Amount:           e.Amount,
		AmountWei:        e.AmountWei,
		BalanceAtSubmit:  e.BalanceAtSubmit,
		FiatValue:        e.FiatValue,
		RecipientBalance: e.RecipientBalance,
		Status:           string(e.Status),
		Detail:           e.Detail,
		CreatedAt:        e.CreatedAt,
	}
}

// Submit runs a transfer for the requested amount.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	outcome, err := h.orchestrator.Submit(c.UserContext(), req.Amount)
	return h.respond(c, outcome, err)
}

// Retry resubmits the amount preserved from the last failed attempt.
func (h *Handler) Retry(c *fiber.Ctx) error {
	outcome, err := h.orchestrator.Retry(c.UserContext())
	return h.respond(c, outcome, err)
}

func (h *Handler) respond(c *fiber.Ctx, outcome Outcome, err error) error {
	if err == nil {
		return c.Status(http.StatusCreated).JSON(toOutcome(outcome))
	}
	if errors.Is(err, ErrBusy) {
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	var failure *Error
	if !errors.As(err, &failure) {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(statusFor(failure.Reason)).JSON(toFailure(failure))
}

func statusFor(reason Reason) int {
	switch reason {
	case ReasonInvalidAmount:
		return http.StatusBadRequest
	case ReasonProviderUnavailable:
		return http.StatusServiceUnavailable
	case ReasonConnectionRejected, ReasonSubmissionRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// State returns the orchestrator snapshot.
func (h *Handler) State(c *fiber.Ctx) error {
	snap := h.orchestrator.Snapshot()
	resp := stateResponse{State: snap.State, PendingAmount: snap.PendingAmount}
	if snap.LastOutcome != nil {
		o := toOutcome(*snap.LastOutcome)
		resp.LastOutcome = &o
	}
	if snap.LastError != nil {
		f := toFailure(snap.LastError)
		resp.LastError = &f
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// eventKeepAlive is how often an idle state stream writes a comment line,
// which also detects clients that went away.
const eventKeepAlive = 15 * time.Second

// Events streams state transitions as server-sent events. The stream opens
// with the current state and ends once an attempt settles back to idle.
func (h *Handler) Events(c *fiber.Ctx) error {
	states, unsubscribe := h.orchestrator.Subscribe()
	current := h.orchestrator.Snapshot().State

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		streamStates(w, current, states, eventKeepAlive)
	})
	return nil
}

func streamStates(w *bufio.Writer, current State, states <-chan State, keepAlive time.Duration) {
	if writeEvent(w, current) != nil {
		return
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case s, ok := <-states:
			if !ok || writeEvent(w, s) != nil || s == StateIdle {
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			if w.Flush() != nil {
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, s State) error {
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", s); err != nil {
		return err
	}
	return w.Flush()
}

// List returns journal entries for an account, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	from := c.Query("from")
	if from == "" {
		return fiber.NewError(http.StatusBadRequest, "from query parameter is required")
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries, err := h.journal.ListByAccount(c.UserContext(), from, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntry(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transfers": out})
}

// Get returns the journal entry for a transaction hash.
func (h *Handler) Get(c *fiber.Ctx) error {
	entry, err := h.journal.Get(c.UserContext(), c.Params("hash"))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transfer not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toEntry(entry))
}
