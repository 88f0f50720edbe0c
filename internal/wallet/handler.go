package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet session endpoints.
type Handler struct {
	manager *Manager
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

type sessionResponse struct {
	Connected   bool       `json:"connected"`
	Account     string     `json:"account"`
	Balance     string     `json:"balance"`
	BalanceWei  string     `json:"balance_wei"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

func toResponse(s Session) sessionResponse {
	resp := sessionResponse{Connected: s.Connected(), Account: s.Account, Balance: s.Balance}
	if s.BalanceWei != nil {
		resp.BalanceWei = s.BalanceWei.String()
	}
	if !s.ConnectedAt.IsZero() {
		at := s.ConnectedAt
		resp.ConnectedAt = &at
	}
	return resp
}

// Connect authorizes the wallet and returns the new session.
func (h *Handler) Connect(c *fiber.Ctx) error {
	session, err := h.manager.Connect(c.UserContext())
	if err != nil {
		switch {
		case errors.Is(err, ErrProviderUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "no wallet provider available, install or configure a wallet to continue")
		case errors.Is(err, ErrConnectionRejected):
			return fiber.NewError(http.StatusForbidden, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(toResponse(session))
}

// Session returns the current session without contacting the wallet.
func (h *Handler) Session(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(toResponse(h.manager.Session()))
}
