package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletconnector/internal/wallet"
)

// RegisterSessionRoutes wires wallet session endpoints.
func RegisterSessionRoutes(r fiber.Router, h *wallet.Handler, limiter fiber.Handler) {
	r.Post("/session/connect", limiter, h.Connect)
	r.Get("/session", h.Session)
}
