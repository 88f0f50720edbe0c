package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletconnector/internal/recipient"
)

// RegisterRecipientRoutes wires recipient lookup endpoints.
func RegisterRecipientRoutes(r fiber.Router, h *recipient.Handler) {
	r.Get("/recipient", h.Get)
	r.Post("/recipient/refresh", h.Refresh)
}
