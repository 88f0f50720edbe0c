package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletconnector/internal/transfer"
)

// RegisterTransferRoutes wires transfer submission and journal endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler, limiter fiber.Handler) {
	r.Post("/transfers", limiter, h.Submit)
	r.Post("/transfers/retry", limiter, h.Retry)
	r.Get("/transfers/state", h.State)
	r.Get("/transfers/events", h.Events)
	r.Get("/transfers", h.List)
	r.Get("/transfers/:hash", h.Get)
}
