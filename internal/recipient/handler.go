package recipient

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the recipient address.
type Handler struct {
	resolver *Resolver
}

// NewHandler builds a recipient HTTP handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Get returns the recipient, fetching it if it is not cached yet.
func (h *Handler) Get(c *fiber.Ctx) error {
	addr, err := h.resolver.Resolve(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"address": addr})
}

// Refresh forces a new lookup.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	addr, err := h.resolver.Refresh(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"address": addr})
}
