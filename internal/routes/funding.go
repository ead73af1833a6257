package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/funding"
)

// RegisterFundingRoutes wires multisig deposit endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/multisig/:wallet/deposits", h.Deposit)
}
