package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/multisig"
)

// RegisterMultisigRoutes wires wallet, owner and proposal endpoints.
func RegisterMultisigRoutes(r fiber.Router, h *multisig.Handler) {
	h.Register(r)
}
