package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
}

// RegisterLogoutRoute wires logout behind authentication.
func RegisterLogoutRoute(r fiber.Router, h *auth.Handler) {
	r.Post("/auth/logout", h.Logout)
}
