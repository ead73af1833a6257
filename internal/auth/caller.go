package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/principal"
)

const (
	callerKey = "caller"
	userIDKey = "user_id"
)

// SetCaller records the authenticated principal on the request.
func SetCaller(c *fiber.Ctx, user string, addr principal.Address) {
	c.Locals(userIDKey, user)
	c.Locals(callerKey, addr)
}

// Caller returns the authenticated principal's signing address.
func Caller(c *fiber.Ctx) (principal.Address, bool) {
	addr, ok := c.Locals(callerKey).(principal.Address)
	return addr, ok && !addr.IsZero()
}

// UserID returns the authenticated user identifier.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
