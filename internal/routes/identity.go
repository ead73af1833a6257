package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/auth"
	"github.com/congo-pay/multisig/internal/identity"
	"github.com/congo-pay/multisig/internal/multisig"
)

// RegisterIdentityRoutes wires public identity endpoints.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Phone    string `json:"phone"`
			PIN      string `json:"pin"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
		if err != nil {
			if errors.Is(err, identity.ErrUserExists) {
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("address", user.Address.String()),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":   user.ID,
			"address":   user.Address,
			"phone":     user.Phone,
			"tier":      user.Tier,
			"device_id": user.DeviceID,
		})
	})
}

// RegisterProfileRoute exposes the caller's profile and the wallets they take part in.
func RegisterProfileRoute(r fiber.Router, idRepo identity.Repository, wallets *multisig.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		uid := auth.UserID(c)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		user, err := idRepo.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		mine, err := wallets.WalletsOf(c.UserContext(), user.Address)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "internal error")
		}
		addrs := make([]string, 0, len(mine))
		for _, w := range mine {
			addrs = append(addrs, w.Address.String())
		}
		return c.JSON(fiber.Map{
			"user_id":       user.ID,
			"address":       user.Address,
			"phone":         user.Phone,
			"tier":          user.Tier,
			"device_id":     user.DeviceID,
			"token_version": user.TokenVersion,
			"created_at":    user.CreatedAt,
			"wallets":       addrs,
		})
	})
}
