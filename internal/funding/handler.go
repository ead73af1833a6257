package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/multisig"
	"github.com/congo-pay/multisig/internal/principal"
)

// Handler exposes HTTP endpoints for wallet deposits.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit credits a multisig wallet. A replayed client_tx_id returns 200
// with the current balance instead of crediting twice.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	addr, err := principal.Parse(c.Params("wallet"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Deposit(c.UserContext(), DepositInput{
		Wallet:     addr,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, multisig.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, multisig.ErrInvalidAmount):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "internal error")
		}
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.Status(status).JSON(toResponse(result))
}

func toResponse(r DepositResult) DepositResponse {
	return DepositResponse{
		TransactionID: r.TransactionID,
		Status:        r.Status,
		WalletBalance: r.WalletBalance,
		Duplicate:     r.Duplicate,
	}
}
