package multisig

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/auth"
	"github.com/congo-pay/multisig/internal/principal"
)

// Handler exposes multisig wallets over HTTP. Every route expects an
// authenticated caller.
type Handler struct {
	service *Service
}

// NewHandler constructs a multisig HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the wallet routes on r.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/multisig")
	g.Post("/", h.Create)
	g.Get("/", h.Mine)
	g.Get("/:wallet", h.Get)
	g.Get("/:wallet/owners", h.Owners)
	g.Post("/:wallet/owners", h.AddOwner)
	g.Delete("/:wallet/owners/:owner", h.RemoveOwner)
	g.Get("/:wallet/balance", h.Balance)
	g.Get("/:wallet/proposals", h.Pending)
	g.Get("/:wallet/history", h.History)
	g.Post("/:wallet/proposals", h.Propose)
	g.Post("/:wallet/proposals/:id/approve", h.Approve)
	g.Post("/:wallet/proposals/:id/execute", h.Execute)
	g.Post("/:wallet/proposals/:id/cancel", h.Cancel)
}

type createRequest struct {
	Owners    []principal.Address `json:"owners"`
	Threshold int                 `json:"threshold"`
	Category  string              `json:"category"`
	Nonce     uint64              `json:"nonce"`
}

type proposeRequest struct {
	Destination principal.Address `json:"destination"`
	Amount      uint64            `json:"amount"`
}

type executeRequest struct {
	Recipient principal.Address `json:"recipient"`
}

type ownerRequest struct {
	Owner principal.Address `json:"owner"`
}

// WalletResponse is the wire form of a wallet.
type WalletResponse struct {
	Address          principal.Address   `json:"address"`
	Creator          principal.Address   `json:"creator"`
	Nonce            uint64              `json:"nonce"`
	Category         Category            `json:"category"`
	Owners           []principal.Address `json:"owners"`
	Threshold        int                 `json:"threshold"`
	TransactionCount uint64              `json:"transaction_count"`
	PendingCount     int                 `json:"pending_count"`
	CreatedAt        time.Time           `json:"created_at"`
}

// ProposalResponse is the wire form of a proposal.
type ProposalResponse struct {
	ID          uint64              `json:"id"`
	Proposer    principal.Address   `json:"proposer"`
	Destination principal.Address   `json:"destination"`
	Amount      uint64              `json:"amount"`
	Approvals   []principal.Address `json:"approvals"`
	Executed    bool                `json:"executed"`
	Status      ProposalStatus      `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
	ClosedBy    *principal.Address  `json:"closed_by,omitempty"`
}

// BalanceResponse is the wire form of a balance read.
type BalanceResponse struct {
	Wallet principal.Address `json:"wallet"`
	Amount uint64            `json:"amount"`
	AsOf   time.Time         `json:"as_of"`
}

// Create initializes a wallet created by the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	category, err := ParseCategory(req.Category)
	if err != nil {
		return httpError(err)
	}

	w, err := h.service.Initialize(c.UserContext(), InitializeInput{
		Owners:    req.Owners,
		Threshold: req.Threshold,
		Category:  category,
		Creator:   caller,
		Nonce:     req.Nonce,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Mine lists wallets the caller owns or created.
func (h *Handler) Mine(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	wallets, err := h.service.WalletsOf(c.UserContext(), caller)
	if err != nil {
		return httpError(err)
	}
	out := make([]WalletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, toWalletResponse(w))
	}
	return c.JSON(out)
}

// Get returns a wallet's configuration.
func (h *Handler) Get(c *fiber.Ctx) error {
	addr, err := walletParam(c)
	if err != nil {
		return err
	}
	w, err := h.service.Wallet(c.UserContext(), addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// Owners returns the current owner set.
func (h *Handler) Owners(c *fiber.Ctx) error {
	addr, err := walletParam(c)
	if err != nil {
		return err
	}
	owners, err := h.service.Owners(c.UserContext(), addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"owners": owners})
}

// AddOwner extends the owner set. Only the wallet creator may call it.
func (h *Handler) AddOwner(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req ownerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.AddOwner(c.UserContext(), addr, caller, req.Owner)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// RemoveOwner shrinks the owner set. Only the wallet creator may call it.
func (h *Handler) RemoveOwner(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	owner, err := principal.Parse(c.Params("owner"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.RemoveOwner(c.UserContext(), addr, caller, owner)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// Balance returns the live custody balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	addr, err := walletParam(c)
	if err != nil {
		return err
	}
	bal, err := h.service.Balance(c.UserContext(), addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(BalanceResponse{Wallet: bal.Wallet, Amount: bal.Amount, AsOf: bal.AsOf})
}

// Pending lists proposals awaiting execution.
func (h *Handler) Pending(c *fiber.Ctx) error {
	addr, err := walletParam(c)
	if err != nil {
		return err
	}
	proposals, err := h.service.PendingProposals(c.UserContext(), addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toProposalResponses(proposals))
}

// History lists closed proposals.
func (h *Handler) History(c *fiber.Ctx) error {
	addr, err := walletParam(c)
	if err != nil {
		return err
	}
	proposals, err := h.service.History(c.UserContext(), addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toProposalResponses(proposals))
}

// Propose records a transfer request from the caller.
func (h *Handler) Propose(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req proposeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Propose(c.UserContext(), addr, caller, req.Destination, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toProposalResponse(p))
}

// Approve adds the caller's approval.
func (h *Handler) Approve(c *fiber.Ctx) error {
	caller, addr, id, err := proposalParams(c)
	if err != nil {
		return err
	}
	p, err := h.service.Approve(c.UserContext(), addr, caller, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toProposalResponse(p))
}

// Execute pays out an approved proposal to the recipient named in the body.
func (h *Handler) Execute(c *fiber.Ctx) error {
	caller, addr, id, err := proposalParams(c)
	if err != nil {
		return err
	}
	var req executeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Execute(c.UserContext(), addr, caller, id, req.Recipient)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toProposalResponse(p))
}

// Cancel withdraws a proposal created by the caller.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	caller, addr, id, err := proposalParams(c)
	if err != nil {
		return err
	}
	p, err := h.service.Cancel(c.UserContext(), addr, caller, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toProposalResponse(p))
}

var statusByKind = map[ErrorKind]int{
	KindConfiguration: http.StatusBadRequest,
	KindAuthorization: http.StatusForbidden,
	KindNotFound:      http.StatusNotFound,
	KindState:         http.StatusConflict,
	KindResource:      http.StatusUnprocessableEntity,
}

// httpError maps domain errors onto HTTP status codes. Anything outside the
// taxonomy is reported as a 500 without leaking its message.
func httpError(err error) error {
	status, ok := statusByKind[Kind(err)]
	if !ok {
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
	return fiber.NewError(status, err.Error())
}

func callerOf(c *fiber.Ctx) (principal.Address, error) {
	caller, ok := auth.Caller(c)
	if !ok {
		return principal.Zero, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return caller, nil
}

func walletParam(c *fiber.Ctx) (principal.Address, error) {
	addr, err := principal.Parse(c.Params("wallet"))
	if err != nil {
		return principal.Zero, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return addr, nil
}

func callerAndWallet(c *fiber.Ctx) (principal.Address, principal.Address, error) {
	caller, err := callerOf(c)
	if err != nil {
		return principal.Zero, principal.Zero, err
	}
	addr, err := walletParam(c)
	if err != nil {
		return principal.Zero, principal.Zero, err
	}
	return caller, addr, nil
}

func proposalParams(c *fiber.Ctx) (principal.Address, principal.Address, uint64, error) {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return principal.Zero, principal.Zero, 0, err
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return principal.Zero, principal.Zero, 0, fiber.NewError(http.StatusBadRequest, "invalid proposal id")
	}
	return caller, addr, id, nil
}

func toWalletResponse(w Wallet) WalletResponse {
	return WalletResponse{
		Address:          w.Address,
		Creator:          w.Creator,
		Nonce:            w.Nonce,
		Category:         w.Category,
		Owners:           w.Owners,
		Threshold:        w.Threshold,
		TransactionCount: w.TransactionCount,
		PendingCount:     len(w.Pending),
		CreatedAt:        w.CreatedAt,
	}
}

func toProposalResponse(p Proposal) ProposalResponse {
	out := ProposalResponse{
		ID:          p.ID,
		Proposer:    p.Proposer,
		Destination: p.Destination,
		Amount:      p.Amount,
		Approvals:   p.Approvals,
		Executed:    p.Executed,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
	if !p.ClosedAt.IsZero() {
		closedAt, closedBy := p.ClosedAt, p.ClosedBy
		out.ClosedAt = &closedAt
		out.ClosedBy = &closedBy
	}
	return out
}

func toProposalResponses(in []Proposal) []ProposalResponse {
	out := make([]ProposalResponse, 0, len(in))
	for _, p := range in {
		out = append(out, toProposalResponse(p))
	}
	return out
}
