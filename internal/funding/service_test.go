package funding

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/ledger"
	"github.com/congo-pay/multisig/internal/logging"
	"github.com/congo-pay/multisig/internal/multisig"
	"github.com/congo-pay/multisig/internal/principal"
)

func setup(t *testing.T) (*Service, ledger.Ledger, multisig.Wallet) {
	t.Helper()
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	wallets := multisig.NewService(multisig.NewMemoryStore(), multisig.NewLedgerCustodian(ledgerBackend), nil, logging.Discard())

	owners := make([]principal.Address, 2)
	for i := range owners {
		a, err := principal.New()
		if err != nil {
			t.Fatalf("new address: %v", err)
		}
		owners[i] = a
	}
	w, err := wallets.Initialize(ctx, multisig.InitializeInput{Owners: owners, Threshold: 2, Category: multisig.CategoryBasic, Creator: owners[0]})
	if err != nil {
		t.Fatalf("initialize wallet: %v", err)
	}

	service, err := NewService(ctx, ledgerBackend, wallets)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, ledgerBackend, w
}

func TestServiceDeposit(t *testing.T) {
	ctx := context.Background()
	service, ledgerBackend, w := setup(t)

	res, err := service.Deposit(ctx, DepositInput{Wallet: w.Address, Amount: 10_000, ClientTxID: "dup"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if res.WalletBalance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", res.WalletBalance)
	}

	again, err := service.Deposit(ctx, DepositInput{Wallet: w.Address, Amount: 10_000, ClientTxID: "dup"})
	if err != nil {
		t.Fatalf("replayed deposit: %v", err)
	}
	if !again.Duplicate || again.WalletBalance != 10_000 {
		t.Fatalf("expected duplicate with unchanged balance, got %+v", again)
	}

	bal, err := ledgerBackend.Balance(ctx, multisig.AccountCode(w.Address))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 10_000 {
		t.Fatalf("expected ledger balance 10000, got %d", bal)
	}
}

func TestServiceDepositRejections(t *testing.T) {
	ctx := context.Background()
	service, _, w := setup(t)

	if _, err := service.Deposit(ctx, DepositInput{Wallet: w.Address}); !errors.Is(err, multisig.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	unknown, err := principal.New()
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if _, err := service.Deposit(ctx, DepositInput{Wallet: unknown, Amount: 1}); !errors.Is(err, multisig.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestHandlerDeposit(t *testing.T) {
	service, _, w := setup(t)
	app := fiber.New()
	app.Post("/multisig/:wallet/deposits", NewHandler(service).Deposit)

	post := func(body string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/multisig/"+w.Address.String()+"/deposits", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	if got := post(`{"amount":500,"client_tx_id":"t1"}`); got != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", got)
	}
	if got := post(`{"amount":500,"client_tx_id":"t1"}`); got != fiber.StatusOK {
		t.Fatalf("expected 200 on replay got %d", got)
	}
	if got := post(`{"amount":0}`); got != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", got)
	}
}
