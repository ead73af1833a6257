package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/multisig/internal/ledger"
	"github.com/congo-pay/multisig/internal/multisig"
	"github.com/congo-pay/multisig/internal/principal"
)

// WalletFinder resolves multisig wallets.
type WalletFinder interface {
	Wallet(ctx context.Context, addr principal.Address) (multisig.Wallet, error)
}

// Service credits multisig custody accounts from the deposit suspense account.
type Service struct {
	ledger  ledger.Ledger
	wallets WalletFinder
}

// NewService prepares a funding service ensuring the deposit suspense account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets WalletFinder) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet finder is required")
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.DepositSuspenseAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: ledgerBackend, wallets: wallets}, nil
}

// DepositInput captures the required data for a deposit.
type DepositInput struct {
	Wallet     principal.Address
	Amount     uint64
	ClientTxID string
}

// DepositResult represents the domain outcome of a deposit. Duplicate is set
// when ClientTxID was already used for this wallet and nothing was credited.
type DepositResult struct {
	TransactionID string
	Status        string
	WalletBalance uint64
	Duplicate     bool
	CompletedAt   time.Time
}

// Deposit credits input.Amount to the wallet's custody account. Anyone may deposit.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	if input.Amount == 0 {
		return DepositResult{}, multisig.ErrInvalidAmount
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	w, err := s.wallets.Wallet(ctx, input.Wallet)
	if err != nil {
		return DepositResult{}, err
	}

	code := multisig.AccountCode(w.Address)
	res, err := s.ledger.Deposit(ctx, code, w.Address.String()+":"+input.ClientTxID, input.Amount)
	duplicate := errors.Is(err, ledger.ErrDuplicateTransaction)
	if err != nil && !duplicate {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			return DepositResult{}, multisig.ErrInvalidAmount
		}
		return DepositResult{}, fmt.Errorf("deposit into %s: %w", w.Address, err)
	}

	balance := res.ToBalance
	if duplicate {
		if balance, err = s.ledger.Balance(ctx, code); err != nil {
			return DepositResult{}, err
		}
	}
	return DepositResult{
		TransactionID: res.TransactionID,
		Status:        ledger.StatusCompleted,
		WalletBalance: balance,
		Duplicate:     duplicate,
		CompletedAt:   time.Now().UTC(),
	}, nil
}
