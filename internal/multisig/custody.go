package multisig

import (
	"context"
	"errors"

	"github.com/congo-pay/multisig/internal/ledger"
	"github.com/congo-pay/multisig/internal/principal"
)

const transferKind = "multisig_execute"

// AccountCode is the ledger account holding funds for addr.
func AccountCode(addr principal.Address) string {
	return "acct:" + addr.String()
}

// LedgerCustodian keeps wallet funds in the double-entry ledger.
type LedgerCustodian struct {
	ledger ledger.Ledger
}

// NewLedgerCustodian adapts a ledger backend to the Custodian contract.
func NewLedgerCustodian(l ledger.Ledger) *LedgerCustodian {
	return &LedgerCustodian{ledger: l}
}

// Open creates the custody account of a wallet.
func (c *LedgerCustodian) Open(ctx context.Context, wallet principal.Address) error {
	return c.ledger.EnsureAccount(ctx, AccountCode(wallet))
}

// Balance returns the live balance of the wallet's custody account.
func (c *LedgerCustodian) Balance(ctx context.Context, wallet principal.Address) (uint64, error) {
	return c.ledger.Balance(ctx, AccountCode(wallet))
}

// Transfer posts the payout. A duplicate reference means an earlier attempt
// already moved the funds, which counts as success.
func (c *LedgerCustodian) Transfer(ctx context.Context, wallet, to principal.Address, amount uint64, reference string) error {
	toCode := AccountCode(to)
	if err := c.ledger.EnsureAccount(ctx, toCode); err != nil {
		return err
	}
	_, err := c.ledger.Transfer(ctx, AccountCode(wallet), toCode, transferKind, reference, amount)
	switch {
	case err == nil, errors.Is(err, ledger.ErrDuplicateTransaction):
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return ErrInsufficientBalance
	default:
		return err
	}
}

// Settled reports whether the payout with reference is already in the ledger.
func (c *LedgerCustodian) Settled(ctx context.Context, reference string) (bool, error) {
	return c.ledger.Posted(ctx, transferKind, reference)
}
