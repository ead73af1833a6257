package ledger

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned when a posting references an unknown account code.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned for zero amounts and amounts that do not fit a signed posting.
	ErrInvalidAmount = errors.New("invalid amount")
)

const (
	// StatusCompleted marks a posted transaction.
	StatusCompleted = "completed"
	// DepositSuspenseAccountCode is the contra account debited by external deposits.
	DepositSuspenseAccountCode = "suspense:deposits"

	kindDeposit = "deposit"
)

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   uint64
	ToBalance     uint64
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Transfers are atomic: either both entries are posted or neither is.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (uint64, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount uint64) (TransactionResult, error)
	Deposit(ctx context.Context, code, clientTxID string, amount uint64) (TransactionResult, error)
	// Posted reports whether a transaction of kind with clientTxID was recorded.
	Posted(ctx context.Context, kind, clientTxID string) (bool, error)
}

func checkAmount(amount uint64) error {
	if amount == 0 || amount > math.MaxInt64 {
		return ErrInvalidAmount
	}
	return nil
}

func clampBalance(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
