package ledger

import (
	"context"
	"sync"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]TransactionResult
}

// NewInMemory creates a concurrency-safe in-memory ledger used by tests and
// development mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     map[string]int64{DepositSuspenseAccountCode: 0},
		transactions: make(map[string]TransactionResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return clampBalance(balance), nil
}

func (l *inMemoryLedger) Posted(_ context.Context, kind, clientTxID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.transactions[kind+":"+clientTxID]
	return exists, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromCode, toCode, kind, clientTxID string, amount uint64) (TransactionResult, error) {
	if err := checkAmount(amount); err != nil {
		return TransactionResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kind + ":" + clientTxID
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[fromCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[toCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}

	delta := int64(amount)
	if fromBalance < delta {
		return TransactionResult{}, ErrInsufficientFunds
	}

	fromBalance -= delta
	toBalance += delta
	l.balances[fromCode] = fromBalance
	l.balances[toCode] = toBalance

	res := TransactionResult{
		TransactionID: key,
		FromBalance:   clampBalance(fromBalance),
		ToBalance:     clampBalance(toBalance),
	}
	l.transactions[key] = res
	return res, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, code, clientTxID string, amount uint64) (TransactionResult, error) {
	if err := checkAmount(amount); err != nil {
		return TransactionResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kindDeposit + ":" + clientTxID
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	balance, ok := l.balances[code]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}

	// The suspense account mirrors external money and is allowed to go negative.
	balance += int64(amount)
	l.balances[code] = balance
	l.balances[DepositSuspenseAccountCode] -= int64(amount)

	res := TransactionResult{
		TransactionID: key,
		ToBalance:     clampBalance(balance),
	}
	l.transactions[key] = res
	return res, nil
}
