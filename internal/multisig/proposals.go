package multisig

import (
	"context"
	"fmt"
	"time"

	"github.com/congo-pay/multisig/internal/principal"
)

// Custodian is the account substrate holding a wallet's funds. Transfer must
// be atomic and must be authorized by the wallet itself, never by an owner.
type Custodian interface {
	Open(ctx context.Context, wallet principal.Address) error
	Balance(ctx context.Context, wallet principal.Address) (uint64, error)
	Transfer(ctx context.Context, wallet, to principal.Address, amount uint64, reference string) error
	// Settled reports whether a transfer with reference has already been posted.
	Settled(ctx context.Context, reference string) (bool, error)
}

// ProposalLedger runs the propose/approve/execute state machine over a single
// wallet. Callers must serialize calls per wallet; every method either fully
// applies its transition to w or leaves w untouched.
type ProposalLedger struct {
	custody Custodian
	reserve bool
	now     func() time.Time
}

// LedgerOption customizes a ProposalLedger.
type LedgerOption func(*ProposalLedger)

// WithReservations makes pending proposals reserve their amounts, so the
// available balance is the live balance minus every other pending amount.
func WithReservations(enabled bool) LedgerOption {
	return func(l *ProposalLedger) { l.reserve = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *ProposalLedger) { l.now = now }
}

// NewProposalLedger builds the state machine on top of custody.
func NewProposalLedger(custody Custodian, opts ...LedgerOption) *ProposalLedger {
	l := &ProposalLedger{
		custody: custody,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Propose records a transfer request. The proposer's approval is implicit.
func (l *ProposalLedger) Propose(ctx context.Context, w *Wallet, proposer, destination principal.Address, amount uint64) (Proposal, error) {
	if !w.IsOwner(proposer) {
		return Proposal{}, ErrNotAnOwner
	}
	if destination.IsZero() {
		return Proposal{}, ErrInvalidDestination
	}
	if amount == 0 {
		return Proposal{}, ErrInvalidAmount
	}
	available, err := l.available(ctx, w, -1)
	if err != nil {
		return Proposal{}, err
	}
	if amount > available {
		return Proposal{}, ErrInsufficientBalance
	}

	p := Proposal{
		ID:          w.nextID(),
		Proposer:    proposer,
		Destination: destination,
		Amount:      amount,
		Approvals:   []principal.Address{proposer},
		Status:      StatusPending,
		CreatedAt:   l.now(),
	}
	w.Pending = append(w.Pending, p)
	return p.clone(), nil
}

// Approve adds approver to the proposal's approval set. Approvals are never retracted.
func (l *ProposalLedger) Approve(w *Wallet, approver principal.Address, id uint64) (Proposal, error) {
	if !w.IsOwner(approver) {
		return Proposal{}, ErrNotAnOwner
	}
	idx := w.pendingIndex(id)
	if idx < 0 {
		return Proposal{}, ErrTransactionNotFound
	}
	p := &w.Pending[idx]
	if p.Executed {
		return Proposal{}, ErrTransactionAlreadyExecuted
	}
	if p.HasApproved(approver) {
		return Proposal{}, ErrAlreadyApproved
	}
	p.Approvals = append(p.Approvals, approver)
	return p.clone(), nil
}

// Execute moves the proposal amount to its destination once quorum is met.
// All checks run before the transfer; w is only modified after the transfer
// succeeds, at which point the proposal leaves the pending set. A proposal
// whose transfer was already posted by an earlier attempt is finalized
// without a balance check or a second payout.
func (l *ProposalLedger) Execute(ctx context.Context, w *Wallet, executor principal.Address, id uint64, recipient principal.Address) (Proposal, error) {
	idx := w.pendingIndex(id)
	if idx < 0 {
		return Proposal{}, ErrTransactionNotFound
	}
	p := w.Pending[idx]
	if p.Executed {
		return Proposal{}, ErrTransactionAlreadyExecuted
	}
	if len(p.Approvals) < w.Threshold {
		return Proposal{}, ErrThresholdNotMet
	}
	if recipient != p.Destination {
		return Proposal{}, ErrRecipientMismatch
	}

	reference := TransferReference(w.Address, p.ID)
	settled, err := l.settled(ctx, reference)
	if err != nil {
		return Proposal{}, err
	}
	if !settled {
		available, err := l.available(ctx, w, idx)
		if err != nil {
			return Proposal{}, err
		}
		if available < p.Amount {
			return Proposal{}, ErrInsufficientBalance
		}
		if err := l.custody.Transfer(ctx, w.Address, p.Destination, p.Amount, reference); err != nil {
			return Proposal{}, fmt.Errorf("transfer proposal %d: %w", p.ID, err)
		}
	}

	p = p.clone()
	p.Executed = true
	p.Status = StatusExecuted
	p.ClosedAt = l.now()
	p.ClosedBy = executor
	l.close(w, idx, p)
	return p.clone(), nil
}

// Cancel withdraws a pending proposal. Only its proposer, while still an
// owner, may cancel it, and never once its transfer has been posted.
func (l *ProposalLedger) Cancel(ctx context.Context, w *Wallet, caller principal.Address, id uint64) (Proposal, error) {
	if !w.IsOwner(caller) {
		return Proposal{}, ErrNotAnOwner
	}
	idx := w.pendingIndex(id)
	if idx < 0 {
		return Proposal{}, ErrTransactionNotFound
	}
	p := w.Pending[idx].clone()
	if p.Proposer != caller {
		return Proposal{}, ErrNotProposer
	}
	settled, err := l.settled(ctx, TransferReference(w.Address, p.ID))
	if err != nil {
		return Proposal{}, err
	}
	if settled {
		return Proposal{}, ErrTransactionAlreadyExecuted
	}
	p.Status = StatusCancelled
	p.ClosedAt = l.now()
	p.ClosedBy = caller
	l.close(w, idx, p)
	return p.clone(), nil
}

func (l *ProposalLedger) settled(ctx context.Context, reference string) (bool, error) {
	settled, err := l.custody.Settled(ctx, reference)
	if err != nil {
		return false, fmt.Errorf("look up transfer %s: %w", reference, err)
	}
	return settled, nil
}

// close moves the pending proposal at idx into the history as p.
func (l *ProposalLedger) close(w *Wallet, idx int, p Proposal) {
	w.Pending = append(w.Pending[:idx:idx], w.Pending[idx+1:]...)
	w.History = append(w.History, p)
}

// available reads the live balance. With reservations enabled, amounts of
// pending proposals other than the one at except are held back.
func (l *ProposalLedger) available(ctx context.Context, w *Wallet, except int) (uint64, error) {
	balance, err := l.custody.Balance(ctx, w.Address)
	if err != nil {
		return 0, fmt.Errorf("read wallet balance: %w", err)
	}
	if !l.reserve {
		return balance, nil
	}
	held := w.reserved(except)
	if held >= balance {
		return 0, nil
	}
	return balance - held, nil
}

// TransferReference is the idempotency key of the transfer executing a proposal.
func TransferReference(wallet principal.Address, id uint64) string {
	return fmt.Sprintf("multisig:%s:%d", wallet, id)
}
