package multisig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/multisig/internal/principal"
)

type transfer struct {
	from, to  principal.Address
	amount    uint64
	reference string
}

// fakeCustodian is a single-wallet custodian with failure injection.
type fakeCustodian struct {
	balance     uint64
	transfers   []transfer
	transferErr error
	balanceErr  error
	settleErr   error
}

func (f *fakeCustodian) Open(context.Context, principal.Address) error { return nil }

func (f *fakeCustodian) Balance(context.Context, principal.Address) (uint64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeCustodian) Settled(_ context.Context, reference string) (bool, error) {
	if f.settleErr != nil {
		return false, f.settleErr
	}
	for _, t := range f.transfers {
		if t.reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCustodian) Transfer(_ context.Context, wallet, to principal.Address, amount uint64, reference string) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	if amount > f.balance {
		return ErrInsufficientBalance
	}
	f.balance -= amount
	f.transfers = append(f.transfers, transfer{from: wallet, to: to, amount: amount, reference: reference})
	return nil
}

type fixture struct {
	a, b, c, d, e principal.Address
	wallet        Wallet
	custody       *fakeCustodian
	ledger        *ProposalLedger
}

func newFixture(t *testing.T, balance uint64, opts ...LedgerOption) *fixture {
	t.Helper()
	ids := newAddrs(t, 5)
	f := &fixture{a: ids[0], b: ids[1], c: ids[2], d: ids[3], e: ids[4]}
	w, err := NewRegistry().Initialize(InitializeInput{
		Owners:    []principal.Address{f.a, f.b, f.c},
		Threshold: 2,
		Category:  CategoryBasic,
		Creator:   f.a,
	})
	require.NoError(t, err)
	f.wallet = w
	f.custody = &fakeCustodian{balance: balance}
	f.ledger = NewProposalLedger(f.custody, opts...)
	return f
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	p, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.ID)
	assert.Equal(t, []principal.Address{f.a}, p.Approvals)
	assert.False(t, p.Executed)
	assert.Equal(t, uint64(1), f.wallet.TransactionCount)

	p, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)
	assert.Equal(t, []principal.Address{f.a, f.b}, p.Approvals)

	p, err = f.ledger.Execute(ctx, &f.wallet, f.c, 0, f.d)
	require.NoError(t, err)
	assert.True(t, p.Executed)
	assert.Equal(t, StatusExecuted, p.Status)
	assert.Equal(t, f.c, p.ClosedBy)

	require.Len(t, f.custody.transfers, 1)
	assert.Equal(t, transfer{from: f.wallet.Address, to: f.d, amount: 100, reference: TransferReference(f.wallet.Address, 0)}, f.custody.transfers[0])
	assert.Equal(t, uint64(900), f.custody.balance)

	assert.Empty(t, f.wallet.Pending)
	require.Len(t, f.wallet.History, 1)
	assert.Equal(t, StatusExecuted, f.wallet.History[0].Status)

	_, err = f.ledger.Approve(&f.wallet, f.c, 0)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestExecuteTwiceNeverDoubleSpends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 400)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.NoError(t, err)
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	assert.Len(t, f.custody.transfers, 1)
	assert.Equal(t, uint64(600), f.custody.balance)
}

func TestThresholdEnforcement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)

	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.ErrorIs(t, err, ErrThresholdNotMet)
	assert.Empty(t, f.custody.transfers)
	require.Len(t, f.wallet.Pending, 1)

	_, err = f.ledger.Approve(&f.wallet, f.c, 0)
	require.NoError(t, err)
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.NoError(t, err)
}

func TestApproveRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)

	_, err = f.ledger.Approve(&f.wallet, f.a, 0)
	require.ErrorIs(t, err, ErrAlreadyApproved)

	_, err = f.ledger.Approve(&f.wallet, f.e, 0)
	require.ErrorIs(t, err, ErrNotAnOwner)

	_, err = f.ledger.Approve(&f.wallet, f.b, 7)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.ErrorIs(t, err, ErrAlreadyApproved)

	approvals := f.wallet.Pending[0].Approvals
	assert.Equal(t, []principal.Address{f.a, f.b}, approvals)
	assert.LessOrEqual(t, len(approvals), len(f.wallet.Owners))
}

func TestApproveRejectsExecutedProposal(t *testing.T) {
	f := newFixture(t, 1_000)
	f.wallet.Pending = []Proposal{{ID: 3, Proposer: f.a, Destination: f.d, Amount: 1, Approvals: []principal.Address{f.a}, Executed: true}}

	_, err := f.ledger.Approve(&f.wallet, f.b, 3)
	require.ErrorIs(t, err, ErrTransactionAlreadyExecuted)
	_, err = f.ledger.Execute(context.Background(), &f.wallet, f.b, 3, f.d)
	require.ErrorIs(t, err, ErrTransactionAlreadyExecuted)
}

func TestProposeRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.e, f.d, 100)
	require.ErrorIs(t, err, ErrNotAnOwner)

	_, err = f.ledger.Propose(ctx, &f.wallet, f.a, principal.Zero, 100)
	require.ErrorIs(t, err, ErrInvalidDestination)
	assert.Equal(t, KindConfiguration, Kind(err))

	_, err = f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 501)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Zero(t, f.wallet.TransactionCount)
	assert.Empty(t, f.wallet.Pending)

	_, err = f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 500)
	require.NoError(t, err)
}

func TestProposeBalanceReadFailure(t *testing.T) {
	f := newFixture(t, 500)
	f.custody.balanceErr = errors.New("ledger unavailable")

	_, err := f.ledger.Propose(context.Background(), &f.wallet, f.a, f.d, 100)
	require.Error(t, err)
	assert.Equal(t, KindInternal, Kind(err))
	assert.Zero(t, f.wallet.TransactionCount)
}

func TestRecipientMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.e)
	require.ErrorIs(t, err, ErrRecipientMismatch)
	assert.Empty(t, f.custody.transfers)
	require.Len(t, f.wallet.Pending, 1)
	assert.False(t, f.wallet.Pending[0].Executed)
}

func TestExecuteRechecksLiveBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 800)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	f.custody.balance = 700
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Len(t, f.wallet.Pending, 1)
	assert.Empty(t, f.custody.transfers)
}

func TestTransferFailureLeavesProposalPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	f.custody.transferErr = errors.New("ledger down")
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.Error(t, err)

	require.Len(t, f.wallet.Pending, 1)
	assert.False(t, f.wallet.Pending[0].Executed)
	assert.Equal(t, StatusPending, f.wallet.Pending[0].Status)
	assert.Empty(t, f.wallet.History)

	f.custody.transferErr = nil
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.NoError(t, err)
}

func TestReservationsHoldPendingAmounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000, WithReservations(true))

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 600)
	require.NoError(t, err)
	_, err = f.ledger.Propose(ctx, &f.wallet, f.b, f.d, 500)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = f.ledger.Propose(ctx, &f.wallet, f.b, f.d, 400)
	require.NoError(t, err)

	// Executing one of two fully reserved proposals must not count its own reservation.
	_, err = f.ledger.Approve(&f.wallet, f.c, 1)
	require.NoError(t, err)
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 1, f.d)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), f.custody.balance)
}

func TestWithoutReservationsProposalsMayOvercommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 700)
	require.NoError(t, err)
	_, err = f.ledger.Propose(ctx, &f.wallet, f.b, f.d, 700)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.a, 1)
	require.NoError(t, err)

	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.NoError(t, err)
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 1, f.d)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(300), f.custody.balance)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)

	_, err = f.ledger.Cancel(ctx, &f.wallet, f.b, 0)
	require.ErrorIs(t, err, ErrNotProposer)

	p, err := f.ledger.Cancel(ctx, &f.wallet, f.a, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, p.Status)
	assert.False(t, p.Executed)
	assert.Empty(t, f.wallet.Pending)
	require.Len(t, f.wallet.History, 1)

	_, err = f.ledger.Cancel(ctx, &f.wallet, f.a, 0)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	// Identifiers are never reused after a cancellation.
	p, err = f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.ID)
}

func TestRemovedOwnerApprovalStopsCounting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.c, 0)
	require.NoError(t, err)

	require.NoError(t, NewRegistry().RemoveOwner(&f.wallet, f.c))
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestExecuteFinalizesAlreadySettledTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 250)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	// The payout landed but the wallet state holding the proposal was never committed.
	require.NoError(t, f.custody.Transfer(ctx, f.wallet.Address, f.d, 250, TransferReference(f.wallet.Address, 0)))
	require.Zero(t, f.custody.balance)

	_, err = f.ledger.Cancel(ctx, &f.wallet, f.a, 0)
	require.ErrorIs(t, err, ErrTransactionAlreadyExecuted)
	require.Len(t, f.wallet.Pending, 1)

	p, err := f.ledger.Execute(ctx, &f.wallet, f.b, 0, f.d)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, p.Status)
	assert.Len(t, f.custody.transfers, 1)
	assert.Empty(t, f.wallet.Pending)
	require.Len(t, f.wallet.History, 1)
	assert.Equal(t, StatusExecuted, f.wallet.History[0].Status)
}

func TestSettlementLookupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.a, f.d, 100)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 0)
	require.NoError(t, err)

	f.custody.settleErr = errors.New("ledger unavailable")
	_, err = f.ledger.Execute(ctx, &f.wallet, f.a, 0, f.d)
	require.Error(t, err)
	assert.Equal(t, KindInternal, Kind(err))
	_, err = f.ledger.Cancel(ctx, &f.wallet, f.a, 0)
	require.Error(t, err)
	assert.Len(t, f.wallet.Pending, 1)
	assert.Empty(t, f.custody.transfers)
}

func TestRemovedProposerLosesProposals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)

	_, err := f.ledger.Propose(ctx, &f.wallet, f.b, f.d, 100)
	require.NoError(t, err)
	_, err = f.ledger.Propose(ctx, &f.wallet, f.c, f.d, 50)
	require.NoError(t, err)
	_, err = f.ledger.Approve(&f.wallet, f.b, 1)
	require.NoError(t, err)

	require.NoError(t, NewRegistry().RemoveOwner(&f.wallet, f.b))

	require.Len(t, f.wallet.Pending, 1)
	assert.Equal(t, uint64(1), f.wallet.Pending[0].ID)
	assert.Equal(t, []principal.Address{f.c}, f.wallet.Pending[0].Approvals)
	require.Len(t, f.wallet.History, 1)
	closed := f.wallet.History[0]
	assert.Equal(t, StatusCancelled, closed.Status)
	assert.Equal(t, f.a, closed.ClosedBy)
	assert.NotEmpty(t, closed.Approvals)

	_, err = f.ledger.Cancel(ctx, &f.wallet, f.b, 0)
	require.ErrorIs(t, err, ErrNotAnOwner)
	_, err = f.ledger.Cancel(ctx, &f.wallet, f.b, 1)
	require.ErrorIs(t, err, ErrNotAnOwner)
	assert.Len(t, f.wallet.Pending, 1)
}
