package multisig

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/multisig/internal/events"
	"github.com/congo-pay/multisig/internal/principal"
)

// Service applies registry and proposal transitions to stored wallets. Each
// call loads the wallet, runs one transition under the store's per-wallet
// lock, commits, and then emits an event.
type Service struct {
	store     Store
	registry  *Registry
	proposals *ProposalLedger
	custody   Custodian
	sink      events.Sink
	logger    *slog.Logger
}

// NewService wires the multisig service. sink may be nil.
func NewService(store Store, custody Custodian, sink events.Sink, logger *slog.Logger, opts ...LedgerOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		registry:  NewRegistry(),
		proposals: NewProposalLedger(custody, opts...),
		custody:   custody,
		sink:      sink,
		logger:    logger,
	}
}

// Balance is a point-in-time read of the wallet's custody account.
type Balance struct {
	Wallet principal.Address
	Amount uint64
	AsOf   time.Time
}

// Initialize creates a wallet owned by in.Owners on behalf of in.Creator.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (Wallet, error) {
	wallet, err := s.registry.Initialize(in)
	if err != nil {
		return Wallet{}, err
	}
	if err := s.custody.Open(ctx, wallet.Address); err != nil {
		return Wallet{}, fmt.Errorf("open custody account: %w", err)
	}
	if err := s.store.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("wallet created",
		slog.String("wallet", wallet.Address.String()),
		slog.String("creator", wallet.Creator.String()),
		slog.Int("owners", len(wallet.Owners)),
		slog.Int("threshold", wallet.Threshold),
	)
	s.emit(ctx, events.Event{
		Kind:      events.KindWalletCreated,
		Wallet:    wallet.Address,
		Actor:     wallet.Creator,
		Timestamp: wallet.CreatedAt,
	})
	return wallet, nil
}

// Wallet returns the stored wallet.
func (s *Service) Wallet(ctx context.Context, addr principal.Address) (Wallet, error) {
	return s.store.Get(ctx, addr)
}

// WalletsOf lists wallets that id owns or created.
func (s *Service) WalletsOf(ctx context.Context, id principal.Address) ([]Wallet, error) {
	return s.store.ListByOwner(ctx, id)
}

// Owners returns the current owner set.
func (s *Service) Owners(ctx context.Context, addr principal.Address) ([]principal.Address, error) {
	w, err := s.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return w.Owners, nil
}

// IsOwner reports whether id currently owns the wallet.
func (s *Service) IsOwner(ctx context.Context, addr, id principal.Address) (bool, error) {
	w, err := s.store.Get(ctx, addr)
	if err != nil {
		return false, err
	}
	return s.registry.IsOwner(&w, id), nil
}

// Balance reads the live custody balance.
func (s *Service) Balance(ctx context.Context, addr principal.Address) (Balance, error) {
	if _, err := s.store.Get(ctx, addr); err != nil {
		return Balance{}, err
	}
	amount, err := s.custody.Balance(ctx, addr)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Wallet: addr, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// PendingProposals lists proposals awaiting execution, oldest first.
func (s *Service) PendingProposals(ctx context.Context, addr principal.Address) ([]Proposal, error) {
	w, err := s.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return w.Pending, nil
}

// History lists executed and cancelled proposals in the order they closed.
func (s *Service) History(ctx context.Context, addr principal.Address) ([]Proposal, error) {
	w, err := s.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return w.History, nil
}

// AddOwner lets the wallet creator extend the owner set.
func (s *Service) AddOwner(ctx context.Context, addr, caller, owner principal.Address) (Wallet, error) {
	w, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		if w.Creator != caller {
			return ErrNotCreator
		}
		return s.registry.AddOwner(w, owner)
	})
	if err != nil {
		return Wallet{}, err
	}
	s.emit(ctx, events.Event{Kind: events.KindOwnerAdded, Wallet: addr, Actor: caller, Destination: &owner, Timestamp: time.Now().UTC()})
	return w, nil
}

// RemoveOwner lets the wallet creator shrink the owner set. Pending
// proposals made by the removed owner are cancelled.
func (s *Service) RemoveOwner(ctx context.Context, addr, caller, owner principal.Address) (Wallet, error) {
	var closed int
	w, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		if w.Creator != caller {
			return ErrNotCreator
		}
		closed = len(w.History)
		return s.registry.RemoveOwner(w, owner)
	})
	if err != nil {
		return Wallet{}, err
	}
	s.emit(ctx, events.Event{Kind: events.KindOwnerRemoved, Wallet: addr, Actor: caller, Destination: &owner, Timestamp: time.Now().UTC()})
	for _, p := range w.History[closed:] {
		s.emit(ctx, proposalEvent(events.KindProposalCancelled, addr, caller, p))
	}
	return w, nil
}

// Propose requests a transfer of amount to destination.
func (s *Service) Propose(ctx context.Context, addr, proposer, destination principal.Address, amount uint64) (Proposal, error) {
	var p Proposal
	_, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		var err error
		p, err = s.proposals.Propose(ctx, w, proposer, destination, amount)
		return err
	})
	if err != nil {
		return Proposal{}, s.reject("propose", addr, err)
	}

	s.logger.Info("proposal created",
		slog.String("wallet", addr.String()),
		slog.Uint64("proposal_id", p.ID),
		slog.Uint64("amount", p.Amount),
	)
	s.emit(ctx, proposalEvent(events.KindProposalCreated, addr, proposer, p))
	return p, nil
}

// Approve records approver's approval of proposal id.
func (s *Service) Approve(ctx context.Context, addr, approver principal.Address, id uint64) (Proposal, error) {
	var p Proposal
	_, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		var err error
		p, err = s.proposals.Approve(w, approver, id)
		return err
	})
	if err != nil {
		return Proposal{}, s.reject("approve", addr, err)
	}
	s.emit(ctx, proposalEvent(events.KindProposalApproved, addr, approver, p))
	return p, nil
}

// Execute pays out proposal id to recipient once quorum has been reached.
func (s *Service) Execute(ctx context.Context, addr, executor principal.Address, id uint64, recipient principal.Address) (Proposal, error) {
	var p Proposal
	_, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		var err error
		p, err = s.proposals.Execute(ctx, w, executor, id, recipient)
		return err
	})
	if err != nil {
		return Proposal{}, s.reject("execute", addr, err)
	}

	s.logger.Info("proposal executed",
		slog.String("wallet", addr.String()),
		slog.Uint64("proposal_id", p.ID),
		slog.String("destination", p.Destination.String()),
		slog.Uint64("amount", p.Amount),
	)
	s.emit(ctx, proposalEvent(events.KindProposalExecuted, addr, executor, p))
	return p, nil
}

// Cancel withdraws proposal id on behalf of its proposer.
func (s *Service) Cancel(ctx context.Context, addr, caller principal.Address, id uint64) (Proposal, error) {
	var p Proposal
	_, err := s.store.Update(ctx, addr, func(w *Wallet) error {
		var err error
		p, err = s.proposals.Cancel(ctx, w, caller, id)
		return err
	})
	if err != nil {
		return Proposal{}, s.reject("cancel", addr, err)
	}
	s.emit(ctx, proposalEvent(events.KindProposalCancelled, addr, caller, p))
	return p, nil
}

// reject logs collaborator failures; rule violations are expected and stay at debug.
func (s *Service) reject(op string, addr principal.Address, err error) error {
	attrs := []any{slog.String("op", op), slog.String("wallet", addr.String()), slog.Any("error", err)}
	if Kind(err) == KindInternal {
		s.logger.Error("wallet operation failed", attrs...)
	} else {
		s.logger.Debug("wallet operation rejected", attrs...)
	}
	return err
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event",
			slog.String("kind", string(event.Kind)),
			slog.String("wallet", event.Wallet.String()),
			slog.Any("error", err),
		)
	}
}

func proposalEvent(kind events.Kind, wallet, actor principal.Address, p Proposal) events.Event {
	id := p.ID
	dest := p.Destination
	ts := p.CreatedAt
	if !p.ClosedAt.IsZero() {
		ts = p.ClosedAt
	}
	if kind == events.KindProposalApproved {
		ts = time.Now().UTC()
	}
	return events.Event{
		Kind:        kind,
		Wallet:      wallet,
		Actor:       actor,
		ProposalID:  &id,
		Destination: &dest,
		Amount:      p.Amount,
		Approvals:   len(p.Approvals),
		Timestamp:   ts,
	}
}
