package multisig

import (
	"time"

	"github.com/congo-pay/multisig/internal/principal"
)

// InitializeInput captures the parameters of a new wallet.
type InitializeInput struct {
	Owners    []principal.Address
	Threshold int
	Category  Category
	Creator   principal.Address
	Nonce     uint64
}

// Registry validates and mutates wallet configuration: the owner set and the
// quorum threshold. It performs no I/O.
type Registry struct {
	now func() time.Time
}

// NewRegistry builds a registry stamping wallets with the current UTC time.
func NewRegistry() *Registry {
	return &Registry{now: func() time.Time { return time.Now().UTC() }}
}

// Initialize validates the configuration and builds a new wallet. The first
// violated rule wins: owner cap, duplicate owners, threshold floor, threshold
// ceiling, zero owner address.
func (r *Registry) Initialize(in InitializeInput) (Wallet, error) {
	limit := in.Category.MaxOwners()
	if limit == 0 {
		return Wallet{}, ErrInvalidCategory
	}
	if len(in.Owners) > limit {
		return Wallet{}, ErrTooManyOwners
	}
	if hasDuplicates(in.Owners) {
		return Wallet{}, ErrDuplicateOwners
	}
	if in.Threshold < 2 {
		return Wallet{}, ErrThresholdTooLow
	}
	if in.Threshold > len(in.Owners) {
		return Wallet{}, ErrThresholdExceedsOwners
	}
	if indexOf(in.Owners, principal.Zero) >= 0 {
		return Wallet{}, ErrInvalidOwner
	}

	return Wallet{
		Address:   principal.DeriveWallet(in.Creator, in.Nonce),
		Creator:   in.Creator,
		Nonce:     in.Nonce,
		Category:  in.Category,
		Owners:    append([]principal.Address(nil), in.Owners...),
		Threshold: in.Threshold,
		CreatedAt: r.now(),
	}, nil
}

// IsOwner is a pure membership query.
func (r *Registry) IsOwner(w *Wallet, id principal.Address) bool {
	return w.IsOwner(id)
}

// AddOwner appends owner to the owner set within the category cap.
func (r *Registry) AddOwner(w *Wallet, owner principal.Address) error {
	if owner.IsZero() {
		return ErrInvalidOwner
	}
	if w.IsOwner(owner) {
		return ErrOwnerAlreadyExists
	}
	if len(w.Owners)+1 > w.Category.MaxOwners() {
		return ErrTooManyOwners
	}
	w.Owners = append(w.Owners, owner)
	return nil
}

// RemoveOwner drops owner from the owner set. The threshold is never lowered
// implicitly, so a removal leaving fewer owners than the threshold is
// rejected. Approvals the removed owner gave to pending proposals stop
// counting toward quorum, and pending proposals they made are closed as
// cancelled by the wallet creator.
func (r *Registry) RemoveOwner(w *Wallet, owner principal.Address) error {
	idx := indexOf(w.Owners, owner)
	if idx < 0 {
		return ErrSignatoryNotFound
	}
	if len(w.Owners)-1 < w.Threshold {
		return ErrQuorumWouldBreak
	}

	w.Owners = append(w.Owners[:idx:idx], w.Owners[idx+1:]...)
	kept := make([]Proposal, 0, len(w.Pending))
	for _, p := range w.Pending {
		if p.Proposer == owner {
			p = p.clone()
			p.Status = StatusCancelled
			p.ClosedAt = r.now()
			p.ClosedBy = w.Creator
			w.History = append(w.History, p)
			continue
		}
		if j := indexOf(p.Approvals, owner); j >= 0 {
			p.Approvals = append(p.Approvals[:j:j], p.Approvals[j+1:]...)
		}
		kept = append(kept, p)
	}
	w.Pending = kept
	return nil
}

func hasDuplicates(ids []principal.Address) bool {
	seen := make(map[principal.Address]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
