package multisig

import (
	"fmt"
	"strings"
	"time"

	"github.com/congo-pay/multisig/internal/principal"
)

// Category is the pricing tier of a wallet. It caps the size of the owner set.
type Category string

const (
	CategoryBasic Category = "basic"
	CategoryPro   Category = "pro"
)

var maxOwners = map[Category]int{
	CategoryBasic: 3,
	CategoryPro:   10,
}

// ParseCategory normalizes a category name. An empty name selects Basic.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return CategoryBasic, nil
	}
	if _, ok := maxOwners[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// MaxOwners returns the owner cap for c, or zero when c is unknown.
func (c Category) MaxOwners() int {
	return maxOwners[c]
}

// ProposalStatus tracks where a proposal is in its lifecycle.
type ProposalStatus string

const (
	StatusPending   ProposalStatus = "pending"
	StatusExecuted  ProposalStatus = "executed"
	StatusCancelled ProposalStatus = "cancelled"
)

// Wallet is the durable configuration and transaction log of one multisig account.
type Wallet struct {
	Address          principal.Address
	Creator          principal.Address
	Nonce            uint64
	Category         Category
	Owners           []principal.Address
	Threshold        int
	TransactionCount uint64
	Pending          []Proposal
	History          []Proposal
	CreatedAt        time.Time
}

// Proposal is a requested transfer out of a wallet.
type Proposal struct {
	ID          uint64
	Proposer    principal.Address
	Destination principal.Address
	Amount      uint64
	Approvals   []principal.Address
	Executed    bool
	Status      ProposalStatus
	CreatedAt   time.Time
	ClosedAt    time.Time
	ClosedBy    principal.Address
}

// IsOwner reports whether id is in the owner set.
func (w *Wallet) IsOwner(id principal.Address) bool {
	return indexOf(w.Owners, id) >= 0
}

// pendingIndex returns the position of the pending proposal id, or -1.
func (w *Wallet) pendingIndex(id uint64) int {
	for i := range w.Pending {
		if w.Pending[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID hands out the next proposal identifier. Identifiers are never reused.
func (w *Wallet) nextID() uint64 {
	id := w.TransactionCount
	w.TransactionCount++
	return id
}

// reserved sums the amounts of pending proposals, skipping the one at index except.
func (w *Wallet) reserved(except int) uint64 {
	var total uint64
	for i, p := range w.Pending {
		if i == except {
			continue
		}
		total += p.Amount
	}
	return total
}

// Clone returns a deep copy so that a failed transition never leaks into stored state.
func (w Wallet) Clone() Wallet {
	out := w
	out.Owners = append([]principal.Address(nil), w.Owners...)
	out.Pending = cloneProposals(w.Pending)
	out.History = cloneProposals(w.History)
	return out
}

// HasApproved reports whether id has approved p.
func (p *Proposal) HasApproved(id principal.Address) bool {
	return indexOf(p.Approvals, id) >= 0
}

func (p Proposal) clone() Proposal {
	p.Approvals = append([]principal.Address(nil), p.Approvals...)
	return p
}

func cloneProposals(in []Proposal) []Proposal {
	if in == nil {
		return nil
	}
	out := make([]Proposal, len(in))
	for i := range in {
		out[i] = in[i].clone()
	}
	return out
}

func indexOf(set []principal.Address, id principal.Address) int {
	for i := range set {
		if set[i] == id {
			return i
		}
	}
	return -1
}
