package multisig

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/congo-pay/multisig/internal/principal"
)

// Store persists wallets. Update is the only way to change a stored wallet:
// it linearizes all updates to the same wallet and commits the mutation made
// by fn only when fn returns nil.
type Store interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, addr principal.Address) (Wallet, error)
	ListByOwner(ctx context.Context, owner principal.Address) ([]Wallet, error)
	Update(ctx context.Context, addr principal.Address, fn func(*Wallet) error) (Wallet, error)
}

type memoryEntry struct {
	mu     deadlock.Mutex
	wallet Wallet
}

type memoryStore struct {
	mu      deadlock.RWMutex
	wallets map[principal.Address]*memoryEntry
}

// NewMemoryStore constructs an in-memory store with one lock per wallet.
func NewMemoryStore() Store {
	return &memoryStore{wallets: make(map[principal.Address]*memoryEntry)}
}

func (s *memoryStore) Create(_ context.Context, wallet Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[wallet.Address]; exists {
		return ErrWalletExists
	}
	s.wallets[wallet.Address] = &memoryEntry{wallet: wallet.Clone()}
	return nil
}

func (s *memoryStore) entry(addr principal.Address) (*memoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.wallets[addr]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return e, nil
}

func (s *memoryStore) Get(_ context.Context, addr principal.Address) (Wallet, error) {
	e, err := s.entry(addr)
	if err != nil {
		return Wallet{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallet.Clone(), nil
}

func (s *memoryStore) ListByOwner(_ context.Context, owner principal.Address) ([]Wallet, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.wallets))
	for _, e := range s.wallets {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []Wallet
	for _, e := range entries {
		e.mu.Lock()
		if e.wallet.IsOwner(owner) || e.wallet.Creator == owner {
			out = append(out, e.wallet.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, addr principal.Address, fn func(*Wallet) error) (Wallet, error) {
	e, err := s.entry(addr)
	if err != nil {
		return Wallet{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.wallet.Clone()
	if err := fn(&working); err != nil {
		return Wallet{}, err
	}
	e.wallet = working
	return working.Clone(), nil
}
