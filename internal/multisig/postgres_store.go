package multisig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/multisig/internal/principal"
)

const uniqueViolation = "23505"

// PostgresStore keeps wallets and proposals in PostgreSQL. Updates hold a row
// lock on the wallet for the duration of the transition.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a new wallet row.
func (s *PostgresStore) Create(ctx context.Context, wallet Wallet) error {
	_, err := s.db.Exec(ctx, `INSERT INTO multisig_wallets
        (address, creator, nonce, category, owners, threshold, transaction_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wallet.Address.Bytes(), wallet.Creator.Bytes(), int64(wallet.Nonce), string(wallet.Category),
		encodeAddresses(wallet.Owners), wallet.Threshold, int64(wallet.TransactionCount), wallet.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrWalletExists
	}
	return err
}

// Get loads a wallet with its pending proposals and history.
func (s *PostgresStore) Get(ctx context.Context, addr principal.Address) (Wallet, error) {
	return loadWallet(ctx, s.db, addr, false)
}

// ListByOwner returns wallets where owner is an owner or the creator.
func (s *PostgresStore) ListByOwner(ctx context.Context, owner principal.Address) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT address FROM multisig_wallets
        WHERE $1 = ANY(owners) OR creator = $1 ORDER BY created_at`, owner.Bytes())
	if err != nil {
		return nil, err
	}
	addrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (principal.Address, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return principal.Zero, err
		}
		return principal.FromBytes(raw)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Wallet, 0, len(addrs))
	for _, addr := range addrs {
		w, err := loadWallet(ctx, s.db, addr, false)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Update applies fn to the wallet inside a transaction holding its row lock.
func (s *PostgresStore) Update(ctx context.Context, addr principal.Address, fn func(*Wallet) error) (Wallet, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := loadWallet(ctx, tx, addr, true)
	if err != nil {
		return Wallet{}, err
	}
	closedBefore := len(current.History)

	working := current.Clone()
	if err := fn(&working); err != nil {
		return Wallet{}, err
	}

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE multisig_wallets SET owners = $2, threshold = $3, transaction_count = $4
        WHERE address = $1`,
		addr.Bytes(), encodeAddresses(working.Owners), working.Threshold, int64(working.TransactionCount))
	for _, p := range working.Pending {
		queueProposal(batch, addr, p)
	}
	for _, p := range working.History[closedBefore:] {
		queueProposal(batch, addr, p)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return Wallet{}, fmt.Errorf("persist wallet %s: %w", addr, err)
		}
	}
	if err := results.Close(); err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	return working, nil
}

func queueProposal(batch *pgx.Batch, wallet principal.Address, p Proposal) {
	var (
		closedAt *time.Time
		closedBy []byte
	)
	if !p.ClosedAt.IsZero() {
		t := p.ClosedAt.UTC()
		closedAt = &t
		closedBy = p.ClosedBy.Bytes()
	}
	batch.Queue(`INSERT INTO multisig_proposals
        (wallet, id, proposer, destination, amount, approvals, executed, status, created_at, closed_at, closed_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (wallet, id) DO UPDATE SET
            approvals = EXCLUDED.approvals,
            executed = EXCLUDED.executed,
            status = EXCLUDED.status,
            closed_at = EXCLUDED.closed_at,
            closed_by = EXCLUDED.closed_by`,
		wallet.Bytes(), int64(p.ID), p.Proposer.Bytes(), p.Destination.Bytes(), int64(p.Amount),
		encodeAddresses(p.Approvals), p.Executed, string(p.Status), p.CreatedAt.UTC(), closedAt, closedBy)
}

func loadWallet(ctx context.Context, q querier, addr principal.Address, forUpdate bool) (Wallet, error) {
	query := `SELECT creator, nonce, category, owners, threshold, transaction_count, created_at
        FROM multisig_wallets WHERE address = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		w         = Wallet{Address: addr}
		creator   []byte
		nonce     int64
		category  string
		owners    [][]byte
		txCount   int64
		createdAt time.Time
		err       error
	)
	if err := q.QueryRow(ctx, query, addr.Bytes()).Scan(&creator, &nonce, &category, &owners, &w.Threshold, &txCount, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	if w.Creator, err = principal.FromBytes(creator); err != nil {
		return Wallet{}, err
	}
	if w.Owners, err = decodeAddresses(owners); err != nil {
		return Wallet{}, err
	}
	w.Nonce = uint64(nonce)
	w.Category = Category(category)
	w.TransactionCount = uint64(txCount)
	w.CreatedAt = createdAt.UTC()

	rows, err := q.Query(ctx, `SELECT id, proposer, destination, amount, approvals, executed, status, created_at, closed_at, closed_by
        FROM multisig_proposals WHERE wallet = $1
        ORDER BY closed_at NULLS FIRST, id`, addr.Bytes())
	if err != nil {
		return Wallet{}, err
	}
	proposals, err := pgx.CollectRows(rows, scanProposal)
	if err != nil {
		return Wallet{}, err
	}
	for _, p := range proposals {
		if p.Status == StatusPending {
			w.Pending = append(w.Pending, p)
		} else {
			w.History = append(w.History, p)
		}
	}
	return w, nil
}

func scanProposal(row pgx.CollectableRow) (Proposal, error) {
	var (
		p                     Proposal
		id, amount            int64
		proposer, destination []byte
		approvals             [][]byte
		status                string
		closedAt              *time.Time
		closedBy              []byte
		err                   error
	)
	if err := row.Scan(&id, &proposer, &destination, &amount, &approvals, &p.Executed, &status, &p.CreatedAt, &closedAt, &closedBy); err != nil {
		return Proposal{}, err
	}
	p.ID = uint64(id)
	p.Amount = uint64(amount)
	p.Status = ProposalStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	if p.Proposer, err = principal.FromBytes(proposer); err != nil {
		return Proposal{}, err
	}
	if p.Destination, err = principal.FromBytes(destination); err != nil {
		return Proposal{}, err
	}
	if p.Approvals, err = decodeAddresses(approvals); err != nil {
		return Proposal{}, err
	}
	if closedAt != nil {
		p.ClosedAt = closedAt.UTC()
		if p.ClosedBy, err = principal.FromBytes(closedBy); err != nil {
			return Proposal{}, err
		}
	}
	return p, nil
}

func encodeAddresses(in []principal.Address) [][]byte {
	out := make([][]byte, len(in))
	for i, a := range in {
		out[i] = a.Bytes()
	}
	return out
}

func decodeAddresses(in [][]byte) ([]principal.Address, error) {
	out := make([]principal.Address, 0, len(in))
	for _, raw := range in {
		a, err := principal.FromBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
