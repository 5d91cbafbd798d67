package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/user-authenticator/internal/dbx"
)

// Store is the MySQL-backed Manager. When an external ledger is set (Redis)
// it replaces the revoked_tokens table both inside and outside transactions.
type Store struct {
	db     *sql.DB
	ledger Ledger
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithLedger overrides the MySQL ledger.
func WithLedger(l Ledger) StoreOption {
	return func(s *Store) { s.ledger = l }
}

func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Users() Users { return NewUserRepo(s.db) }

func (s *Store) Ledger() Ledger {
	if s.ledger != nil {
		return s.ledger
	}
	return NewTokenRepo(s.db)
}

// RunInTx runs fn in a database transaction. Returning an error rolls back
// every MySQL write made through tx.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, q dbx.DBTX) error {
		return fn(ctx, &txRepos{q: q, ledger: s.ledger})
	})
}

type txRepos struct {
	q      dbx.DBTX
	ledger Ledger
}

func (t *txRepos) Users() Users { return NewUserRepo(t.q) }

func (t *txRepos) Ledger() Ledger {
	if t.ledger != nil {
		return t.ledger
	}
	return NewTokenRepo(t.q)
}
