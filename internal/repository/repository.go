package repository

import (
	"context"
	"time"

	"github.com/iliyamo/user-authenticator/internal/model"
)

// Users is the credential store.
type Users interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Ledger is the revocation deny-list, looked up by the exact token string.
type Ledger interface {
	// Revoke returns true when this call recorded the token and false when
	// it was already present.
	Revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, token string) (bool, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Users() Users
	Ledger() Ledger
}

// Manager hands out repositories outside and inside a transaction.
type Manager interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
