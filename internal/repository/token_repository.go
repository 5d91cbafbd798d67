package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/user-authenticator/internal/dbx"
	"github.com/iliyamo/user-authenticator/internal/model"
	"github.com/iliyamo/user-authenticator/internal/utils"
)

// TokenRepo is the MySQL revocation ledger (table revoked_tokens, unique
// on the exact token string).
type TokenRepo struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewTokenRepo(db dbx.DBTX) *TokenRepo {
	return &TokenRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Revoke inserts token. It reports false without error when the token is
// already present, so a second logout or a losing concurrent reset never
// surfaces a duplicate-key fault.
func (r *TokenRepo) Revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	rt := model.RevokedToken{ID: utils.NewID(), Token: token, RevokedAt: r.now()}
	var exp any // NULL when the token carries no expiry
	if !expiresAt.IsZero() {
		e := expiresAt.UTC()
		rt.ExpiresAt, exp = &e, e
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO revoked_tokens (id, token, revoked_at, expires_at) VALUES (?,?,?,?)",
		rt.ID, rt.Token, rt.RevokedAt, exp)
	if err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return true, nil
}

// IsRevoked reports whether token is present in the ledger.
func (r *TokenRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM revoked_tokens WHERE token=?", token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Prune deletes entries whose natural expiry is before the cutoff. Such
// tokens fail the expiry check anyway, so dropping them is safe.
func (r *TokenRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at IS NOT NULL AND expires_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune revoked tokens: %w", err)
	}
	return res.RowsAffected()
}
