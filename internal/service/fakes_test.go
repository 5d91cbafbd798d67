package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/user-authenticator/internal/mail"
	"github.com/iliyamo/user-authenticator/internal/model"
	"github.com/iliyamo/user-authenticator/internal/repository"
)

// memStore is an in-memory repository.Manager. Tokens revoked inside a
// transaction are reserved immediately, like a row lock on the unique key,
// and released on rollback.
type memStore struct {
	mu      sync.Mutex
	users   map[string]model.User
	revoked map[string]time.Time
	pending map[string]bool

	createErr error
	updateErr error
	ledgerErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]model.User{},
		revoked: map[string]time.Time{},
		pending: map[string]bool{},
	}
}

func (m *memStore) Users() repository.Users   { return memUsers{m} }
func (m *memStore) Ledger() repository.Ledger { return memLedger{m} }

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &memTx{m: m, passwords: map[string]string{}}
	if err := fn(ctx, tx); err != nil {
		m.mu.Lock()
		for _, tok := range tx.tokens {
			delete(m.pending, tok)
		}
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range tx.passwords {
		u := m.users[id]
		u.PasswordHash = h
		m.users[id] = u
	}
	for i, tok := range tx.tokens {
		delete(m.pending, tok)
		m.revoked[tok] = tx.expiries[i]
	}
	return nil
}

func (m *memStore) passwordOf(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u.PasswordHash
		}
	}
	return ""
}

func (m *memStore) isRevoked(tok string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tok]
	return ok
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createErr != nil {
		return r.m.createErr
	}
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	r.m.users[id] = u
	return nil
}

type memLedger struct{ m *memStore }

func (l memLedger) Revoke(_ context.Context, tok string, exp time.Time) (bool, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if l.m.ledgerErr != nil {
		return false, l.m.ledgerErr
	}
	if _, ok := l.m.revoked[tok]; ok {
		return false, nil
	}
	l.m.revoked[tok] = exp
	return true, nil
}

func (l memLedger) IsRevoked(_ context.Context, tok string) (bool, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if l.m.ledgerErr != nil {
		return false, l.m.ledgerErr
	}
	_, ok := l.m.revoked[tok]
	return ok, nil
}

func (l memLedger) Prune(_ context.Context, before time.Time) (int64, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	var n int64
	for tok, exp := range l.m.revoked {
		if exp.Before(before) {
			delete(l.m.revoked, tok)
			n++
		}
	}
	return n, nil
}

type memTx struct {
	m         *memStore
	passwords map[string]string
	tokens    []string
	expiries  []time.Time
}

func (t *memTx) Users() repository.Users   { return txUsers{memUsers{t.m}, t} }
func (t *memTx) Ledger() repository.Ledger { return txLedger{t} }

type txUsers struct {
	memUsers
	tx *memTx
}

func (r txUsers) UpdatePassword(_ context.Context, id, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.updateErr != nil {
		return r.m.updateErr
	}
	if _, ok := r.m.users[id]; !ok {
		return repository.ErrNotFound
	}
	r.tx.passwords[id] = hash
	return nil
}

type txLedger struct{ tx *memTx }

func (l txLedger) Revoke(_ context.Context, tok string, exp time.Time) (bool, error) {
	m := l.tx.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgerErr != nil {
		return false, m.ledgerErr
	}
	if _, ok := m.revoked[tok]; ok || m.pending[tok] {
		return false, nil
	}
	m.pending[tok] = true
	l.tx.tokens = append(l.tx.tokens, tok)
	l.tx.expiries = append(l.tx.expiries, exp)
	return true, nil
}

func (l txLedger) IsRevoked(ctx context.Context, tok string) (bool, error) {
	return memLedger{l.tx.m}.IsRevoked(ctx, tok)
}

func (l txLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	return memLedger{l.tx.m}.Prune(ctx, before)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("mail sent without a deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) last() mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}
