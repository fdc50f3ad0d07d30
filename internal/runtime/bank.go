// Package runtime is the execution environment programs run in: it loads the
// accounts a transaction names, serializes transactions that share an account,
// moves lamports, and commits every change of a transaction or none of them.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"account_manager/internal/domain"
	"account_manager/internal/lockmap"
	"account_manager/internal/pubkey"
	"account_manager/internal/store"
)

// Handler is the body of a transaction. It returns the journal entry that is
// committed together with the accounts it changed.
type Handler func(tx *Txn) (*domain.Transaction, error)

// Bank owns the account store and runs transactions against it.
type Bank struct {
	store store.Store
	rent  Rent
	locks *lockmap.Lockmap
	log   *logrus.Entry
	now   func() time.Time
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the entry commits are logged through.
func WithLogger(log *logrus.Entry) Option {
	return func(b *Bank) { b.log = log }
}

// WithClock replaces the clock journal timestamps are read from.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

// NewBank returns a bank committing to st and charging rent.
func NewBank(st store.Store, rent Rent, opts ...Option) *Bank {
	b := &Bank{
		store: st,
		rent:  rent,
		locks: lockmap.New(64),
		log:   logrus.WithField("component", "runtime"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rent is the reserve schedule the bank enforces.
func (b *Bank) Rent() Rent { return b.rent }

func lockKeys(scope []pubkey.Pubkey) []string {
	keys := make([]string, len(scope))
	for i, addr := range scope {
		keys[i] = string(addr[:])
	}
	return keys
}

// Execute runs fn with write locks on every address in scope. The accounts fn
// changed and the entry it returns are committed in one store commit; if fn or
// the commit fails nothing is persisted.
func (b *Bank) Execute(ctx context.Context, program, signer pubkey.Pubkey, scope []pubkey.Pubkey, fn Handler) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := b.locks.LockAll(lockKeys(scope))
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx := newTxn(ctx, b.store, b.rent, program, signer, scope, true)
	defer tx.close()

	entry, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errors.New("transaction handler returned no journal entry")
	}
	accounts, err := tx.changes()
	if err != nil {
		return nil, err
	}

	entry.Signature = uuid.NewString()
	entry.CreatedAt = b.now().UnixMilli()
	if entry.Wallet.IsZero() {
		entry.Wallet = signer
	}
	if err := b.store.Commit(ctx, accounts, entry); err != nil {
		return nil, fmt.Errorf("commit %s: %w", entry.Kind, err)
	}

	b.log.WithFields(logrus.Fields{
		"signature": entry.Signature,
		"kind":      entry.Kind,
		"wallet":    entry.Wallet.String(),
		"accounts":  len(accounts),
	}).Debug("Transaction committed")
	return entry, nil
}

// View runs fn against a read-only transaction holding read locks on scope.
func (b *Bank) View(ctx context.Context, program pubkey.Pubkey, scope []pubkey.Pubkey, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := b.locks.RLockAll(lockKeys(scope))
	defer unlock()

	tx := newTxn(ctx, b.store, b.rent, program, pubkey.Pubkey{}, scope, false)
	defer tx.close()
	return fn(tx)
}

// Account reads the raw account at addr.
func (b *Bank) Account(ctx context.Context, addr pubkey.Pubkey) (*domain.Account, error) {
	var out *domain.Account
	err := b.View(ctx, pubkey.SystemProgramID, []pubkey.Pubkey{addr}, func(tx *Txn) error {
		a, err := tx.Account(addr)
		out = a
		return err
	})
	return out, err
}

// Airdrop mints lamports into a wallet. It is the faucet used to fund wallets
// in test and development deployments.
func (b *Bank) Airdrop(ctx context.Context, wallet pubkey.Pubkey, lamports uint64) (*domain.Transaction, error) {
	return b.Execute(ctx, pubkey.SystemProgramID, wallet, []pubkey.Pubkey{wallet}, func(tx *Txn) (*domain.Transaction, error) {
		if err := tx.mint(wallet, lamports); err != nil {
			return nil, err
		}
		return &domain.Transaction{Kind: domain.KindAirdrop, Wallet: wallet, Amount: lamports}, nil
	})
}

// Transactions pages a wallet's journal, newest first.
func (b *Bank) Transactions(ctx context.Context, wallet pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error) {
	return b.store.Transactions(ctx, wallet, offset, limit)
}

// Accounts pages the accounts owned by owner.
func (b *Bank) Accounts(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Account, int64, error) {
	return b.store.Accounts(ctx, owner, offset, limit)
}
