// Package store persists accounts and the transaction journal. Every backend
// commits a set of account changes and their journal entry atomically.
package store

import (
	"context"
	"errors"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
)

var (
	ErrNotFound = errors.New("account not found")
	// ErrConflict means an account changed since it was read; the whole commit
	// was rejected.
	ErrConflict = errors.New("concurrent account modification")
	ErrClosed   = errors.New("store is closed")
)

// Store is the account database behind the runtime.
type Store interface {
	// Account returns ErrNotFound for addresses that were never committed.
	Account(ctx context.Context, addr pubkey.Pubkey) (*domain.Account, error)
	// Commit writes accounts and tx together. Each account's Version must equal
	// the stored version (zero for new accounts); stored versions are
	// incremented.
	Commit(ctx context.Context, accounts []*domain.Account, tx *domain.Transaction) error
	// Transactions lists a wallet's journal newest first.
	Transactions(ctx context.Context, wallet pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error)
	// Accounts lists accounts owned by a program.
	Accounts(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Account, int64, error)
	Close() error
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
