package store

import (
	"context"
	"sort"
	"sync"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
)

// Memory keeps everything in maps. Used by tests and single-process runs.
type Memory struct {
	mu       sync.RWMutex
	accounts map[pubkey.Pubkey]*domain.Account
	txs      []domain.Transaction
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[pubkey.Pubkey]*domain.Account)}
}

func (m *Memory) Account(ctx context.Context, addr pubkey.Pubkey) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	a, ok := m.accounts[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *Memory) Commit(ctx context.Context, accounts []*domain.Account, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, a := range accounts {
		if m.storedVersion(a.Address) != a.Version {
			return ErrConflict
		}
	}
	var now int64
	if tx != nil {
		now = tx.CreatedAt
	}
	for _, a := range accounts {
		cp := a.Clone()
		cp.Version++
		cp.UpdatedAt = now
		m.accounts[cp.Address] = cp
	}
	if tx != nil {
		m.txs = append(m.txs, *tx)
	}
	return nil
}

func (m *Memory) storedVersion(addr pubkey.Pubkey) uint64 {
	if a, ok := m.accounts[addr]; ok {
		return a.Version
	}
	return 0
}

func (m *Memory) Transactions(ctx context.Context, wallet pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Transaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].Wallet == wallet {
			out = append(out, m.txs[i])
		}
	}
	return page(out, offset, limit), int64(len(out)), nil
}

func (m *Memory) Accounts(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Account, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if a.Owner == owner {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return page(out, offset, limit), int64(len(out)), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
