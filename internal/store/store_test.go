package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
	"account_manager/internal/testutil"
)

func addr(b byte) pubkey.Pubkey {
	var p pubkey.Pubkey
	p[0] = b
	p[31] = b
	return p
}

func openPebble(t *testing.T) Store {
	p, err := OpenPebble("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// backends maps each store to a setup that runs once per backend and returns
// a constructor for an empty store.
func backends() map[string]func(t *testing.T) func(t *testing.T) Store {
	return map[string]func(t *testing.T) func(t *testing.T) Store{
		"memory": func(*testing.T) func(*testing.T) Store {
			return func(*testing.T) Store { return NewMemory() }
		},
		"pebble": func(*testing.T) func(*testing.T) Store { return openPebble },
		"mysql": func(t *testing.T) func(*testing.T) Store {
			gdb := testutil.SetupMySQL(t)
			return func(t *testing.T) Store {
				require.NoError(t, gdb.Exec("DELETE FROM transactions").Error)
				require.NoError(t, gdb.Exec("DELETE FROM accounts").Error)
				return NewGorm(gdb)
			}
		},
	}
}

func TestStoreBackends(t *testing.T) {
	for name, setup := range backends() {
		t.Run(name, func(t *testing.T) {
			open := setup(t)

			t.Run("missing account", func(t *testing.T) {
				s := open(t)
				_, err := s.Account(context.Background(), addr(1))
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("commit bumps versions", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				program := addr(9)
				a := &domain.Account{Address: addr(1), Lamports: 10, Owner: program, Data: []byte{1, 2, 3}}
				tx := &domain.Transaction{Signature: "s1", Kind: domain.KindDeposit, Wallet: addr(2), Amount: 10, CreatedAt: 1}
				require.NoError(t, s.Commit(ctx, []*domain.Account{a}, tx))

				got, err := s.Account(ctx, addr(1))
				require.NoError(t, err)
				assert.Equal(t, uint64(1), got.Version)
				assert.Equal(t, uint64(10), got.Lamports)
				assert.Equal(t, program, got.Owner)
				assert.Equal(t, []byte{1, 2, 3}, got.Data)

				got.Lamports = 25
				require.NoError(t, s.Commit(ctx, []*domain.Account{got}, &domain.Transaction{Signature: "s2", Wallet: addr(2), CreatedAt: 2}))
				again, err := s.Account(ctx, addr(1))
				require.NoError(t, err)
				assert.Equal(t, uint64(2), again.Version)
				assert.Equal(t, uint64(25), again.Lamports)
			})

			t.Run("stale version is rejected atomically", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.Commit(ctx, []*domain.Account{{Address: addr(1), Lamports: 5}}, &domain.Transaction{Signature: "a", Wallet: addr(1), CreatedAt: 1}))

				fresh := &domain.Account{Address: addr(3), Lamports: 7}
				stale := &domain.Account{Address: addr(1), Lamports: 99} // version 0, stored is 1
				err := s.Commit(ctx, []*domain.Account{fresh, stale}, &domain.Transaction{Signature: "b", Wallet: addr(1), CreatedAt: 2})
				assert.ErrorIs(t, err, ErrConflict)

				_, err = s.Account(ctx, addr(3))
				assert.ErrorIs(t, err, ErrNotFound)
				kept, err := s.Account(ctx, addr(1))
				require.NoError(t, err)
				assert.Equal(t, uint64(5), kept.Lamports)

				txs, total, err := s.Transactions(ctx, addr(1), 0, 10)
				require.NoError(t, err)
				assert.Equal(t, int64(1), total)
				require.Len(t, txs, 1)
				assert.Equal(t, "a", txs[0].Signature)
			})

			t.Run("transactions newest first and paged", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				wallet := addr(4)
				for i, sig := range []string{"t1", "t2", "t3"} {
					require.NoError(t, s.Commit(ctx, nil, &domain.Transaction{Signature: sig, Wallet: wallet, CreatedAt: int64(i + 1)}))
				}
				require.NoError(t, s.Commit(ctx, nil, &domain.Transaction{Signature: "other", Wallet: addr(5), CreatedAt: 9}))

				txs, total, err := s.Transactions(ctx, wallet, 0, 2)
				require.NoError(t, err)
				assert.Equal(t, int64(3), total)
				require.Len(t, txs, 2)
				assert.Equal(t, "t3", txs[0].Signature)
				assert.Equal(t, "t2", txs[1].Signature)

				txs, _, err = s.Transactions(ctx, wallet, 2, 2)
				require.NoError(t, err)
				require.Len(t, txs, 1)
				assert.Equal(t, "t1", txs[0].Signature)

				txs, _, err = s.Transactions(ctx, wallet, 10, 2)
				require.NoError(t, err)
				assert.Empty(t, txs)
			})

			t.Run("same timestamp keeps commit order", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				wallet := addr(6)
				require.NoError(t, s.Commit(ctx, nil, &domain.Transaction{Signature: "z-deposit", Wallet: wallet, CreatedAt: 5}))
				require.NoError(t, s.Commit(ctx, nil, &domain.Transaction{Signature: "a-withdraw", Wallet: wallet, CreatedAt: 5}))

				txs, _, err := s.Transactions(ctx, wallet, 0, 10)
				require.NoError(t, err)
				require.Len(t, txs, 2)
				assert.Equal(t, "a-withdraw", txs[0].Signature)
				assert.Equal(t, "z-deposit", txs[1].Signature)
			})

			t.Run("accounts by owner", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				program := addr(8)
				require.NoError(t, s.Commit(ctx, []*domain.Account{
					{Address: addr(1), Owner: program, Data: []byte{1}},
					{Address: addr(2), Owner: program, Data: []byte{2}},
					{Address: addr(3), Lamports: 1},
				}, &domain.Transaction{Signature: "x", Wallet: addr(3), CreatedAt: 1}))

				accts, total, err := s.Accounts(ctx, program, 0, 10)
				require.NoError(t, err)
				assert.Equal(t, int64(2), total)
				assert.Len(t, accts, 2)
			})
		})
	}
}

func TestPebbleJournalOrderSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	wallet := addr(7)

	p, err := OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, p.Commit(ctx, nil, &domain.Transaction{Signature: "z-first", Wallet: wallet, CreatedAt: 5}))
	require.NoError(t, p.Close())

	p, err = OpenPebble(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Commit(ctx, nil, &domain.Transaction{Signature: "a-second", Wallet: wallet, CreatedAt: 5}))

	txs, total, err := p.Transactions(ctx, wallet, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txs, 2)
	assert.Equal(t, "a-second", txs[0].Signature)
	assert.Equal(t, "z-first", txs[1].Signature)
}

func TestPebbleClose(t *testing.T) {
	p, err := OpenPebble("")
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.Account(context.Background(), addr(1))
	assert.ErrorIs(t, err, ErrClosed)
}
