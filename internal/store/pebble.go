package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/near/borsh-go"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
)

var (
	accountPrefix = []byte("a/")
	txPrefix      = []byte("t/")
	seqKey        = []byte("s/journal")
)

// Pebble stores accounts and the journal in a local pebble database. Commits
// are a single synced batch; mu serializes the version check with the write.
type Pebble struct {
	mu  sync.RWMutex
	db  *pebble.DB
	seq uint64 // last journal sequence written, persisted at seqKey
}

// OpenPebble opens (or creates) a database at dir. An empty dir keeps the
// database in memory.
func OpenPebble(dir string) (*Pebble, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", dir, err)
	}
	p := &Pebble{db: db}
	val, closer, err := db.Get(seqKey)
	switch {
	case err == nil:
		p.seq = binary.BigEndian.Uint64(val)
		closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		db.Close()
		return nil, fmt.Errorf("read journal sequence: %w", err)
	}
	return p, nil
}

func accountKey(addr pubkey.Pubkey) []byte {
	k := make([]byte, 0, len(accountPrefix)+pubkey.Size)
	k = append(k, accountPrefix...)
	return append(k, addr[:]...)
}

// txKey sorts a wallet's entries newest first. Entries sharing a timestamp
// fall back to commit order through the store-wide sequence.
func txKey(tx *domain.Transaction, seq uint64) []byte {
	k := make([]byte, 0, len(txPrefix)+pubkey.Size+16)
	k = append(k, txPrefix...)
	k = append(k, tx.Wallet[:]...)
	k = binary.BigEndian.AppendUint64(k, math.MaxUint64-uint64(tx.CreatedAt))
	return binary.BigEndian.AppendUint64(k, math.MaxUint64-seq)
}

func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (p *Pebble) Account(ctx context.Context, addr pubkey.Pubkey) (*domain.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.get(addr)
}

// get expects mu to be held.
func (p *Pebble) get(addr pubkey.Pubkey) (*domain.Account, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	val, closer, err := p.db.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	a := new(domain.Account)
	if err := borsh.Deserialize(a, val); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", addr, err)
	}
	return a, nil
}

func (p *Pebble) Commit(ctx context.Context, accounts []*domain.Account, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, a := range accounts {
		var stored uint64
		current, err := p.get(a.Address)
		switch {
		case err == nil:
			stored = current.Version
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
		if stored != a.Version {
			return ErrConflict
		}
		cp := a.Clone()
		cp.Version++
		if tx != nil {
			cp.UpdatedAt = tx.CreatedAt
		}
		val, err := borsh.Serialize(*cp)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", a.Address, err)
		}
		if err := batch.Set(accountKey(a.Address), val, nil); err != nil {
			return err
		}
	}
	seq := p.seq
	if tx != nil {
		seq++
		val, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		if err := batch.Set(txKey(tx, seq), val, nil); err != nil {
			return err
		}
		if err := batch.Set(seqKey, binary.BigEndian.AppendUint64(nil, seq), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	p.seq = seq
	return nil
}

func (p *Pebble) scan(prefix []byte, fn func(val []byte) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return ErrClosed
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *Pebble) Transactions(ctx context.Context, wallet pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error) {
	prefix := append(append([]byte{}, txPrefix...), wallet[:]...)
	var out []domain.Transaction
	err := p.scan(prefix, func(val []byte) error {
		var tx domain.Transaction
		if err := json.Unmarshal(val, &tx); err != nil {
			return err
		}
		out = append(out, tx)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(out, offset, limit), int64(len(out)), nil
}

func (p *Pebble) Accounts(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Account, int64, error) {
	var out []domain.Account
	err := p.scan(accountPrefix, func(val []byte) error {
		var a domain.Account
		if err := borsh.Deserialize(&a, val); err != nil {
			return err
		}
		if a.Owner == owner {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(out, offset, limit), int64(len(out)), nil
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
