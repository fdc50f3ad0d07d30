package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
	"account_manager/internal/store"
)

// Txn is a copy-on-write view of the accounts a transaction has locked.
// Nothing reaches the store until the owning Bank commits it.
type Txn struct {
	ctx      context.Context
	store    store.Store
	rent     Rent
	program  pubkey.Pubkey
	signer   pubkey.Pubkey
	writable bool
	done     bool

	scope    map[pubkey.Pubkey]struct{}
	accounts map[pubkey.Pubkey]*domain.Account
	dirty    []pubkey.Pubkey
	isDirty  map[pubkey.Pubkey]struct{}
}

func newTxn(ctx context.Context, st store.Store, rent Rent, program, signer pubkey.Pubkey, scope []pubkey.Pubkey, writable bool) *Txn {
	t := &Txn{
		ctx:      ctx,
		store:    st,
		rent:     rent,
		program:  program,
		signer:   signer,
		writable: writable,
		scope:    make(map[pubkey.Pubkey]struct{}, len(scope)),
		accounts: make(map[pubkey.Pubkey]*domain.Account, len(scope)),
		isDirty:  make(map[pubkey.Pubkey]struct{}, len(scope)),
	}
	for _, addr := range scope {
		t.scope[addr] = struct{}{}
	}
	return t
}

// Program is the program the transaction was invoked for.
func (t *Txn) Program() pubkey.Pubkey { return t.program }

// Signer is the wallet that authorized the transaction.
func (t *Txn) Signer() pubkey.Pubkey { return t.signer }

// MinimumBalance is the bank's rent reserve for space bytes.
func (t *Txn) MinimumBalance(space uint64) uint64 {
	return t.rent.MinimumBalance(space)
}

// Account returns a copy of addr as seen by this transaction. Addresses never
// written read as empty system-owned accounts.
func (t *Txn) Account(addr pubkey.Pubkey) (*domain.Account, error) {
	a, err := t.load(addr)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (t *Txn) load(addr pubkey.Pubkey) (*domain.Account, error) {
	if t.done {
		return nil, ErrTxnClosed
	}
	if _, ok := t.scope[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotInScope, addr)
	}
	if a, ok := t.accounts[addr]; ok {
		return a, nil
	}
	a, err := t.store.Account(t.ctx, addr)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = &domain.Account{Address: addr, Owner: pubkey.SystemProgramID}
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", addr, err)
	}
	t.accounts[addr] = a
	return a, nil
}

func (t *Txn) loadWritable(addr pubkey.Pubkey) (*domain.Account, error) {
	if !t.writable {
		return nil, ErrReadOnly
	}
	return t.load(addr)
}

func (t *Txn) markDirty(addr pubkey.Pubkey) {
	if _, ok := t.isDirty[addr]; ok {
		return
	}
	t.isDirty[addr] = struct{}{}
	t.dirty = append(t.dirty, addr)
}

// Transfer moves lamports from one account to another. A system-owned source
// must be the signer; a source owned by the invoking program may only spend
// what sits above its rent-exempt reserve.
func (t *Txn) Transfer(from, to pubkey.Pubkey, lamports uint64) error {
	src, err := t.loadWritable(from)
	if err != nil {
		return err
	}
	dst, err := t.loadWritable(to)
	if err != nil {
		return err
	}

	var spendable uint64
	switch src.Owner {
	case pubkey.SystemProgramID:
		if from != t.signer {
			return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, from)
		}
		if len(src.Data) != 0 {
			return ErrTransferFromDataAccount
		}
		spendable = src.Lamports
	case t.program:
		if reserve := t.rent.MinimumBalance(uint64(len(src.Data))); src.Lamports > reserve {
			spendable = src.Lamports - reserve
		}
	default:
		return fmt.Errorf("%w: %s owned by %s", ErrExternalAccountLamportSpend, from, src.Owner)
	}

	if lamports == 0 || from == to {
		return nil
	}
	if lamports > spendable {
		return fmt.Errorf("%w: %s has %d spendable, need %d", ErrInsufficientFunds, from, spendable, lamports)
	}
	sum, carry := bits.Add64(dst.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("%w: crediting %s", ErrArithmeticOverflow, to)
	}

	src.Lamports -= lamports
	dst.Lamports = sum
	t.markDirty(from)
	t.markDirty(to)
	return nil
}

// CreateAccount allocates space bytes at addr, assigns it to the invoking
// program and funds it to the rent-exempt reserve from payer. addr must be the
// program address for seeds. Lamports already sitting at an unallocated addr
// count towards the reserve.
func (t *Txn) CreateAccount(payer, addr pubkey.Pubkey, space uint64, seeds [][]byte) error {
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: %d", ErrInvalidAccountDataLength, space)
	}
	derived, err := pubkey.CreateProgramAddress(seeds, t.program)
	if err != nil || derived != addr {
		return fmt.Errorf("%w: %s is not derived from the given seeds", ErrMissingRequiredSignature, addr)
	}
	acct, err := t.loadWritable(addr)
	if err != nil {
		return err
	}
	if acct.Allocated() {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, addr)
	}

	if required := t.rent.MinimumBalance(space); acct.Lamports < required {
		if err := t.Transfer(payer, addr, required-acct.Lamports); err != nil {
			return err
		}
	}
	acct.Data = make([]byte, space)
	acct.Owner = t.program
	t.markDirty(addr)
	return nil
}

// WriteData overwrites the data of an account owned by the invoking program.
func (t *Txn) WriteData(addr pubkey.Pubkey, data []byte) error {
	acct, err := t.loadWritable(addr)
	if err != nil {
		return err
	}
	if acct.Owner != t.program {
		return fmt.Errorf("%w: %s owned by %s", ErrExternalAccountDataModified, addr, acct.Owner)
	}
	if len(data) != len(acct.Data) {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", ErrAccountDataSizeMismatch, addr, len(acct.Data), len(data))
	}
	copy(acct.Data, data)
	t.markDirty(addr)
	return nil
}

func (t *Txn) mint(addr pubkey.Pubkey, lamports uint64) error {
	acct, err := t.loadWritable(addr)
	if err != nil {
		return err
	}
	// Derived addresses have no key, so only a program may fund them.
	if acct.Allocated() || !addr.IsOnCurve() {
		return fmt.Errorf("%w: %s", ErrAirdropTarget, addr)
	}
	sum, carry := bits.Add64(acct.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("%w: minting into %s", ErrArithmeticOverflow, addr)
	}
	acct.Lamports = sum
	t.markDirty(addr)
	return nil
}

// changes returns the dirty accounts in first-write order after checking
// that every allocated account still covers its reserve.
func (t *Txn) changes() ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(t.dirty))
	for _, addr := range t.dirty {
		a := t.accounts[addr]
		if len(a.Data) != 0 && !t.rent.IsExempt(a.Lamports, uint64(len(a.Data))) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotRentExempt, addr)
		}
		out = append(out, a)
	}
	return out, nil
}

func (t *Txn) close() {
	t.done = true
}
