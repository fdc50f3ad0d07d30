package ledger

import (
	"errors"
	"fmt"

	"account_manager/internal/pubkey"
	"account_manager/internal/record"
	"account_manager/internal/runtime"
)

func recordSeeds(owner pubkey.Pubkey, bump uint8) [][]byte {
	return [][]byte{[]byte(SeedTag), owner[:], {bump}}
}

// loadRecord reports found=false for an address that was never initialized.
func (p *Program) loadRecord(tx *runtime.Txn, addr pubkey.Pubkey) (record.Record, bool, error) {
	acct, err := tx.Account(addr)
	if err != nil {
		return record.Record{}, false, err
	}
	if !acct.Allocated() {
		return record.Record{}, false, nil
	}
	if acct.Owner != p.id {
		return record.Record{}, false, fmt.Errorf("%w: %s owned by %s", ErrWrongProgramOwner, addr, acct.Owner)
	}
	rec, err := record.Decode(acct.Data)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("%w: %s: %w", ErrInconsistentState, addr, err)
	}
	return rec, true, nil
}

// initRecord allocates the record at addr, funds its reserve from owner and
// writes a zero balance.
func (p *Program) initRecord(tx *runtime.Txn, addr, owner pubkey.Pubkey, bump uint8) (record.Record, error) {
	if err := tx.CreateAccount(owner, addr, record.Space, recordSeeds(owner, bump)); err != nil {
		if errors.Is(err, runtime.ErrInsufficientFunds) {
			return record.Record{}, fmt.Errorf("%w: %w", ErrRentReserveUnaffordable, err)
		}
		return record.Record{}, err
	}
	rec := record.Record{Owner: owner, Balance: 0, Bump: bump}
	if err := p.saveRecord(tx, addr, rec); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

func (p *Program) saveRecord(tx *runtime.Txn, addr pubkey.Pubkey, rec record.Record) error {
	data, err := record.Encode(rec)
	if err != nil {
		return err
	}
	if err := tx.WriteData(addr, data); err != nil {
		return fmt.Errorf("save record %s: %w", addr, err)
	}
	return nil
}

// authorize checks the stored record against the signer and derivation.
func authorize(rec record.Record, signer pubkey.Pubkey, bump uint8) error {
	if rec.Owner != signer {
		return fmt.Errorf("%w: record owner %s, signer %s", ErrUnauthorized, rec.Owner, signer)
	}
	if rec.Bump != bump {
		return fmt.Errorf("%w: stored bump %d, derived %d", ErrSeedsMismatch, rec.Bump, bump)
	}
	return nil
}
