package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/sirupsen/logrus"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
	"account_manager/internal/record"
	"account_manager/internal/runtime"
)

// WithdrawDivisor makes every withdrawal a tenth of the balance, rounded down.
const WithdrawDivisor = 10

// Receipt describes a committed deposit or withdrawal.
type Receipt struct {
	Signature   string        `json:"signature"`
	Address     pubkey.Pubkey `json:"account"`
	Record      record.Record `json:"record"`
	Amount      uint64        `json:"amount"`
	Reserve     uint64        `json:"reserve,omitempty"`
	Initialized bool          `json:"initialized"`
}

// DepositRequest is signed by Owner. Account, when set, is the record address
// the caller expects; it must equal the derived one.
type DepositRequest struct {
	Owner   pubkey.Pubkey
	Account pubkey.Pubkey
	Amount  uint64
}

// WithdrawRequest names the owner whose record pays out a tenth of its balance.
type WithdrawRequest struct {
	Owner   pubkey.Pubkey
	Account pubkey.Pubkey
}

// Lookup is the result of Fetch. Found is false when owner never deposited.
type Lookup struct {
	Address  pubkey.Pubkey `json:"account"`
	Bump     uint8         `json:"bump"`
	Found    bool          `json:"found"`
	Record   record.Record `json:"record"`
	Lamports uint64        `json:"lamports"`
}

func (p *Program) resolve(owner, asserted pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	addr, bump, err := p.Derive(owner)
	if err != nil {
		return pubkey.Pubkey{}, 0, fmt.Errorf("derive record for %s: %w", owner, err)
	}
	if !asserted.IsZero() && asserted != addr {
		return pubkey.Pubkey{}, 0, fmt.Errorf("%w: got %s, derived %s", ErrSeedsMismatch, asserted, addr)
	}
	return addr, bump, nil
}

// Deposit moves Amount lamports from the owner's wallet into the owner's
// record and adds it to the record balance, creating the record first if
// needed.
func (p *Program) Deposit(ctx context.Context, req DepositRequest) (receipt *Receipt, err error) {
	defer func() { p.observe(domain.KindDeposit, receipt, err) }()

	log := p.log.WithFields(logrus.Fields{
		"wallet": req.Owner.String(),
		"amount": req.Amount,
	})
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	addr, bump, err := p.resolve(req.Owner, req.Account)
	if err != nil {
		return nil, err
	}

	r := &Receipt{Address: addr, Amount: req.Amount}
	entry, err := p.bank.Execute(ctx, p.id, req.Owner, []pubkey.Pubkey{req.Owner, addr}, func(tx *runtime.Txn) (*domain.Transaction, error) {
		rec, found, err := p.loadRecord(tx, addr)
		if err != nil {
			return nil, err
		}
		if !found {
			before, err := tx.Account(addr)
			if err != nil {
				return nil, err
			}
			if rec, err = p.initRecord(tx, addr, req.Owner, bump); err != nil {
				return nil, err
			}
			after, err := tx.Account(addr)
			if err != nil {
				return nil, err
			}
			r.Initialized = true
			r.Reserve = after.Lamports - before.Lamports
		} else if err := authorize(rec, req.Owner, bump); err != nil {
			return nil, err
		}

		balance, carry := bits.Add64(rec.Balance, req.Amount, 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, rec.Balance, req.Amount)
		}
		// Holdings are balance plus reserve, so they can overflow before the balance does.
		if err := tx.Transfer(req.Owner, addr, req.Amount); err != nil {
			if errors.Is(err, runtime.ErrArithmeticOverflow) {
				return nil, fmt.Errorf("%w: record holdings: %w", ErrBalanceOverflow, err)
			}
			return nil, err
		}
		rec.Balance = balance
		if err := p.saveRecord(tx, addr, rec); err != nil {
			return nil, err
		}

		r.Record = rec
		return &domain.Transaction{
			Kind:    domain.KindDeposit,
			Wallet:  req.Owner,
			Account: addr,
			Amount:  req.Amount,
			Balance: rec.Balance,
			Reserve: r.Reserve,
		}, nil
	})
	if err != nil {
		log.WithFields(logrus.Fields{"account": addr.String(), "error": err.Error()}).Warn("Deposit failed")
		return nil, err
	}
	r.Signature = entry.Signature

	log.WithFields(logrus.Fields{
		"account":     addr.String(),
		"signature":   r.Signature,
		"balance":     r.Record.Balance,
		"initialized": r.Initialized,
	}).Info("Deposit transaction")
	return r, nil
}

// Withdraw pays a tenth of the record balance, rounded down, back to the
// owner's wallet. A zero balance withdraws nothing and succeeds.
func (p *Program) Withdraw(ctx context.Context, req WithdrawRequest) (receipt *Receipt, err error) {
	defer func() { p.observe(domain.KindWithdraw, receipt, err) }()

	log := p.log.WithField("wallet", req.Owner.String())
	addr, bump, err := p.resolve(req.Owner, req.Account)
	if err != nil {
		return nil, err
	}

	r := &Receipt{Address: addr}
	entry, err := p.bank.Execute(ctx, p.id, req.Owner, []pubkey.Pubkey{req.Owner, addr}, func(tx *runtime.Txn) (*domain.Transaction, error) {
		rec, found, err := p.loadRecord(tx, addr)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
		}
		if err := authorize(rec, req.Owner, bump); err != nil {
			return nil, err
		}

		amount := rec.Balance / WithdrawDivisor
		balance, borrow := bits.Sub64(rec.Balance, amount, 0)
		if borrow != 0 {
			return nil, fmt.Errorf("%w: %d - %d", ErrBalanceUnderflow, rec.Balance, amount)
		}
		if err := tx.Transfer(addr, req.Owner, amount); err != nil {
			if errors.Is(err, runtime.ErrInsufficientFunds) {
				return nil, fmt.Errorf("%w: record balance %d: %w", ErrInconsistentState, rec.Balance, err)
			}
			return nil, err
		}
		rec.Balance = balance
		if err := p.saveRecord(tx, addr, rec); err != nil {
			return nil, err
		}

		r.Amount = amount
		r.Record = rec
		return &domain.Transaction{
			Kind:    domain.KindWithdraw,
			Wallet:  req.Owner,
			Account: addr,
			Amount:  amount,
			Balance: rec.Balance,
		}, nil
	})
	if err != nil {
		fields := logrus.Fields{"account": addr.String(), "error": err.Error()}
		if errors.Is(err, ErrInconsistentState) {
			log.WithFields(fields).Error("Withdraw found record out of sync with holdings")
		} else {
			log.WithFields(fields).Warn("Withdraw failed")
		}
		return nil, err
	}
	r.Signature = entry.Signature

	log.WithFields(logrus.Fields{
		"account":   addr.String(),
		"signature": r.Signature,
		"amount":    r.Amount,
		"balance":   r.Record.Balance,
	}).Info("Withdraw transaction")
	return r, nil
}

// Fetch reads owner's record without changing anything.
func (p *Program) Fetch(ctx context.Context, owner pubkey.Pubkey) (Lookup, error) {
	addr, bump, err := p.resolve(owner, pubkey.Pubkey{})
	if err != nil {
		return Lookup{}, err
	}
	out := Lookup{Address: addr, Bump: bump}
	err = p.bank.View(ctx, p.id, []pubkey.Pubkey{addr}, func(tx *runtime.Txn) error {
		rec, found, err := p.loadRecord(tx, addr)
		if err != nil {
			return err
		}
		acct, err := tx.Account(addr)
		if err != nil {
			return err
		}
		out.Found = found
		out.Record = rec
		out.Lamports = acct.Lamports
		return nil
	})
	return out, err
}

// History lists the owner's journal, newest first.
func (p *Program) History(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error) {
	return p.bank.Transactions(ctx, owner, offset, limit)
}

// Records lists every record account owned by this program.
func (p *Program) Records(ctx context.Context, offset, limit int) ([]domain.Account, int64, error) {
	return p.bank.Accounts(ctx, p.id, offset, limit)
}
