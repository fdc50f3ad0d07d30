// Package ledger is the balance program: one derived record per wallet,
// deposits into it and withdrawals of a tenth of its balance.
package ledger

import (
	"github.com/sirupsen/logrus"

	"account_manager/internal/pubkey"
	"account_manager/internal/runtime"
)

// SeedTag prefixes the seeds of every record address.
const SeedTag = "my_account"

// DefaultProgramID is the address records are derived under unless configured.
var DefaultProgramID = pubkey.MustParse("GdWFYaqLPJUuFoHMztLQQKqbyq1tWxXnRot2ckfavHTT")

// Observer is told about every finished operation.
type Observer interface {
	ObserveOperation(kind string, receipt *Receipt, err error)
}

// Program executes ledger operations against a bank under one program id.
type Program struct {
	id       pubkey.Pubkey
	bank     *runtime.Bank
	log      *logrus.Entry
	observer Observer
}

// Option configures a Program.
type Option func(*Program)

// WithLogger sets the entry operations are logged through.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Program) { p.log = log }
}

// WithObserver reports every finished operation to o.
func WithObserver(o Observer) Option {
	return func(p *Program) { p.observer = o }
}

// New returns the program with address id running on bank.
func New(id pubkey.Pubkey, bank *runtime.Bank, opts ...Option) *Program {
	p := &Program{
		id:   id,
		bank: bank,
		log:  logrus.WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("program", id.String())
	return p
}

// ID is the program address records are derived under.
func (p *Program) ID() pubkey.Pubkey { return p.id }

// Bank is the runtime the program executes on.
func (p *Program) Bank() *runtime.Bank { return p.bank }

// Derive returns owner's record address and bump under program id.
func Derive(id, owner pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	return pubkey.FindProgramAddress([][]byte{[]byte(SeedTag), owner[:]}, id)
}

// Derive returns owner's record address under this program.
func (p *Program) Derive(owner pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	return Derive(p.id, owner)
}

func (p *Program) observe(kind string, r *Receipt, err error) {
	if p.observer != nil {
		p.observer.ObserveOperation(kind, r, err)
	}
}
