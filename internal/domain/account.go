package domain

import "account_manager/internal/pubkey" // Address type

// Account Model: raw storage behind every address (wallets and derived records)
type Account struct {
	Address   pubkey.Pubkey `gorm:"primaryKey;type:varchar(44)" json:"address"`  // Base58 address
	Lamports  uint64        `gorm:"not null;default:0" json:"lamports"`          // Native currency held
	Owner     pubkey.Pubkey `gorm:"type:varchar(44);index;not null" json:"owner"` // Program allowed to mutate data
	Data      []byte        `gorm:"type:varbinary(10240)" json:"data"`           // Program-defined payload
	Version   uint64        `gorm:"not null;default:0" json:"version"`           // Optimistic lock, bumped on every commit
	UpdatedAt int64         `gorm:"autoUpdateTime:milli" json:"updated_at"`      // Last commit in milliseconds
}

// Clone returns a deep copy so callers never share Data
func (a *Account) Clone() *Account {
	cp := *a
	if a.Data != nil {
		cp.Data = make([]byte, len(a.Data))
		copy(cp.Data, a.Data)
	}
	return &cp
}

// Allocated reports whether the account holds program data
func (a *Account) Allocated() bool {
	return len(a.Data) != 0 || a.Owner != pubkey.SystemProgramID
}
