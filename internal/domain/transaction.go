package domain

import "account_manager/internal/pubkey" // Address type

// Transaction kinds
const (
	KindDeposit  = "deposit"  // Wallet -> record
	KindWithdraw = "withdraw" // Record -> wallet
	KindAirdrop  = "airdrop"  // Faucet -> wallet
)

// Transaction Model: journal entry committed together with the account changes it describes
type Transaction struct {
	ID        uint          `gorm:"primaryKey" json:"-"`                          // Primary key
	Signature string        `gorm:"uniqueIndex;size:36;not null" json:"signature"` // Transaction id
	Kind      string        `gorm:"size:16;not null" json:"kind"`                  // deposit, withdraw, airdrop
	Wallet    pubkey.Pubkey `gorm:"type:varchar(44);index;not null" json:"wallet"` // Signing wallet
	Account   pubkey.Pubkey `gorm:"type:varchar(44)" json:"account"`               // Derived record address, zero for airdrops
	Amount    uint64        `json:"amount"`                                        // Lamports moved
	Balance   uint64        `json:"balance"`                                       // Record balance after the transaction
	Reserve   uint64        `json:"reserve"`                                       // Rent reserve paid when the record was created
	CreatedAt int64         `gorm:"autoCreateTime:milli;index" json:"created_at"`  // Timestamp of creation in milliseconds
}
