package runtime

import "errors"

var (
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrArithmeticOverflow          = errors.New("arithmetic overflow")
	ErrAccountAlreadyInUse         = errors.New("account already in use")
	ErrMissingRequiredSignature    = errors.New("missing required signature")
	ErrExternalAccountLamportSpend = errors.New("program debited an account it does not own")
	ErrExternalAccountDataModified = errors.New("program modified data of an account it does not own")
	ErrAccountDataSizeMismatch     = errors.New("account data size does not match")
	ErrInvalidAccountDataLength    = errors.New("invalid account data length")
	ErrTransferFromDataAccount     = errors.New("transfer source must not carry data")
	ErrAccountNotRentExempt        = errors.New("account would not be rent exempt")
	ErrAddressNotInScope           = errors.New("address not locked by transaction")
	ErrTxnClosed                   = errors.New("transaction already finished")
)

var (
	ErrReadOnly      = errors.New("transaction is read-only")
	ErrAirdropTarget = errors.New("airdrop target must be a system-owned wallet")
)
