package ledger

import (
	"errors"

	"account_manager/internal/record"
	"account_manager/internal/runtime"
	"account_manager/internal/store"
)

var (
	// ErrInsufficientFunds is shared with the runtime transfer.
	ErrInsufficientFunds       = runtime.ErrInsufficientFunds
	ErrBalanceOverflow         = errors.New("balance overflow")
	ErrBalanceUnderflow        = errors.New("balance underflow")
	ErrAccountNotFound         = errors.New("account not initialized")
	ErrUnauthorized            = errors.New("signer is not the record owner")
	ErrRentReserveUnaffordable = errors.New("wallet cannot fund the rent-exempt reserve")
	ErrInconsistentState       = errors.New("record balance disagrees with account holdings")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrSeedsMismatch           = errors.New("account does not match the derived address")
	ErrWrongProgramOwner       = errors.New("account owned by a different program")
)

// Error codes returned to API callers.
const (
	CodeInsufficientFunds       = "InsufficientFunds"
	CodeBalanceOverflow         = "BalanceOverflow"
	CodeBalanceUnderflow        = "BalanceUnderflow"
	CodeAccountNotFound         = "AccountNotFound"
	CodeAuthorization           = "AuthorizationError"
	CodeRentReserveUnaffordable = "RentReserveUnaffordable"
	CodeInconsistentState       = "InconsistentState"
	CodeInvalidAmount           = "InvalidAmount"
	CodeSeedsMismatch           = "ConstraintSeeds"
	CodeConflict                = "Conflict"
	CodeInternal                = "InternalError"
)

var codes = []struct {
	err  error
	code string
}{
	// Order matters: the reserve error wraps the insufficient funds error.
	{ErrRentReserveUnaffordable, CodeRentReserveUnaffordable},
	{ErrInconsistentState, CodeInconsistentState},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrBalanceOverflow, CodeBalanceOverflow},
	{ErrBalanceUnderflow, CodeBalanceUnderflow},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrUnauthorized, CodeAuthorization},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrSeedsMismatch, CodeSeedsMismatch},
	{ErrWrongProgramOwner, CodeInconsistentState},
	{record.ErrDataTooSmall, CodeInconsistentState},
	{record.ErrDiscriminatorMismatch, CodeInconsistentState},
	{store.ErrConflict, CodeConflict},
}

// Code maps err to the stable code reported to callers.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
