package runtime

import (
	"fmt"
	"math"
	"math/bits"
)

// AccountStorageOverhead is charged on top of an account's data length.
const AccountStorageOverhead = 128

// MaxPermittedDataLength caps a single allocation.
const MaxPermittedDataLength = 10 * 1024 * 1024

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionYears      = 2
)

// Rent decides the reserve an allocated account must keep to persist.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent charges 3480 lamports per byte-year for two years.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionYears:      DefaultExemptionYears,
	}
}

// MinimumBalance is the rent-exempt reserve for space bytes of data. A
// reserve too large for a uint64 saturates, which no account can hold.
func (r Rent) MinimumBalance(space uint64) uint64 {
	v, ok := r.reserve(space)
	if !ok {
		return math.MaxUint64
	}
	return v
}

func (r Rent) reserve(space uint64) (uint64, bool) {
	size, carry := bits.Add64(AccountStorageOverhead, space, 0)
	if carry != 0 {
		return 0, false
	}
	hi, perYear := bits.Mul64(size, r.LamportsPerByteYear)
	if hi != 0 {
		return 0, false
	}
	hi, total := bits.Mul64(perYear, r.ExemptionYears)
	return total, hi == 0
}

// Validate rejects rates under which the reserve for the largest permitted
// allocation does not fit in a uint64.
func (r Rent) Validate() error {
	if _, ok := r.reserve(MaxPermittedDataLength); !ok {
		return fmt.Errorf("%w: rent of %d lamports per byte-year over %d years", ErrArithmeticOverflow, r.LamportsPerByteYear, r.ExemptionYears)
	}
	return nil
}

// IsExempt reports whether lamports cover the reserve for space bytes.
func (r Rent) IsExempt(lamports, space uint64) bool {
	return lamports >= r.MinimumBalance(space)
}
