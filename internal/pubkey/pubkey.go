// Package pubkey holds the 32-byte account address type shared by wallets,
// programs and derived accounts, plus program address derivation.
package pubkey

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the byte length of an address.
const Size = 32

var ErrInvalidPubkey = errors.New("invalid public key")

// Pubkey is an ed25519 public key or a program derived address.
type Pubkey [Size]byte

// SystemProgramID owns every plain wallet account.
var SystemProgramID = Pubkey{}

// Parse decodes a base58 address.
func Parse(s string) (Pubkey, error) {
	var p Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(b) != Size {
		return p, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidPubkey, len(b), Size)
	}
	copy(p[:], b)
	return p, nil
}

// MustParse is Parse for package-level constants.
func MustParse(s string) Pubkey {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromBytes copies b into a Pubkey.
func FromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != Size {
		return p, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(p[:], b)
	return p, nil
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, p[:])
	return b
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// IsOnCurve reports whether p decodes to a point on the ed25519 curve, i.e.
// whether a private key could exist for it.
func (p Pubkey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the address as its base58 string.
func (p Pubkey) Value() (driver.Value, error) {
	return p.String(), nil
}

func (p *Pubkey) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		*p = Pubkey{}
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidPubkey, src)
	}
}
