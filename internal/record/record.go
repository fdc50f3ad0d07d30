// Package record defines the on-chain layout of a ledger account record.
package record

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"account_manager/internal/pubkey"
)

const (
	DiscriminatorSize = 8
	// Space is the allocated data length: discriminator, owner, balance, bump.
	Space = DiscriminatorSize + pubkey.Size + 8 + 1
)

var (
	ErrDataTooSmall          = errors.New("account data too small for record")
	ErrDiscriminatorMismatch = errors.New("account discriminator did not match")
)

var discriminator = func() [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	sum := sha256.Sum256([]byte("account:MyAccount"))
	copy(d[:], sum[:DiscriminatorSize])
	return d
}()

// Record is the per-owner balance record stored at the derived address.
type Record struct {
	Owner   pubkey.Pubkey `json:"owner"`
	Balance uint64        `json:"balance"`
	Bump    uint8         `json:"bump"`
}

// Discriminator returns the 8-byte tag that prefixes every encoded record.
func Discriminator() []byte {
	return bytes.Clone(discriminator[:])
}

// Encode returns exactly Space bytes.
func Encode(r Record) ([]byte, error) {
	body, err := borsh.Serialize(r)
	if err != nil {
		return nil, fmt.Errorf("serialize record: %w", err)
	}
	out := make([]byte, 0, Space)
	out = append(out, discriminator[:]...)
	out = append(out, body...)
	if len(out) != Space {
		return nil, fmt.Errorf("encoded record is %d bytes, want %d", len(out), Space)
	}
	return out, nil
}

func Decode(data []byte) (Record, error) {
	var r Record
	if len(data) < Space {
		return r, fmt.Errorf("%w: %d bytes", ErrDataTooSmall, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], discriminator[:]) {
		return r, ErrDiscriminatorMismatch
	}
	if err := borsh.Deserialize(&r, data[DiscriminatorSize:Space]); err != nil {
		return r, fmt.Errorf("deserialize record: %w", err)
	}
	return r, nil
}
