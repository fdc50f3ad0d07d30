package record

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account_manager/internal/pubkey"
)

func TestEncodeLayout(t *testing.T) {
	var owner pubkey.Pubkey
	for i := range owner {
		owner[i] = byte(i + 1)
	}
	r := Record{Owner: owner, Balance: 1_000_000_000, Bump: 254}

	data, err := Encode(r)
	require.NoError(t, err)
	require.Len(t, data, Space)

	assert.Equal(t, Discriminator(), data[:DiscriminatorSize])
	assert.Equal(t, owner[:], data[8:40])
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[40:48]))
	assert.Equal(t, byte(254), data[48])

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestDecodeMaxBalance(t *testing.T) {
	data, err := Encode(Record{Balance: math.MaxUint64, Bump: 1})
	require.NoError(t, err)
	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), r.Balance)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	_, err := Decode(make([]byte, Space-1))
	assert.ErrorIs(t, err, ErrDataTooSmall)

	_, err = Decode(make([]byte, Space))
	assert.ErrorIs(t, err, ErrDiscriminatorMismatch)
}
