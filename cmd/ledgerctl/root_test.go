package main

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account_manager/internal/ledger"
	"account_manager/internal/pubkey"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestKeygenDeriveAndSign(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	public, err := run(t, "keygen", "--out", path)
	require.NoError(t, err)
	owner, err := pubkey.Parse(public)
	require.NoError(t, err)

	out, err := run(t, "derive", public)
	require.NoError(t, err)
	addr, bump, err := ledger.Derive(ledger.DefaultProgramID, owner)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s %d", addr, bump), out)

	out, err = run(t, "sign-challenge", "--key", path, "challenge-token")
	require.NoError(t, err)
	sig, err := base58.Decode(out)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(owner.Bytes()), []byte("challenge-token"), sig))
}

func TestDeriveRejectsBadOwner(t *testing.T) {
	_, err := run(t, "derive", "not-base58!")
	assert.ErrorIs(t, err, pubkey.ErrInvalidPubkey)
}

func TestSignChallengeRejectsTamperedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"public":"11111111111111111111111111111111","secret":"abc"}`), 0o600))
	_, err := run(t, "sign-challenge", "--key", path, "x")
	assert.ErrorIs(t, err, ErrBadKeyFile)

	_, err = run(t, "sign-challenge", "x")
	assert.Error(t, err)
}
