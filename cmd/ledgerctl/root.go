package main

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"account_manager/internal/ledger"
	"account_manager/internal/pubkey"
)

var ErrBadKeyFile = errors.New("key file does not hold a valid ed25519 keypair")

// keyFile is the on-disk keypair. Secret is the 64-byte ed25519 private key.
type keyFile struct {
	Public string `json:"public"`
	Secret string `json:"secret"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "wallet helper for the account ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeygenCmd(), newDeriveCmd(), newSignChallengeCmd())
	return root
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "create a wallet keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(keyFile{
				Public: base58.Encode(pub),
				Secret: base58.Encode(priv),
			}, "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			if err := os.WriteFile(out, b, 0o600); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), base58.Encode(pub))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the keypair to this file instead of stdout")
	return cmd
}

func newDeriveCmd() *cobra.Command {
	var program string
	cmd := &cobra.Command{
		Use:   "derive <owner>",
		Short: "print the record address and bump of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := pubkey.Parse(args[0])
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			id, err := pubkey.Parse(program)
			if err != nil {
				return fmt.Errorf("program: %w", err)
			}
			addr, bump, err := ledger.Derive(id, owner)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", addr, bump)
			return err
		},
	}
	cmd.Flags().StringVar(&program, "program", ledger.DefaultProgramID.String(), "program id records are derived under")
	return cmd
}

func newSignChallengeCmd() *cobra.Command {
	var keyPath string
	cmd := &cobra.Command{
		Use:   "sign-challenge <challenge>",
		Short: "sign a login challenge for POST /session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := loadKey(keyPath)
			if err != nil {
				return err
			}
			sig := ed25519.Sign(priv, []byte(args[0]))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), base58.Encode(sig))
			return err
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "keypair file written by keygen")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func loadKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadKeyFile, err)
	}
	secret, err := base58.Decode(kf.Secret)
	if err != nil || len(secret) != ed25519.PrivateKeySize {
		return nil, ErrBadKeyFile
	}
	priv := ed25519.PrivateKey(secret)
	if base58.Encode(priv.Public().(ed25519.PublicKey)) != kf.Public {
		return nil, ErrBadKeyFile
	}
	return priv, nil
}
