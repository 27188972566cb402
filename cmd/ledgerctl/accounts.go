package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"powtoken/internal/accounts"
	"powtoken/internal/domain"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 key pair",
	Long: `Generate an ed25519 key pair encoded in base58.

Examples:
  ledgerctl keygen
  ledgerctl keygen --out alice.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := accounts.GenerateKey()
		if err != nil {
			return err
		}
		if keygenOut == "" {
			return printJSON(cmd.OutOrStdout(), kp)
		}

		f, err := os.OpenFile(keygenOut, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("create key file: %w", err)
		}
		defer f.Close()
		if err := printJSON(f, kp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\n", kp.PublicKey)
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Register and inspect accounts",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register <name> [public-key]",
	Short: "Register an account",
	Long: `Register an account, optionally with a base58 public key.

Examples:
  ledgerctl account register alice 7Xc...
  ledgerctl account register carol`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 2 {
			key = args[1]
		}
		acc, err := newClient().Register(cmd.Context(), domain.AccountName(args[0]), key)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), acc)
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acc, err := newClient().Account(cmd.Context(), domain.AccountName(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), acc)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <account> [symbol]",
	Short: "Show balances of an account",
	Long: `Show every holding of an account, or one symbol.

Examples:
  ledgerctl balance alice
  ledgerctl balance alice TOK`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		owner := domain.AccountName(args[0])
		if len(args) == 2 {
			bal, err := c.Balance(cmd.Context(), owner, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bal.String())
			return nil
		}
		list, err := c.Balances(cmd.Context(), owner)
		if err != nil {
			return err
		}
		for _, b := range list {
			fmt.Fprintln(cmd.OutOrStdout(), b.Balance)
		}
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "", "write the key pair to this file instead of stdout")
	accountCmd.AddCommand(accountRegisterCmd)
	accountCmd.AddCommand(accountShowCmd)
}
