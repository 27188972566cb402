package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"powtoken/internal/domain"
)

var memo string

var createCmd = &cobra.Command{
	Use:   "create <issuer> <max-supply>",
	Short: "Create a token (ledger owner only)",
	Long: `Create a token whose symbol and precision come from max-supply.

Example:
  ledgerctl -a powtoken --key-file owner.json create issuer "1000000.0000 TOK"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxSupply, err := parseAsset(args[1])
		if err != nil {
			return err
		}
		c, err := newSignedClient()
		if err != nil {
			return err
		}
		tok, err := c.Create(cmd.Context(), domain.AccountName(args[0]), maxSupply)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tok)
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue <to> <quantity>",
	Short: "Issue new supply (token issuer only)",
	Long: `Mint quantity to the issuer and pass it on to the recipient.

Example:
  ledgerctl -a issuer --key-file issuer.json issue alice "1000.0000 TOK" --memo genesis`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := parseAsset(args[1])
		if err != nil {
			return err
		}
		c, err := newSignedClient()
		if err != nil {
			return err
		}
		if err := c.Issue(cmd.Context(), domain.AccountName(args[0]), quantity, memo); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "issued %s to %s\n", quantity, args[0])
		return nil
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <to> <quantity>",
	Short: "Transfer tokens from --account",
	Long: `Move quantity from the acting account to another account.

Example:
  ledgerctl -a alice --key-file alice.json transfer bob "250.0000 TOK" --memo rent`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := parseAsset(args[1])
		if err != nil {
			return err
		}
		c, err := newSignedClient()
		if err != nil {
			return err
		}
		from := domain.AccountName(globalFlags.Account)
		if err := c.Transfer(cmd.Context(), from, domain.AccountName(args[0]), quantity, memo); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "transferred %s from %s to %s\n", quantity, from, args[0])
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect tokens",
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Tokens(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show <symbol>",
	Short: "Show a token row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := newClient().Token(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tok)
	},
}

var tokenSupplyCmd = &cobra.Command{
	Use:   "supply <symbol>",
	Short: "Show circulating supply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		supply, err := newClient().Supply(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), supply.String())
		return nil
	},
}

var tokenHoldersCmd = &cobra.Command{
	Use:   "holders <symbol>",
	Short: "List holders of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Holders(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, b := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", b.Owner, b.Balance)
		}
		return nil
	},
}

var tokenEventsCmd = &cobra.Command{
	Use:   "events <symbol>",
	Short: "Print the event journal of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := newClient().Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), events)
	},
}

func init() {
	issueCmd.Flags().StringVar(&memo, "memo", "", "memo (up to 256 bytes)")
	transferCmd.Flags().StringVar(&memo, "memo", "", "memo (up to 256 bytes)")

	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenSupplyCmd)
	tokenCmd.AddCommand(tokenHoldersCmd)
	tokenCmd.AddCommand(tokenEventsCmd)
}
