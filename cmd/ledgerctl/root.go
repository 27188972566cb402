package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"powtoken/internal/accounts"
	"powtoken/internal/client"
	"powtoken/internal/domain"
)

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	Endpoint   string
	Account    string
	KeyFile    string
	PrivateKey string
	Timeout    time.Duration
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Command-line client for the proof-of-work token ledger",
	Long: `ledgerctl talks to a ledgerd server.

Actions (create, issue, transfer, mine) are signed with the ed25519 key of
--account, read from --key-file or $LEDGER_PRIVATE_KEY. Against a server
running with header auth the key may be omitted.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Endpoint, "endpoint", envOr("LEDGER_ENDPOINT", "http://localhost:8080"), "ledgerd base URL")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Account, "account", "a", os.Getenv("LEDGER_ACCOUNT"), "acting account")
	rootCmd.PersistentFlags().StringVar(&globalFlags.KeyFile, "key-file", os.Getenv("LEDGER_KEY_FILE"), "JSON key pair written by keygen")
	rootCmd.PersistentFlags().StringVar(&globalFlags.PrivateKey, "private-key", os.Getenv("LEDGER_PRIVATE_KEY"), "base58 private key")
	rootCmd.PersistentFlags().DurationVar(&globalFlags.Timeout, "timeout", client.DefaultTimeout, "HTTP timeout")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(watchCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newClient builds a read-only client.
func newClient() *client.HTTPClient {
	return client.NewHTTPClient(globalFlags.Endpoint, client.WithTimeout(globalFlags.Timeout))
}

// newSignedClient builds a client acting as --account.
func newSignedClient() (*client.HTTPClient, error) {
	account := domain.AccountName(globalFlags.Account)
	if !account.IsValid() {
		return nil, fmt.Errorf("--account is required for actions")
	}
	key, err := loadKey()
	if err != nil {
		return nil, err
	}
	return client.NewHTTPClient(globalFlags.Endpoint,
		client.WithTimeout(globalFlags.Timeout),
		client.WithSigner(account, key),
	), nil
}

// loadKey returns the configured private key, or nil when none is set.
func loadKey() (ed25519.PrivateKey, error) {
	encoded := globalFlags.PrivateKey
	if globalFlags.KeyFile != "" {
		data, err := os.ReadFile(globalFlags.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		var kp accounts.KeyPair
		if err := json.Unmarshal(data, &kp); err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		encoded = kp.PrivateKey
	}
	if encoded == "" {
		return nil, nil
	}
	return accounts.ParsePrivateKey(encoded)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAsset(s string) (domain.Asset, error) {
	a, err := domain.ParseAsset(s)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("asset %q: %w", s, err)
	}
	return a, nil
}
