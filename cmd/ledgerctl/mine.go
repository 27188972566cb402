package main

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"powtoken/internal/client"
	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/mining"
)

var (
	mineWorkers     int
	mineMaxAttempts uint64
	mineBlocks      int
	mineStart       uint64

	solveHasher string
)

var workCmd = &cobra.Command{
	Use:   "work <symbol>",
	Short: "Show the current puzzle of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newClient().Work(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), w)
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve <previous-digest> <target>",
	Short: "Search for a nonce offline",
	Long: `Search for a nonce solving the puzzle (previous-digest, target), both
given as 64 hex characters. Nothing is sent to the server.

Example:
  ledgerctl solve 0000...0000 0000ffff...ffff --workers 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prev, err := digest.Parse(args[0])
		if err != nil {
			return fmt.Errorf("previous digest: %w", err)
		}
		target, err := difficulty.Parse(args[1])
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		hasher, err := digest.New(solveHasher)
		if err != nil {
			return err
		}

		start := time.Now()
		sol, err := mining.SolveParallel(cmd.Context(), hasher, prev, target, mineStart, mineMaxAttempts, mineWorkers)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "nonce=%s digest=%s attempts=%d elapsed=%s\n",
			hex.EncodeToString(sol.Nonce), sol.Digest, sol.Attempts, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine <symbol>",
	Short: "Mine blocks of a token as --account",
	Long: `Fetch the current puzzle, search for a nonce and submit it, crediting
the block reward to the acting account. When another miner advances the chain
first the puzzle is fetched again.

Example:
  ledgerctl -a alice --key-file alice.json mine TOK --blocks 5 --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newSignedClient()
		if err != nil {
			return err
		}
		miner := domain.AccountName(globalFlags.Account)
		ctx := cmd.Context()

		for mined := 0; mineBlocks <= 0 || mined < mineBlocks; {
			w, err := c.Work(ctx, args[0])
			if err != nil {
				return err
			}
			hasher, err := digest.New(w.Hasher)
			if err != nil {
				return err
			}

			sol, err := mining.SolveParallel(ctx, hasher, w.Previous, w.Difficulty, mineStart, mineMaxAttempts, mineWorkers)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			res, err := c.Mine(ctx, sol.Nonce, domain.NewAsset(0, w.Symbol), miner)
			if client.IsCode(err, "invalid_nonce") {
				fmt.Fprintf(cmd.ErrOrStderr(), "height %d taken by another miner, refetching\n", w.Height+1)
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			mined++
			fmt.Fprintf(cmd.OutOrStdout(), "block %d digest=%s reward=%s supply=%s attempts=%d",
				res.Height, res.Digest, res.Reward, res.Supply, sol.Attempts)
			if res.Retargeted {
				fmt.Fprintf(cmd.OutOrStdout(), " retarget=%s", res.Difficulty)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

var (
	watchAccount string
	watchSymbol  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream ledger events",
	Long: `Stream committed events over websocket until interrupted.

Examples:
  ledgerctl watch
  ledgerctl watch --account-filter alice --symbol TOK`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := client.Subscribe(cmd.Context(), globalFlags.Endpoint,
			client.Filter{Account: watchAccount, Symbol: watchSymbol}, nil, nil)
		if err != nil {
			return err
		}
		defer sub.Close()

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case m, ok := <-sub.Events():
				if !ok {
					return nil
				}
				if err := printJSON(cmd.OutOrStdout(), m); err != nil {
					return err
				}
			}
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{solveCmd, mineCmd} {
		c.Flags().IntVar(&mineWorkers, "workers", runtime.NumCPU(), "parallel search workers")
		c.Flags().Uint64Var(&mineMaxAttempts, "max-attempts", 0, "attempts per worker, 0 for unbounded")
		c.Flags().Uint64Var(&mineStart, "start", 0, "first nonce counter")
	}
	solveCmd.Flags().StringVar(&solveHasher, "hasher", digest.SHA256, "puzzle digest: sha256 or sha3-256")
	mineCmd.Flags().IntVar(&mineBlocks, "blocks", 1, "blocks to mine, 0 for unbounded")

	watchCmd.Flags().StringVar(&watchAccount, "account-filter", "", "only events sent or received by this account")
	watchCmd.Flags().StringVar(&watchSymbol, "symbol", "", "only events of this symbol code")
}
