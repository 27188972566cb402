// Package mining gates new supply behind a proof-of-work puzzle.
//
// Each token carries its own chain: the puzzle for the next block is the
// previous accepted digest followed by the miner's nonce. A solution whose
// digest is strictly below the token's target mints a fixed reward to the
// miner, and every RetargetInterval blocks the target is rescaled by how long
// the window actually took.
package mining

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/ledger"
	"powtoken/internal/observability"
)

// Nonce length bounds in bytes.
const (
	MinNonceBytes = 1
	MaxNonceBytes = 64
)

// Defaults for Config.
const (
	DefaultRewardTokens     = 100
	DefaultRetargetInterval = 10
	DefaultTargetBlockTime  = time.Minute
)

// Config holds the mining parameters shared by every token.
type Config struct {
	RewardTokens     int64         // whole tokens minted per accepted block
	RetargetInterval uint64        // blocks between difficulty adjustments
	TargetBlockTime  time.Duration // desired time between blocks
	Hasher           digest.Hasher // puzzle digest; nil means digest.Default()
}

// DefaultConfig returns the default mining parameters.
func DefaultConfig() Config {
	return Config{
		RewardTokens:     DefaultRewardTokens,
		RetargetInterval: DefaultRetargetInterval,
		TargetBlockTime:  DefaultTargetBlockTime,
		Hasher:           digest.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RewardTokens <= 0 {
		c.RewardTokens = d.RewardTokens
	}
	if c.RetargetInterval == 0 {
		c.RetargetInterval = d.RetargetInterval
	}
	if c.TargetBlockTime <= 0 {
		c.TargetBlockTime = d.TargetBlockTime
	}
	if c.Hasher == nil {
		c.Hasher = d.Hasher
	}
	return c
}

// Result describes an accepted block.
type Result struct {
	Symbol     string            `json:"symbol"`
	Miner      string            `json:"miner"`
	Height     uint64            `json:"height"`
	Digest     digest.Digest     `json:"digest"`
	Reward     domain.Asset      `json:"reward"`
	Supply     domain.Asset      `json:"supply"`
	Difficulty difficulty.Target `json:"difficulty"`
	Retargeted bool              `json:"retargeted"`
}

// Engine verifies submitted solutions and advances token chains.
type Engine struct {
	ledger *ledger.Engine
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a mining engine minting through l.
func NewEngine(l *ledger.Engine, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = l.Logger()
	}
	return &Engine{
		ledger: l,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("mining"),
	}
}

// Config returns the effective parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Puzzle returns the bytes hashed for a candidate: prev followed by nonce.
func Puzzle(prev digest.Digest, nonce []byte) []byte {
	buf := make([]byte, 0, digest.Size+len(nonce))
	buf = append(buf, prev[:]...)
	return append(buf, nonce...)
}

// Mine checks nonce against the current puzzle of targetToken's symbol and,
// if it solves it, credits the reward to miner and advances the chain.
// A rejected submission changes nothing.
func (e *Engine) Mine(ctx context.Context, nonce []byte, targetToken domain.Asset, miner domain.AccountName) (res *Result, err error) {
	start := time.Now()
	code := targetToken.Symbol.Code
	defer func() {
		observability.RecordMineAttempt(code, ledger.Code(err))
		observability.RecordAction("mine", ledger.Code(err), time.Since(start).Seconds())
		if err != nil {
			e.logger.Debug("solution rejected", zap.String("symbol", code), zap.String("miner", miner.String()), zap.Error(err))
		}
	}()

	if err := e.ledger.CheckAccount(ctx, miner); err != nil {
		return nil, err
	}
	if err := e.ledger.Authorize(ctx, miner); err != nil {
		return nil, err
	}

	var (
		events    []*domain.LedgerEvent
		oldTarget difficulty.Target
	)
	err = e.ledger.Atomic(ctx, func(ctx context.Context) error {
		st, err := e.ledger.Stats(ctx, code)
		if err != nil {
			return err
		}
		if targetToken.Symbol != st.Supply.Symbol {
			return fmt.Errorf("%w: %s vs %s", ledger.ErrSymbolMismatch, targetToken.Symbol, st.Supply.Symbol)
		}
		if n := len(nonce); n < MinNonceBytes || n > MaxNonceBytes {
			return fmt.Errorf("%w: nonce is %d bytes, want %d..%d", ledger.ErrInvalidNonce, n, MinNonceBytes, MaxNonceBytes)
		}

		candidate := e.cfg.Hasher.Sum(Puzzle(st.PreviousDigest, nonce))
		if !st.Difficulty.Accepts(candidate) {
			return fmt.Errorf("%w: digest %s not below target %s", ledger.ErrInvalidNonce, candidate, st.Difficulty)
		}

		reward, err := domain.WholeAsset(e.cfg.RewardTokens, st.Supply.Symbol)
		if err != nil {
			return fmt.Errorf("%w: reward: %v", ledger.ErrInvalidAmount, err)
		}
		if reward.Amount > st.MaxSupply.Amount-st.Supply.Amount {
			return fmt.Errorf("%w: reward %s", ledger.ErrSupplyExceeded, reward)
		}

		now := e.ledger.Now()
		oldTarget = st.Difficulty
		st.BlockHeight++
		st.PreviousDigest = candidate
		if st.Supply, err = st.Supply.Add(reward); err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
		}
		if err := e.ledger.CreditReward(ctx, miner, reward); err != nil {
			return err
		}

		retargeted := st.BlockHeight%e.cfg.RetargetInterval == 0
		if retargeted {
			observed := time.Duration(now-st.LastRetargetTime) * time.Millisecond
			expected := time.Duration(e.cfg.RetargetInterval) * e.cfg.TargetBlockTime
			st.Difficulty = st.Difficulty.Retarget(observed, expected)
			st.LastRetargetTime = now
		}
		st.UpdatedAt = now

		if err := e.ledger.Stores().Stats.Update(ctx, st); err != nil {
			return fmt.Errorf("update token %s: %w", code, err)
		}

		ev := e.ledger.NewEvent(domain.EventMine, st)
		ev.To = miner
		ev.Quantity = reward
		ev.Digest = candidate.String()
		events = append(events, ev)
		if retargeted {
			rt := e.ledger.NewEvent(domain.EventRetarget, st)
			rt.Memo = fmt.Sprintf("%s -> %s", oldTarget, st.Difficulty)
			events = append(events, rt)
		}

		res = &Result{
			Symbol:     code,
			Miner:      miner.String(),
			Height:     st.BlockHeight,
			Digest:     candidate,
			Reward:     reward,
			Supply:     st.Supply,
			Difficulty: st.Difficulty,
			Retargeted: retargeted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordBlockAccepted(code, res.Height, res.Difficulty.LeadingZeroBits())
	ledger.UpdateSupplyGauge(res.Supply)
	if res.Retargeted {
		observability.RecordRetarget(code, direction(oldTarget, res.Difficulty))
		e.logger.Info("difficulty retargeted",
			zap.String("symbol", code),
			zap.Uint64("height", res.Height),
			zap.Stringer("from", oldTarget),
			zap.Stringer("to", res.Difficulty),
		)
	}
	e.logger.Info("block accepted",
		zap.String("symbol", code),
		zap.String("miner", miner.String()),
		zap.Uint64("height", res.Height),
		zap.Stringer("digest", res.Digest),
	)
	e.ledger.Publish(ctx, events)
	return res, nil
}

// Work is what a miner needs to search for the next block of a token.
type Work struct {
	Symbol     domain.Symbol     `json:"symbol"`
	Height     uint64            `json:"height"`
	Previous   digest.Digest     `json:"previous_digest"`
	Difficulty difficulty.Target `json:"difficulty"`
	Hasher     string            `json:"hasher"`
}

// Work returns the current puzzle of a symbol code.
func (e *Engine) Work(ctx context.Context, code string) (*Work, error) {
	st, err := e.ledger.Stats(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Work{
		Symbol:     st.Supply.Symbol,
		Height:     st.BlockHeight,
		Previous:   st.PreviousDigest,
		Difficulty: st.Difficulty,
		Hasher:     e.cfg.Hasher.Name(),
	}, nil
}

func direction(from, to difficulty.Target) string {
	switch to.Cmp(from) {
	case 1:
		return "easier"
	case -1:
		return "harder"
	default:
		return "unchanged"
	}
}
