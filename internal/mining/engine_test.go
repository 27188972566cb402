package mining

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powtoken/internal/accounts"
	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/ledger"
	"powtoken/internal/storage"
	"powtoken/internal/storage/memory"
)

const owner domain.AccountName = "powtoken"

type callerKey struct{}

func as(account domain.AccountName) context.Context {
	return context.WithValue(context.Background(), callerKey{}, account)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []*domain.LedgerEvent
}

func (r *recorder) Notify(_ context.Context, events []*domain.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	ledger *ledger.Engine
	miner  *Engine
	stores storage.Stores
	clock  *clock
	events *recorder
	tok    domain.Asset // zero TOK, used as the target token
}

func newFixture(t *testing.T, initial difficulty.Target, cfg Config, maxSupply string) *fixture {
	t.Helper()
	ctx := context.Background()

	stores := memory.NewStores()
	dir := accounts.NewDirectory(stores.Accounts, nil)
	for _, name := range []domain.AccountName{owner, "issuer", "miner"} {
		_, err := dir.Register(ctx, name, "")
		require.NoError(t, err)
	}

	clk := &clock{now: time.UnixMilli(1704067200000)}
	rec := &recorder{}
	l := ledger.New(ledger.Options{
		Stores:   stores,
		Accounts: dir,
		Authorizer: ledger.AuthorizerFunc(func(ctx context.Context, account domain.AccountName) error {
			if caller, _ := ctx.Value(callerKey{}).(domain.AccountName); caller != account {
				return ledger.ErrUnauthorized
			}
			return nil
		}),
		Owner:             owner,
		InitialDifficulty: initial,
		Notifier:          rec,
		Now:               clk.Now,
	})

	max, err := domain.ParseAsset(maxSupply)
	require.NoError(t, err)
	require.NoError(t, l.Create(as(owner), "issuer", max))

	return &fixture{
		ledger: l,
		miner:  NewEngine(l, cfg, nil),
		stores: stores,
		clock:  clk,
		events: rec,
		tok:    domain.NewAsset(0, max.Symbol),
	}
}

// solveNext finds a nonce for the current puzzle of TOK.
func (f *fixture) solveNext(t *testing.T) []byte {
	t.Helper()
	work, err := f.miner.Work(context.Background(), "TOK")
	require.NoError(t, err)
	sol, err := Solve(context.Background(), f.miner.Config().Hasher, work.Previous, work.Difficulty, 0, 1<<20)
	require.NoError(t, err)
	return sol.Nonce
}

func TestMine_AcceptsAndCredits(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{}, "1000000.0000 TOK")
	ctx := context.Background()

	res, err := f.miner.Mine(as("miner"), []byte{1}, f.tok, "miner")
	require.NoError(t, err)

	want := digest.Default().Sum(append(make([]byte, 32), 1))
	assert.Equal(t, uint64(1), res.Height)
	assert.Equal(t, want, res.Digest)
	assert.Equal(t, "100.0000 TOK", res.Reward.String())
	assert.False(t, res.Retargeted)

	st, err := f.ledger.Stats(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.BlockHeight)
	assert.Equal(t, want, st.PreviousDigest)
	assert.Equal(t, "100.0000 TOK", st.Supply.String())

	bal, err := f.ledger.Balance(ctx, "miner", "TOK")
	require.NoError(t, err)
	assert.Equal(t, "100.0000 TOK", bal.String())

	require.NoError(t, f.ledger.Audit(ctx, "TOK"))
	assert.Equal(t, 1, f.events.count(domain.EventMine))
}

func TestMine_DeterministicAndChained(t *testing.T) {
	a := newFixture(t, difficulty.Max(), Config{}, "1000000.0000 TOK")
	b := newFixture(t, difficulty.Max(), Config{}, "1000000.0000 TOK")

	var digestsA, digestsB []digest.Digest
	for i := 0; i < 3; i++ {
		ra, err := a.miner.Mine(as("miner"), []byte("same"), a.tok, "miner")
		require.NoError(t, err)
		rb, err := b.miner.Mine(as("miner"), []byte("same"), b.tok, "miner")
		require.NoError(t, err)
		digestsA = append(digestsA, ra.Digest)
		digestsB = append(digestsB, rb.Digest)
	}

	// Same inputs, same chain.
	assert.Equal(t, digestsA, digestsB)
	// The same nonce yields a new digest at every height because the puzzle chains.
	assert.NotEqual(t, digestsA[0], digestsA[1])
	assert.NotEqual(t, digestsA[1], digestsA[2])
	assert.Equal(t, digest.Default().Sum(Puzzle(digestsA[0], []byte("same"))), digestsA[1])
}

func TestMine_InvalidNonceLeavesStateUntouched(t *testing.T) {
	target, err := difficulty.FromUint64(1)
	require.NoError(t, err)
	f := newFixture(t, target, Config{}, "1000000.0000 TOK")
	ctx := context.Background()

	before, err := f.ledger.Stats(ctx, "TOK")
	require.NoError(t, err)

	_, err = f.miner.Mine(as("miner"), []byte{42}, f.tok, "miner")
	assert.ErrorIs(t, err, ledger.ErrInvalidNonce)

	after, err := f.ledger.Stats(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.stores.Balances.Get(ctx, "miner", "TOK")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, f.events.count(domain.EventMine))
}

func TestMine_Rejections(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{}, "1000000.0000 TOK")

	tests := []struct {
		name    string
		ctx     context.Context
		nonce   []byte
		token   domain.Asset
		miner   domain.AccountName
		wantErr error
	}{
		{"unknown miner", as("ghost"), []byte{1}, f.tok, "ghost", ledger.ErrUnknownAccount},
		{"not the miner", as("issuer"), []byte{1}, f.tok, "miner", ledger.ErrUnauthorized},
		{"empty nonce", as("miner"), nil, f.tok, "miner", ledger.ErrInvalidNonce},
		{"nonce too long", as("miner"), make([]byte, MaxNonceBytes+1), f.tok, "miner", ledger.ErrInvalidNonce},
		{"unknown symbol", as("miner"), []byte{1}, domain.NewAsset(0, domain.NewSymbol("XYZ", 4)), "miner", ledger.ErrNotFound},
		{"precision mismatch", as("miner"), []byte{1}, domain.NewAsset(0, domain.NewSymbol("TOK", 2)), "miner", ledger.ErrSymbolMismatch},
		{"unknown symbol before nonce", as("miner"), nil, domain.NewAsset(0, domain.NewSymbol("XYZ", 4)), "miner", ledger.ErrNotFound},
		{"mismatch before nonce", as("miner"), nil, domain.NewAsset(0, domain.NewSymbol("TOK", 2)), "miner", ledger.ErrSymbolMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.miner.Mine(tt.ctx, tt.nonce, tt.token, tt.miner)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	st, err := f.ledger.Stats(context.Background(), "TOK")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.BlockHeight)
}

func TestMine_NonceAtMaxLength(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{}, "1000000.0000 TOK")
	_, err := f.miner.Mine(as("miner"), make([]byte, MaxNonceBytes), f.tok, "miner")
	assert.NoError(t, err)
}

func TestMine_RetargetOnlyOnBoundaries(t *testing.T) {
	initial, err := difficulty.FromLeadingZeroBits(1)
	require.NoError(t, err)
	cfg := Config{RetargetInterval: 3, TargetBlockTime: time.Minute}
	f := newFixture(t, initial, cfg, "1000000.0000 TOK")
	ctx := context.Background()
	created := f.clock.Now().UnixMilli()

	// Blocks come every 10s against a 1m target: each window is 6x too fast
	// and the target shrinks by the clamp factor.
	expected := initial
	for height := uint64(1); height <= 6; height++ {
		f.clock.Advance(10 * time.Second)
		res, err := f.miner.Mine(as("miner"), f.solveNext(t), f.tok, "miner")
		require.NoError(t, err)
		require.Equal(t, height, res.Height)

		st, err := f.ledger.Stats(ctx, "TOK")
		require.NoError(t, err)

		if height%3 == 0 {
			expected = expected.Retarget(30*time.Second, 3*time.Minute)
			assert.True(t, res.Retargeted, "height %d", height)
			assert.Equal(t, f.clock.Now().UnixMilli(), st.LastRetargetTime)
		} else {
			assert.False(t, res.Retargeted, "height %d", height)
			if height < 3 {
				assert.Equal(t, created, st.LastRetargetTime)
			}
		}
		assert.True(t, expected.Equal(st.Difficulty), "height %d: got %s want %s", height, st.Difficulty, expected)
	}

	assert.Less(t, expected.Cmp(initial), 0, "faster blocks must make the puzzle harder")
	assert.Equal(t, 2, f.events.count(domain.EventRetarget))
}

func TestMine_SlowBlocksEaseDifficulty(t *testing.T) {
	initial, err := difficulty.FromLeadingZeroBits(4)
	require.NoError(t, err)
	cfg := Config{RetargetInterval: 2, TargetBlockTime: time.Minute}
	f := newFixture(t, initial, cfg, "1000000.0000 TOK")

	for i := 0; i < 2; i++ {
		f.clock.Advance(2 * time.Minute)
		_, err := f.miner.Mine(as("miner"), f.solveNext(t), f.tok, "miner")
		require.NoError(t, err)
	}

	st, err := f.ledger.Stats(context.Background(), "TOK")
	require.NoError(t, err)
	assert.True(t, initial.Retarget(4*time.Minute, 2*time.Minute).Equal(st.Difficulty))
	assert.Greater(t, st.Difficulty.Cmp(initial), 0)
}

func TestMine_RewardCappedByMaxSupply(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{}, "250.0000 TOK")
	ctx := context.Background()

	for i := byte(1); i <= 2; i++ {
		_, err := f.miner.Mine(as("miner"), []byte{i}, f.tok, "miner")
		require.NoError(t, err)
	}
	_, err := f.miner.Mine(as("miner"), []byte{3}, f.tok, "miner")
	assert.ErrorIs(t, err, ledger.ErrSupplyExceeded)

	supply, err := f.ledger.Supply(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, "200.0000 TOK", supply.String())
	require.NoError(t, f.ledger.Audit(ctx, "TOK"))
}

func TestMine_RewardScalesWithPrecision(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{RewardTokens: 5}, "1000 TOK")

	res, err := f.miner.Mine(as("miner"), []byte{1}, f.tok, "miner")
	require.NoError(t, err)
	assert.Equal(t, "5 TOK", res.Reward.String())
}

func TestMine_MaxPrecisionToken(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{}, "1000000.000000000000 TOK")
	require.Equal(t, uint8(domain.MaxPrecision), f.tok.Symbol.Precision)

	res, err := f.miner.Mine(as("miner"), []byte{1}, f.tok, "miner")
	require.NoError(t, err)
	assert.Equal(t, "100.000000000000 TOK", res.Reward.String())
}

func TestMine_ConcurrentSubmissionsSerialize(t *testing.T) {
	f := newFixture(t, difficulty.Max(), Config{RetargetInterval: 1000}, "1000000.0000 TOK")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.miner.Mine(as("miner"), []byte{byte(i + 1)}, f.tok, "miner")
		}(i)
	}
	wg.Wait()

	st, err := f.ledger.Stats(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), st.BlockHeight)
	assert.Equal(t, "2000.0000 TOK", st.Supply.String())
	require.NoError(t, f.ledger.Audit(ctx, "TOK"))
}
