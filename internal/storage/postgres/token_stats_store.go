package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// TokenStatsStore implements storage.TokenStatsStore using PostgreSQL.
type TokenStatsStore struct {
	pool *Pool
}

// NewTokenStatsStore creates a new TokenStatsStore.
func NewTokenStatsStore(pool *Pool) *TokenStatsStore {
	return &TokenStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStatsStore = (*TokenStatsStore)(nil)

const tokenStatsColumns = `
	symbol_code, symbol_precision, supply, max_supply, issuer,
	difficulty, block_height, previous_digest, last_retarget_time,
	created_at, updated_at`

// Insert adds a new row. Returns ErrDuplicateKey if the symbol code exists.
func (s *TokenStatsStore) Insert(ctx context.Context, st *domain.TokenStats) (err error) {
	defer func(start time.Time) { observe("token_stats.insert", start, err) }(time.Now())

	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_stats (` + tokenStatsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	target := st.Difficulty.Digits()
	_, err = s.pool.q(ctx).Exec(ctx, query,
		st.Code(),
		int16(st.Supply.Symbol.Precision),
		st.Supply.Amount,
		st.MaxSupply.Amount,
		string(st.Issuer),
		target[:],
		int64(st.BlockHeight),
		st.PreviousDigest[:],
		st.LastRetargetTime,
		st.CreatedAt,
		st.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token stats: %w", err)
	}
	return nil
}

// Get retrieves the row for a symbol code. Returns ErrNotFound if not exists.
// Inside a transaction the row is locked FOR UPDATE, serializing actions per symbol.
func (s *TokenStatsStore) Get(ctx context.Context, code string) (st *domain.TokenStats, err error) {
	defer func(start time.Time) { observe("token_stats.get", start, err) }(time.Now())

	query := `SELECT ` + tokenStatsColumns + ` FROM token_stats WHERE symbol_code = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}

	row := s.pool.q(ctx).QueryRow(ctx, query, code)
	st, err = scanTokenStats(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token stats: %w", err)
	}
	return st, nil
}

// Update replaces an existing row. Returns ErrNotFound if not exists.
// Only mutable columns are written; max_supply, issuer and created_at are fixed at creation.
func (s *TokenStatsStore) Update(ctx context.Context, st *domain.TokenStats) (err error) {
	defer func(start time.Time) { observe("token_stats.update", start, err) }(time.Now())

	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE token_stats SET
			supply = $2,
			difficulty = $3,
			block_height = $4,
			previous_digest = $5,
			last_retarget_time = $6,
			updated_at = $7
		WHERE symbol_code = $1
	`

	target := st.Difficulty.Digits()
	tag, err := s.pool.q(ctx).Exec(ctx, query,
		st.Code(),
		st.Supply.Amount,
		target[:],
		int64(st.BlockHeight),
		st.PreviousDigest[:],
		st.LastRetargetTime,
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update token stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all rows, ordered by symbol code ASC.
func (s *TokenStatsStore) List(ctx context.Context) (result []*domain.TokenStats, err error) {
	defer func(start time.Time) { observe("token_stats.list", start, err) }(time.Now())

	query := `SELECT ` + tokenStatsColumns + ` FROM token_stats ORDER BY symbol_code ASC`

	rows, err := s.pool.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanTokenStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token stats: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token stats: %w", err)
	}
	return result, nil
}

// scanTokenStats scans a single row into TokenStats.
func scanTokenStats(row pgx.Row) (*domain.TokenStats, error) {
	var (
		st         domain.TokenStats
		code       string
		precision  int16
		supply     int64
		maxSupply  int64
		issuer     string
		target     []byte
		height     int64
		prevDigest []byte
	)

	err := row.Scan(
		&code,
		&precision,
		&supply,
		&maxSupply,
		&issuer,
		&target,
		&height,
		&prevDigest,
		&st.LastRetargetTime,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sym := domain.NewSymbol(code, uint8(precision))
	st.Supply = domain.NewAsset(supply, sym)
	st.MaxSupply = domain.NewAsset(maxSupply, sym)
	st.Issuer = domain.AccountName(issuer)
	st.BlockHeight = uint64(height)

	if st.Difficulty, err = difficulty.FromBytes(target); err != nil {
		return nil, fmt.Errorf("decode difficulty: %w", err)
	}
	if st.PreviousDigest, err = digest.FromBytes(prevDigest); err != nil {
		return nil, fmt.Errorf("decode previous digest: %w", err)
	}

	return &st, nil
}
