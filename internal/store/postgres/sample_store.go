package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execlab/tradecost/internal/domain"
)

// SampleStore implements domain.SampleStore using PostgreSQL.
type SampleStore struct {
	pool *pgxpool.Pool
}

// NewSampleStore creates a SampleStore backed by the given connection pool.
func NewSampleStore(pool *pgxpool.Pool) *SampleStore {
	return &SampleStore{pool: pool}
}

const sampleSelectCols = `id, symbol, order_size, volatility, spread, market_volume, slippage, observed_at`

const sampleInsertQuery = `
	INSERT INTO slippage_samples (
		id, symbol, order_size, volatility, spread, market_volume, slippage, observed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING`

// prepare fills in the generated fields a caller may leave empty.
func prepare(sample domain.SlippageSample) domain.SlippageSample {
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = time.Now().UTC()
	}
	return sample
}

// Insert persists one observed slippage sample.
func (s *SampleStore) Insert(ctx context.Context, sample domain.SlippageSample) error {
	sample = prepare(sample)
	_, err := s.pool.Exec(ctx, sampleInsertQuery,
		sample.ID, sample.Symbol, sample.OrderSize, sample.Volatility,
		sample.Spread, sample.MarketVolume, sample.Slippage, sample.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert slippage sample: %w", err)
	}
	return nil
}

// InsertBatch persists multiple samples efficiently using pgx Batch.
// Duplicate IDs are silently skipped via ON CONFLICT DO NOTHING.
func (s *SampleStore) InsertBatch(ctx context.Context, samples []domain.SlippageSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sample := range samples {
		sample = prepare(sample)
		batch.Queue(sampleInsertQuery,
			sample.ID, sample.Symbol, sample.OrderSize, sample.Volatility,
			sample.Spread, sample.MarketVolume, sample.Slippage, sample.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range samples {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert sample batch item %d: %w", i, err)
		}
	}
	return nil
}

func scanSampleRows(rows pgx.Rows) ([]domain.SlippageSample, error) {
	var samples []domain.SlippageSample
	for rows.Next() {
		var s domain.SlippageSample
		if err := rows.Scan(
			&s.ID, &s.Symbol, &s.OrderSize, &s.Volatility,
			&s.Spread, &s.MarketVolume, &s.Slippage, &s.ObservedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// ListRecent returns up to limit samples ordered most recent first. A limit
// <= 0 returns all samples.
func (s *SampleStore) ListRecent(ctx context.Context, limit int) ([]domain.SlippageSample, error) {
	query := `SELECT ` + sampleSelectCols + ` FROM slippage_samples ORDER BY observed_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent samples: %w", err)
	}
	defer rows.Close()

	samples, err := scanSampleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan samples: %w", err)
	}
	return samples, nil
}

// ListBySymbol returns up to limit samples for one symbol, most recent first.
func (s *SampleStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]domain.SlippageSample, error) {
	query := `SELECT ` + sampleSelectCols + ` FROM slippage_samples WHERE symbol = $1 ORDER BY observed_at DESC`
	args := []any{symbol}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list samples by symbol: %w", err)
	}
	defer rows.Close()

	samples, err := scanSampleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan samples by symbol: %w", err)
	}
	return samples, nil
}

// Count returns the total number of stored samples.
func (s *SampleStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM slippage_samples").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count samples: %w", err)
	}
	return count, nil
}

// ListBefore returns all samples observed before the given time, oldest
// first.
func (s *SampleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SlippageSample, error) {
	query := `SELECT ` + sampleSelectCols + ` FROM slippage_samples WHERE observed_at < $1 ORDER BY observed_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list samples before: %w", err)
	}
	defer rows.Close()

	samples, err := scanSampleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan samples before: %w", err)
	}
	return samples, nil
}

// DeleteBefore removes samples observed before the given time. Returns the
// number deleted.
func (s *SampleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM slippage_samples WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete samples before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.SampleStore = (*SampleStore)(nil)
