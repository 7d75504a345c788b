package domain

import "context"

// SampleStore persists observed slippage samples and serves them back as
// regression training data.
type SampleStore interface {
	Insert(ctx context.Context, sample SlippageSample) error
	InsertBatch(ctx context.Context, samples []SlippageSample) error
	// ListRecent returns up to limit samples ordered most recent first.
	// A limit <= 0 returns all samples.
	ListRecent(ctx context.Context, limit int) ([]SlippageSample, error)
	Count(ctx context.Context) (int64, error)
}
