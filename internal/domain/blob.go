package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ReportArchiver exports finished cost reports to cold storage.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, report CostReport) error
}

// SampleArchiver exports slippage sample history to cold storage. Returns the
// number of records archived.
type SampleArchiver interface {
	ArchiveSamples(ctx context.Context, samples []SlippageSample, before time.Time) (int64, error)
}
