package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/execlab/tradecost/internal/domain"
)

// Archiver implements domain.ReportArchiver by serializing finished cost
// reports to JSON and uploading them to S3, partitioned by day:
//
//	reports/2025-01-15/9f0c….json
//
// It also exports slippage sample history as JSONL for offline model work.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver uploading through the given writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveReport uploads one cost report. A report without an ID gets one
// assigned so the object key is stable and unique.
func (a *Archiver) ArchiveReport(ctx context.Context, report domain.CostReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	buf, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("s3blob: marshal report %s: %w", report.ID, err)
	}

	path := reportPath(report)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive report upload: %w", err)
	}
	return nil
}

// ArchiveSamples uploads a batch of slippage samples as JSONL, partitioned by
// the year-month of the cutoff. Returns the number of records archived.
func (a *Archiver) ArchiveSamples(ctx context.Context, samples []domain.SlippageSample, before time.Time) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(samples)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive samples marshal: %w", err)
	}

	path := fmt.Sprintf("archive/samples/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive samples upload: %w", err)
	}
	return int64(len(samples)), nil
}

// reportPath builds the S3 key for a report, partitioned by creation day.
func reportPath(report domain.CostReport) string {
	return fmt.Sprintf("reports/%s/%s.json", report.CreatedAt.Format("2006-01-02"), report.ID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface checks.
var (
	_ domain.ReportArchiver = (*Archiver)(nil)
	_ domain.SampleArchiver = (*Archiver)(nil)
)
