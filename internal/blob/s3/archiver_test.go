package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execlab/tradecost/internal/domain"
)

// memWriter records uploads in memory.
type memWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	w.objects[path] = buf.Bytes()
	w.types[path] = contentType
	return nil
}

func TestArchiveReport(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w)

	report := domain.CostReport{
		ID:             "report-1",
		Symbol:         "BTC-USDT",
		Side:           domain.OrderBuy,
		OrderSize:      2,
		ReferencePrice: 50050,
		NetCost:        100280,
		CreatedAt:      time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.ArchiveReport(context.Background(), report))

	data, ok := w.objects["reports/2025-01-15/report-1.json"]
	require.True(t, ok, "expected day-partitioned key, got %v", w.objects)
	assert.Equal(t, "application/json", w.types["reports/2025-01-15/report-1.json"])

	var got domain.CostReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, report, got)
}

func TestArchiveReportAssignsID(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w)

	require.NoError(t, a.ArchiveReport(context.Background(), domain.CostReport{Symbol: "ETH-USDT"}))

	require.Len(t, w.objects, 1)
	for path := range w.objects {
		assert.True(t, strings.HasPrefix(path, "reports/"))
		assert.True(t, strings.HasSuffix(path, ".json"))
	}
}

func TestArchiveSamples(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w)

	samples := []domain.SlippageSample{
		{ID: "a", Symbol: "BTC-USDT", OrderSize: 1, Slippage: 10},
		{ID: "b", Symbol: "BTC-USDT", OrderSize: 2, Slippage: 25},
	}
	count, err := a.ArchiveSamples(context.Background(), samples, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	data, ok := w.objects["archive/samples/2025-01.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "application/x-ndjson", w.types["archive/samples/2025-01.jsonl"])
}

func TestArchiveSamplesEmpty(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w)

	count, err := a.ArchiveSamples(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, w.objects)
}
