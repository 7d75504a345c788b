package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execlab/tradecost/internal/domain"
)

type fakeSource struct {
	samples   []domain.SlippageSample
	listErr   error
	deleteErr error
	deleted   []time.Time
}

func (f *fakeSource) ListBefore(_ context.Context, before time.Time) ([]domain.SlippageSample, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.SlippageSample
	for _, s := range f.samples {
		if s.ObservedAt.Before(before) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, before)
	var n int64
	for _, s := range f.samples {
		if s.ObservedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

type fakeArchiver struct {
	archived [][]domain.SlippageSample
	err      error
}

func (f *fakeArchiver) ArchiveSamples(_ context.Context, samples []domain.SlippageSample, _ time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.archived = append(f.archived, samples)
	return int64(len(samples)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetentionRun(t *testing.T) {
	old := time.Now().UTC().Add(-100 * 24 * time.Hour)
	src := &fakeSource{samples: []domain.SlippageSample{
		{ID: "old-1", ObservedAt: old},
		{ID: "old-2", ObservedAt: old.Add(time.Hour)},
		{ID: "fresh", ObservedAt: time.Now().UTC()},
	}}
	arch := &fakeArchiver{}

	r := NewRetention(src, arch, 90, testLogger())
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, arch.archived, 1)
	assert.Len(t, arch.archived[0], 2)
	assert.Len(t, src.deleted, 1)
}

func TestRetentionRunNothingToArchive(t *testing.T) {
	src := &fakeSource{samples: []domain.SlippageSample{
		{ID: "fresh", ObservedAt: time.Now().UTC()},
	}}
	arch := &fakeArchiver{}

	r := NewRetention(src, arch, 90, testLogger())
	require.NoError(t, r.Run(context.Background()))

	assert.Empty(t, arch.archived)
	assert.Empty(t, src.deleted, "no delete pass when nothing was archived")
}

func TestRetentionRunArchiveFailureKeepsRows(t *testing.T) {
	old := time.Now().UTC().Add(-100 * 24 * time.Hour)
	src := &fakeSource{samples: []domain.SlippageSample{{ID: "old", ObservedAt: old}}}
	arch := &fakeArchiver{err: errors.New("bucket down")}

	r := NewRetention(src, arch, 90, testLogger())
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, src.deleted)
}

func TestParseCron(t *testing.T) {
	cases := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 1 * *", false},
		{"* * * * *", false},
		{"0,30 * * * *", false},
		{"0 3 1 *", true},
		{"x 3 1 * *", true},
	}
	for _, tc := range cases {
		_, err := parseCron(tc.expr)
		if tc.wantErr {
			assert.Error(t, err, tc.expr)
		} else {
			assert.NoError(t, err, tc.expr)
		}
	}
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, 1, 15, 12, 30, 45, 0, time.UTC)

	next, err := nextCronTime("0 3 1 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC), next)

	// Every minute: the next minute boundary.
	next, err = nextCronTime("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 12, 31, 0, 0, time.UTC), next)
}
