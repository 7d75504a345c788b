package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/domain"
	"github.com/execlab/tradecost/internal/fees"
	"github.com/execlab/tradecost/internal/impact"
	"github.com/execlab/tradecost/internal/service"
	"github.com/execlab/tradecost/internal/slippage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memSampleStore struct {
	samples []domain.SlippageSample
}

func (m *memSampleStore) Insert(_ context.Context, s domain.SlippageSample) error {
	m.samples = append(m.samples, s)
	return nil
}

func (m *memSampleStore) InsertBatch(ctx context.Context, ss []domain.SlippageSample) error {
	for _, s := range ss {
		if err := m.Insert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSampleStore) ListRecent(_ context.Context, limit int) ([]domain.SlippageSample, error) {
	if limit <= 0 || limit > len(m.samples) {
		limit = len(m.samples)
	}
	return m.samples[:limit], nil
}

func (m *memSampleStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.samples)), nil
}

func newTestService(t *testing.T, store domain.SampleStore) *service.CostService {
	t.Helper()
	logger := testLogger()

	registry := book.NewRegistry(logger)
	model, err := impact.NewModel(impact.DefaultParams(), logger)
	require.NoError(t, err)
	estimator, err := slippage.New(slippage.ModeDepth, slippage.Options{}, logger)
	require.NoError(t, err)

	registry.Connect("BTC-USDT", nil)
	svc := service.NewCostService(registry, model, estimator, fees.DefaultSchedule(logger), store, nil, nil, logger)
	svc.HandleDelta("BTC-USDT", domain.DepthDelta{
		Timestamp: time.Now(),
		Bids: []domain.PriceLevel{
			{Price: 50000, Quantity: 1.5},
			{Price: 49900, Quantity: 2.3},
		},
		Asks: []domain.PriceLevel{
			{Price: 50100, Quantity: 1.2},
			{Price: 50200, Quantity: 2.5},
		},
	})
	return svc
}

func TestListBooks(t *testing.T) {
	h := NewBookHandler(newTestService(t, nil), testLogger())

	rec := httptest.NewRecorder()
	h.ListBooks(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Symbols []string `json:"symbols"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"BTC-USDT"}, body.Symbols)
	assert.Equal(t, 1, body.Count)
}

func bookRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("symbol", "BTC-USDT")
	return req
}

func TestGetBook(t *testing.T) {
	h := NewBookHandler(newTestService(t, nil), testLogger())

	rec := httptest.NewRecorder()
	h.GetBook(rec, bookRequest("/api/books/BTC-USDT"))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap domain.BookSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 50000.0, snap.BestBid)
	assert.Equal(t, 50100.0, snap.BestAsk)
	assert.Len(t, snap.Bids, 2)
}

func TestGetBookDepthParam(t *testing.T) {
	h := NewBookHandler(newTestService(t, nil), testLogger())

	rec := httptest.NewRecorder()
	h.GetBook(rec, bookRequest("/api/books/BTC-USDT?depth=1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap domain.BookSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Bids, 1)
	assert.Len(t, snap.Asks, 1)

	rec = httptest.NewRecorder()
	h.GetBook(rec, bookRequest("/api/books/BTC-USDT?depth=zero"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBookUnknownSymbol(t *testing.T) {
	h := NewBookHandler(newTestService(t, nil), testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/ETH-USDT", nil)
	req.SetPathValue("symbol", "ETH-USDT")
	h.GetBook(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEstimate(t *testing.T) {
	h := NewEstimateHandler(newTestService(t, nil), testLogger())

	body := `{"symbol":"BTC-USDT","side":"buy","order_size":2,"exchange":"binance"}`
	rec := httptest.NewRecorder()
	h.Estimate(rec, httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.CostReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 50050.0, report.ReferencePrice)
	assert.Equal(t, "book", report.Impact.Source)
	assert.InDelta(t, 90.0, report.Impact.PriceImpact, 1e-9)
}

func TestEstimateRejectsBadInput(t *testing.T) {
	h := NewEstimateHandler(newTestService(t, nil), testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"symbol":`},
		{"missing symbol", `{"order_size":1}`},
		{"zero size", `{"symbol":"BTC-USDT","order_size":0}`},
		{"bad side", `{"symbol":"BTC-USDT","order_size":1,"side":"short"}`},
		{"no reference price", `{"symbol":"ETH-USDT","order_size":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Estimate(rec, httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRecordSample(t *testing.T) {
	store := &memSampleStore{}
	h := NewSampleHandler(newTestService(t, store), testLogger())

	body := `{"symbol":"BTC-USDT","order_size":2,"slippage":90}`
	rec := httptest.NewRecorder()
	h.RecordSample(rec, httptest.NewRequest(http.MethodPost, "/api/samples", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.samples, 1)
	assert.Equal(t, 2.0, store.samples[0].OrderSize)
}

func TestRecordSampleRejectsBadInput(t *testing.T) {
	h := NewSampleHandler(newTestService(t, &memSampleStore{}), testLogger())

	rec := httptest.NewRecorder()
	h.RecordSample(rec, httptest.NewRequest(http.MethodPost, "/api/samples", strings.NewReader(`{"order_size":0}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSamples(t *testing.T) {
	store := &memSampleStore{samples: []domain.SlippageSample{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}}
	h := NewSampleHandler(newTestService(t, store), testLogger())

	rec := httptest.NewRecorder()
	h.ListSamples(rec, httptest.NewRequest(http.MethodGet, "/api/samples?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Samples []domain.SlippageSample `json:"samples"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Samples, 2)
	assert.Equal(t, 2, body.Count)
}

func TestListSamplesWithoutStore(t *testing.T) {
	h := NewSampleHandler(newTestService(t, nil), testLogger())

	rec := httptest.NewRecorder()
	h.ListSamples(rec, httptest.NewRequest(http.MethodGet, "/api/samples", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"samples":[],"count":0}`, rec.Body.String())
}
