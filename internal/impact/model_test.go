package impact

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDefaultModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(DefaultParams(), testLogger())
	require.NoError(t, err)
	return m
}

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero tau", func(p *Params) { p.Tau = 0 }},
		{"negative tau", func(p *Params) { p.Tau = -1 }},
		{"nan tau", func(p *Params) { p.Tau = math.NaN() }},
		{"negative sigma", func(p *Params) { p.Sigma = -0.1 }},
		{"negative lambda", func(p *Params) { p.LambdaTemp = -1e-6 }},
		{"nan eta", func(p *Params) { p.Eta = math.NaN() }},
		{"inf epsilon", func(p *Params) { p.Epsilon = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := NewModel(params, testLogger())
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
}

func TestNewModelClampsEtaTilde(t *testing.T) {
	// Defaults give eta_tilde = 2.5e-7 - 0.5*0.1*1.0 < 0, so the default
	// model runs clamped.
	m := newDefaultModel(t)
	assert.True(t, m.Degraded())
	assert.Greater(t, m.Kappa(), 0.0)

	// A parameterization with positive adjusted impact is not degraded.
	params := DefaultParams()
	params.Gamma = 1e-8
	m, err := NewModel(params, testLogger())
	require.NoError(t, err)
	assert.False(t, m.Degraded())
}

func TestTemporaryImpact(t *testing.T) {
	m := newDefaultModel(t)
	p := m.Params()

	size := 1000.0
	want := (p.Epsilon + p.LambdaTemp*size/p.Tau) * size
	assert.InDelta(t, want, m.TemporaryImpact(size, 0), 1e-12)

	// Sells carry the same sign-adjusted fixed cost.
	wantSell := (-p.Epsilon + p.LambdaTemp*(-size)/p.Tau) * size
	assert.InDelta(t, wantSell, m.TemporaryImpact(-size, 0), 1e-12)

	assert.Equal(t, 0.0, m.TemporaryImpact(0, 0))

	// A shorter interval raises the trading rate and with it the cost.
	assert.Greater(t, m.TemporaryImpact(size, 0.5), m.TemporaryImpact(size, 1.0))
}

func TestPermanentImpact(t *testing.T) {
	m := newDefaultModel(t)
	p := m.Params()

	assert.InDelta(t, p.Eta*1000.0/p.Tau, m.PermanentImpact(1000, 0), 1e-18)
	assert.InDelta(t, p.Eta*500.0/2.0, m.PermanentImpact(500, 2.0), 1e-18)
	assert.InDelta(t, -p.Eta*1000.0, m.PermanentImpact(-1000, 0), 1e-18)
}

func TestOptimalTrajectory(t *testing.T) {
	m := newDefaultModel(t)

	traj, err := m.OptimalTrajectory(10000, 10, 10)
	require.NoError(t, err)
	require.Len(t, traj.Holdings, 11)
	require.Len(t, traj.Trades, 10)

	// Starts at the full position and liquidates completely.
	assert.Equal(t, 10000.0, traj.Holdings[0])
	assert.InDelta(t, 0.0, traj.Holdings[10], 1e-9)

	// Holdings decay monotonically and trades sum to the position.
	var sum float64
	for j := 0; j < 10; j++ {
		assert.GreaterOrEqual(t, traj.Holdings[j], traj.Holdings[j+1])
		assert.InDelta(t, traj.Holdings[j]-traj.Holdings[j+1], traj.Trades[j], 1e-9)
		sum += traj.Trades[j]
	}
	assert.InDelta(t, 10000.0, sum, 1e-9)

	// Front-loaded: kappa > 0 sells more early than late.
	assert.Greater(t, traj.Trades[0], traj.Trades[9])
}

func TestOptimalTrajectoryDegenerateKappa(t *testing.T) {
	params := DefaultParams()
	params.LambdaTemp = 0 // kappa collapses to zero
	m, err := NewModel(params, testLogger())
	require.NoError(t, err)
	require.Equal(t, 0.0, m.Kappa())

	traj, err := m.OptimalTrajectory(1000, 5, 4)
	require.NoError(t, err)

	// Uniform liquidation.
	for _, ts := range traj.Trades {
		assert.InDelta(t, 250.0, ts, 1e-9)
	}
	assert.Equal(t, 1000.0, traj.Holdings[0])
	assert.InDelta(t, 0.0, traj.Holdings[4], 1e-9)
}

func TestOptimalTrajectoryInvalidArgs(t *testing.T) {
	m := newDefaultModel(t)

	_, err := m.OptimalTrajectory(1000, 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = m.OptimalTrajectory(1000, 0, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = m.OptimalTrajectory(1000, -1, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestEstimateTotalCost(t *testing.T) {
	m := newDefaultModel(t)
	p := m.Params()

	trades := []float64{600, 400}
	breakdown := m.EstimateTotalCost(trades, 0)

	wantTemp := m.TemporaryImpact(600, p.Tau) + m.TemporaryImpact(400, p.Tau)
	assert.InDelta(t, wantTemp, breakdown.TemporaryImpact, 1e-9)

	// Permanent impact is charged against the position left after each
	// trade: 600 leaves 400 behind, the final trade leaves nothing.
	wantPerm := m.PermanentImpact(600, p.Tau)*400 + m.PermanentImpact(400, p.Tau)*0
	assert.InDelta(t, wantPerm, breakdown.PermanentImpact, 1e-9)

	wantRisk := 0.5*p.Gamma*p.Sigma*p.Sigma*1000*1000*p.Tau +
		0.5*p.Gamma*p.Sigma*p.Sigma*400*400*p.Tau
	assert.InDelta(t, wantRisk, breakdown.VolatilityRisk, 1e-9)

	assert.InDelta(t,
		breakdown.TemporaryImpact+breakdown.PermanentImpact+breakdown.VolatilityRisk,
		breakdown.TotalCost, 1e-12)
}

func TestEstimateTotalCostEmpty(t *testing.T) {
	m := newDefaultModel(t)
	breakdown := m.EstimateTotalCost(nil, 0)
	assert.Equal(t, domain.CostBreakdown{}, breakdown)
}

func TestEstimateMarketImpactFallback(t *testing.T) {
	m := newDefaultModel(t)

	est := m.EstimateMarketImpact(4, 100, nil, domain.OrderBuy)

	// 0.1 * 100 * sqrt(4) = 20.
	assert.InDelta(t, 20.0, est.PriceImpact, 1e-9)
	assert.InDelta(t, 0.2, est.RelativeImpact, 1e-9)
	assert.InDelta(t, 80.0, est.Slippage, 1e-9)
	assert.Equal(t, "model", est.Source)
}

func TestEstimateMarketImpactFromBook(t *testing.T) {
	b := book.New("BTC-USDT", testLogger())
	b.ApplyDelta(domain.DepthDelta{
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
	m := newDefaultModel(t)

	// Buy of 2.0 executes at VWAP 50140 against mid 50050.
	est := m.EstimateMarketImpact(2.0, 50050, b, domain.OrderBuy)
	assert.Equal(t, "book", est.Source)
	assert.InDelta(t, 90.0, est.PriceImpact, 1e-9)
	assert.InDelta(t, 90.0/50050, est.RelativeImpact, 1e-9)
	assert.InDelta(t, 180.0, est.Slippage, 1e-9)

	// Sell of 2.0 executes at (1.5*50000 + 0.5*49900)/2 = 49975.
	est = m.EstimateMarketImpact(2.0, 50050, b, domain.OrderSell)
	assert.Equal(t, "book", est.Source)
	assert.InDelta(t, 75.0, est.PriceImpact, 1e-9)
}

func TestEstimateMarketImpactClampsNegative(t *testing.T) {
	b := book.New("BTC-USDT", testLogger())
	b.ApplyDelta(domain.DepthDelta{
		Asks: []domain.PriceLevel{{Price: 50100, Quantity: 5}},
	})
	m := newDefaultModel(t)

	// Reference price above the executed price would give a negative
	// impact; it is floored at zero.
	est := m.EstimateMarketImpact(1.0, 51000, b, domain.OrderBuy)
	assert.Equal(t, 0.0, est.PriceImpact)
	assert.Equal(t, 0.0, est.Slippage)
	assert.Equal(t, "book", est.Source)
}

func TestEstimateMarketImpactInsufficientLiquidityFallsBack(t *testing.T) {
	b := book.New("BTC-USDT", testLogger())
	b.ApplyDelta(domain.DepthDelta{
		Asks: []domain.PriceLevel{{Price: 50100, Quantity: 0.5}},
	})
	m := newDefaultModel(t)

	est := m.EstimateMarketImpact(10, 50050, b, domain.OrderBuy)
	assert.Equal(t, "model", est.Source)
	assert.InDelta(t, 0.1*50050*math.Sqrt(10), est.PriceImpact, 1e-9)
}
