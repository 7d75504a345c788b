package slippage

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBook(t *testing.T) *book.PriceLevelBook {
	t.Helper()
	b := book.New("BTC-USDT", testLogger())
	b.ApplyDelta(domain.DepthDelta{
		Bids: []domain.PriceLevel{
			{Price: 50000, Quantity: 1.5},
			{Price: 49900, Quantity: 2.3},
		},
		Asks: []domain.PriceLevel{
			{Price: 50100, Quantity: 1.2},
			{Price: 50200, Quantity: 2.5},
		},
	})
	return b
}

func TestSimpleWithoutVolume(t *testing.T) {
	s := NewSimple(0.1, 0)

	// 0.1 * 100 * sqrt(4) = 20.
	assert.InDelta(t, 20.0, s.Estimate(4, 100, Context{}), 1e-9)

	// Volatility scales the factor: 0.1 * 1.5 * 100 * 2 = 30.
	assert.InDelta(t, 30.0, s.Estimate(4, 100, Context{Volatility: 0.5}), 1e-9)
}

func TestSimpleWithVolume(t *testing.T) {
	s := NewSimple(0.1, 0)

	// 0.1 * 100 * sqrt(4/400) = 1.
	assert.InDelta(t, 1.0, s.Estimate(4, 100, Context{MarketVolume: 400}), 1e-9)

	// Volatility is ignored once a volume is known.
	assert.InDelta(t, 1.0, s.Estimate(4, 100, Context{MarketVolume: 400, Volatility: 0.5}), 1e-9)

	// The configured baseline applies when the context has no volume.
	withBaseline := NewSimple(0.1, 400)
	assert.InDelta(t, 1.0, withBaseline.Estimate(4, 100, Context{}), 1e-9)

	// A context volume overrides the baseline.
	assert.InDelta(t, 2.0, withBaseline.Estimate(4, 100, Context{MarketVolume: 100}), 1e-9)
}

func TestSimpleDefaultFactor(t *testing.T) {
	s := NewSimple(0, 0)
	assert.InDelta(t, 20.0, s.Estimate(4, 100, Context{}), 1e-9)
}

func TestDepthEstimate(t *testing.T) {
	d := NewDepth(1.1, testLogger())
	b := newTestBook(t)

	// Buy of 2.0 executes at 50140 against mid 50050: (50140-50050)*1.1.
	got := d.Estimate(2.0, 50050, Context{Book: b, Side: domain.OrderBuy})
	assert.InDelta(t, 99.0, got, 1e-9)

	// Sell of 2.0 executes at 49975: (50050-49975)*1.1.
	got = d.Estimate(2.0, 50050, Context{Book: b, Side: domain.OrderSell})
	assert.InDelta(t, 82.5, got, 1e-9)
}

func TestDepthFlooredAtZero(t *testing.T) {
	d := NewDepth(1.1, testLogger())
	b := newTestBook(t)

	// A reference price above the buy execution price would be negative
	// slippage; it is floored.
	got := d.Estimate(1.0, 51000, Context{Book: b, Side: domain.OrderBuy})
	assert.Equal(t, 0.0, got)
}

func TestDepthFallsBackWithoutBook(t *testing.T) {
	d := NewDepth(1.1, testLogger())
	want := NewSimple(0, 0).Estimate(4, 100, Context{})

	assert.InDelta(t, want, d.Estimate(4, 100, Context{}), 1e-9)
}

func TestDepthFallsBackOnThinBook(t *testing.T) {
	d := NewDepth(1.1, testLogger())
	b := newTestBook(t)
	want := NewSimple(0, 0).Estimate(100, 50050, Context{})

	got := d.Estimate(100, 50050, Context{Book: b, Side: domain.OrderBuy})
	assert.InDelta(t, want, got, 1e-9)
}

// linearSamples generates fills whose slippage is an exact linear function
// of the features, so OLS recovers it and held-out R^2 is 1.
func linearSamples(n int) []domain.SlippageSample {
	out := make([]domain.SlippageSample, n)
	for i := range out {
		size := float64(i%50 + 1)
		vol := 0.1 + float64(i%7)*0.05
		spread := 1.0 + float64(i%11)*0.3
		mvol := 1000.0 + float64(i%13)*250
		out[i] = domain.SlippageSample{
			Symbol:       "BTC-USDT",
			OrderSize:    size,
			Volatility:   vol,
			Spread:       spread,
			MarketVolume: mvol,
			Slippage:     5 + 2*size + 40*vol + 3*spread + 0.001*mvol,
		}
	}
	return out
}

func TestRegressionTrainAndEstimate(t *testing.T) {
	r := NewRegression(testLogger())
	require.False(t, r.Trained())

	score, err := r.Train(linearSamples(200))
	require.NoError(t, err)
	assert.True(t, r.Trained())
	assert.InDelta(t, 1.0, score, 1e-6)
	assert.Equal(t, score, r.Score())

	got := r.Estimate(20, 50000, Context{Volatility: 0.2, Spread: 2.0, MarketVolume: 2000})
	want := 5 + 2*20.0 + 40*0.2 + 3*2.0 + 0.001*2000
	assert.InDelta(t, want, got, 1e-3)
}

func TestRegressionTrainOnce(t *testing.T) {
	r := NewRegression(testLogger())
	_, err := r.Train(linearSamples(50))
	require.NoError(t, err)

	_, err = r.Train(linearSamples(50))
	assert.ErrorIs(t, err, domain.ErrAlreadyTrained)
}

func TestRegressionTooFewSamples(t *testing.T) {
	r := NewRegression(testLogger())
	_, err := r.Train(linearSamples(5))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	assert.False(t, r.Trained())
}

func TestRegressionUntrainedFallsBack(t *testing.T) {
	r := NewRegression(testLogger())
	want := NewSimple(0, 0).Estimate(4, 100, Context{})
	assert.InDelta(t, want, r.Estimate(4, 100, Context{}), 1e-9)
}

func TestRegressionFractionalPredictionScaledByPrice(t *testing.T) {
	samples := make([]domain.SlippageSample, 100)
	for i := range samples {
		size := float64(i%50 + 1)
		samples[i] = domain.SlippageSample{
			OrderSize:    size,
			Volatility:   0.1,
			Spread:       1,
			MarketVolume: 1000,
			Slippage:     0.0005 * size, // fraction of price, always under 0.1
		}
	}

	r := NewRegression(testLogger())
	_, err := r.Train(samples)
	require.NoError(t, err)

	got := r.Estimate(40, 1000, Context{Volatility: 0.1, Spread: 1, MarketVolume: 1000})
	assert.InDelta(t, 0.02*1000, got, 1e-3)
}

func TestFactoryModes(t *testing.T) {
	log := testLogger()

	est, err := New(ModeSimple, Options{}, log)
	require.NoError(t, err)
	assert.IsType(t, &Simple{}, est)

	est, err = New(ModeDepth, Options{}, log)
	require.NoError(t, err)
	assert.IsType(t, &Depth{}, est)

	est, err = New(ModeRegression, Options{Samples: linearSamples(50)}, log)
	require.NoError(t, err)
	reg, ok := est.(*Regression)
	require.True(t, ok)
	assert.True(t, reg.Trained())

	// Regression mode without samples stays untrained but is usable.
	est, err = New(ModeRegression, Options{}, log)
	require.NoError(t, err)
	reg, ok = est.(*Regression)
	require.True(t, ok)
	assert.False(t, reg.Trained())

	_, err = New("bogus", Options{}, log)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestFactoryAutoPrecedence(t *testing.T) {
	log := testLogger()

	// Deep history wins.
	est, err := New(ModeAuto, Options{Samples: linearSamples(150), HasBook: true}, log)
	require.NoError(t, err)
	reg, ok := est.(*Regression)
	require.True(t, ok)
	assert.True(t, reg.Trained())

	// Exactly the threshold is not enough.
	est, err = New(ModeAuto, Options{Samples: linearSamples(100), HasBook: true}, log)
	require.NoError(t, err)
	assert.IsType(t, &Depth{}, est)

	// Book but no history selects depth.
	est, err = New(ModeAuto, Options{HasBook: true}, log)
	require.NoError(t, err)
	assert.IsType(t, &Depth{}, est)

	// Nothing available selects simple.
	est, err = New(ModeAuto, Options{}, log)
	require.NoError(t, err)
	assert.IsType(t, &Simple{}, est)
}

func TestFactoryRegressionTrainFailure(t *testing.T) {
	_, err := New(ModeRegression, Options{Samples: linearSamples(3)}, testLogger())
	assert.Error(t, err)
}

func ExampleNew() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	est, _ := New(ModeSimple, Options{ImpactFactor: 0.1}, logger)
	fmt.Printf("%.1f\n", est.Estimate(4, 100, Context{}))
	// Output: 20.0
}
