package slippage

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/execlab/tradecost/internal/domain"
)

const (
	// numFeatures covers order size, volatility, spread, and market volume.
	numFeatures = 4
	// minRegressionSamples is the floor below which a train/test split is
	// meaningless.
	minRegressionSamples = 10
	// splitSeed fixes the shuffle so training is reproducible.
	splitSeed = 42
	// ridge is a tiny diagonal stabilizer for the normal equations.
	ridge = 1e-9
)

// scaler standardizes features to zero mean and unit variance, with the
// statistics learned from the training split.
type scaler struct {
	mean [numFeatures]float64
	std  [numFeatures]float64
}

func fitScaler(rows [][numFeatures]float64) scaler {
	var s scaler
	n := float64(len(rows))
	for _, row := range rows {
		for j, v := range row {
			s.mean[j] += v
		}
	}
	for j := range s.mean {
		s.mean[j] /= n
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - s.mean[j]
			s.std[j] += d * d
		}
	}
	for j := range s.std {
		s.std[j] = math.Sqrt(s.std[j] / n)
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
	return s
}

func (s scaler) transform(row [numFeatures]float64) [numFeatures]float64 {
	var out [numFeatures]float64
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out
}

// Regression predicts slippage from recorded fills with ordinary least
// squares over standardized features. It is trained once; until then, or
// when training data was never supplied, it falls back to the Simple
// estimator.
type Regression struct {
	fallback *Simple
	logger   *slog.Logger

	mu      sync.RWMutex
	trained bool
	scaler  scaler
	// weights[0] is the intercept, weights[1:] the per-feature slopes.
	weights [numFeatures + 1]float64
	score   float64
}

// NewRegression builds an untrained Regression estimator.
func NewRegression(logger *slog.Logger) *Regression {
	return &Regression{
		fallback: NewSimple(0, 0),
		logger:   logger.With(slog.String("component", "regression_slippage")),
	}
}

func sampleFeatures(s domain.SlippageSample) [numFeatures]float64 {
	return [numFeatures]float64{s.OrderSize, s.Volatility, s.Spread, s.MarketVolume}
}

// Train fits the model on recorded fills, holding out 20% of the shuffled
// samples, and returns the R-squared score on the held-out set. Weights are
// write-once: a second call fails with domain.ErrAlreadyTrained.
func (r *Regression) Train(samples []domain.SlippageSample) (float64, error) {
	if len(samples) < minRegressionSamples {
		return 0, fmt.Errorf("slippage: %d samples, need at least %d: %w",
			len(samples), minRegressionSamples, domain.ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trained {
		return 0, fmt.Errorf("slippage: %w", domain.ErrAlreadyTrained)
	}

	perm := rand.New(rand.NewSource(splitSeed)).Perm(len(samples))
	testCount := len(samples) / 5
	trainCount := len(samples) - testCount

	trainX := make([][numFeatures]float64, 0, trainCount)
	trainY := make([]float64, 0, trainCount)
	testX := make([][numFeatures]float64, 0, testCount)
	testY := make([]float64, 0, testCount)
	for i, idx := range perm {
		s := samples[idx]
		if i < trainCount {
			trainX = append(trainX, sampleFeatures(s))
			trainY = append(trainY, s.Slippage)
		} else {
			testX = append(testX, sampleFeatures(s))
			testY = append(testY, s.Slippage)
		}
	}

	sc := fitScaler(trainX)
	for i := range trainX {
		trainX[i] = sc.transform(trainX[i])
	}

	weights, err := solveLeastSquares(trainX, trainY)
	if err != nil {
		return 0, fmt.Errorf("slippage: fit: %w", err)
	}

	var ssRes, ssTot, meanY float64
	for _, y := range testY {
		meanY += y
	}
	meanY /= float64(len(testY))
	for i, row := range testX {
		pred := predict(weights, sc.transform(row))
		ssRes += (testY[i] - pred) * (testY[i] - pred)
		ssTot += (testY[i] - meanY) * (testY[i] - meanY)
	}
	score := 0.0
	if ssTot > 0 {
		score = 1 - ssRes/ssTot
	}

	r.trained = true
	r.scaler = sc
	r.weights = weights
	r.score = score

	r.logger.Info("trained regression slippage model",
		slog.Int("samples", len(samples)),
		slog.Float64("r2_score", score),
	)
	return score, nil
}

// Trained reports whether Train has completed.
func (r *Regression) Trained() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trained
}

// Score returns the held-out R-squared from training, or 0 when untrained.
func (r *Regression) Score() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.score
}

// Estimate predicts slippage from the fitted weights. Absent context inputs
// enter as zeros and are standardized like any other value. The prediction is
// taken in absolute value; a value under 0.1 is treated as a fraction of
// price and converted to currency units.
func (r *Regression) Estimate(orderSize, currentPrice float64, ctx Context) float64 {
	r.mu.RLock()
	trained := r.trained
	sc := r.scaler
	weights := r.weights
	r.mu.RUnlock()

	if !trained {
		r.logger.Warn("model not trained, falling back to simple estimate")
		return r.fallback.Estimate(orderSize, currentPrice, ctx)
	}

	row := sc.transform([numFeatures]float64{orderSize, ctx.Volatility, ctx.Spread, ctx.MarketVolume})
	slippage := math.Abs(predict(weights, row))
	if slippage < 0.1 {
		slippage *= currentPrice
	}
	return slippage
}

func predict(weights [numFeatures + 1]float64, row [numFeatures]float64) float64 {
	out := weights[0]
	for j, v := range row {
		out += weights[j+1] * v
	}
	return out
}

// solveLeastSquares solves the normal equations for OLS with an intercept,
// using Gaussian elimination with partial pivoting over the (lightly ridged)
// Gram matrix.
func solveLeastSquares(rows [][numFeatures]float64, y []float64) ([numFeatures + 1]float64, error) {
	const dim = numFeatures + 1
	var weights [dim]float64

	var gram [dim][dim]float64
	var rhs [dim]float64
	for i, row := range rows {
		var x [dim]float64
		x[0] = 1
		copy(x[1:], row[:])
		for a := 0; a < dim; a++ {
			for b := 0; b < dim; b++ {
				gram[a][b] += x[a] * x[b]
			}
			rhs[a] += x[a] * y[i]
		}
	}
	for a := 0; a < dim; a++ {
		gram[a][a] += ridge
	}

	for col := 0; col < dim; col++ {
		pivot := col
		for rw := col + 1; rw < dim; rw++ {
			if math.Abs(gram[rw][col]) > math.Abs(gram[pivot][col]) {
				pivot = rw
			}
		}
		if math.Abs(gram[pivot][col]) < 1e-12 {
			return weights, fmt.Errorf("singular design matrix")
		}
		gram[col], gram[pivot] = gram[pivot], gram[col]
		rhs[col], rhs[pivot] = rhs[pivot], rhs[col]

		for rw := col + 1; rw < dim; rw++ {
			f := gram[rw][col] / gram[col][col]
			for cc := col; cc < dim; cc++ {
				gram[rw][cc] -= f * gram[col][cc]
			}
			rhs[rw] -= f * rhs[col]
		}
	}
	for col := dim - 1; col >= 0; col-- {
		sum := rhs[col]
		for cc := col + 1; cc < dim; cc++ {
			sum -= gram[col][cc] * weights[cc]
		}
		weights[col] = sum / gram[col][col]
	}
	return weights, nil
}

var _ Estimator = (*Regression)(nil)
