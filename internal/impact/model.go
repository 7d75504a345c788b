// Package impact implements the Almgren-Chriss market impact model. The
// model splits execution cost into a temporary component, paid only on the
// trade itself, and a permanent component that shifts the price for all
// subsequent trades, and derives the trading trajectory that balances impact
// cost against volatility risk.
package impact

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/execlab/tradecost/internal/domain"
)

// Params are the market parameters of the model.
type Params struct {
	// LambdaTemp is the temporary impact factor.
	LambdaTemp float64
	// Gamma is the risk aversion parameter.
	Gamma float64
	// Sigma is the asset volatility.
	Sigma float64
	// Eta is the permanent impact factor.
	Eta float64
	// Epsilon is the fixed cost per trade, typically the half spread.
	Epsilon float64
	// Tau is the time interval between trades.
	Tau float64
	// FallbackImpactFactor scales the square-root estimate used when no
	// book depth is available.
	FallbackImpactFactor float64
}

// DefaultParams returns the standard parameterization.
func DefaultParams() Params {
	return Params{
		LambdaTemp:           1e-6,
		Gamma:                0.1,
		Sigma:                0.3,
		Eta:                  2.5e-7,
		Epsilon:              0.01,
		Tau:                  1.0,
		FallbackImpactFactor: 0.1,
	}
}

// minEtaTilde is the floor applied when the adjusted permanent impact
// eta - gamma*tau/2 comes out non-positive.
const minEtaTilde = 1e-8

// Model is an immutable, parameterized Almgren-Chriss model. All derived
// quantities are computed once at construction, so a Model is safe for
// concurrent use.
type Model struct {
	params Params
	logger *slog.Logger

	etaTilde     float64
	kappaTildeSq float64
	kappa        float64

	// degraded is set when etaTilde had to be clamped; trajectory output is
	// still defined but the optimality guarantee no longer holds.
	degraded bool
}

// NewModel validates params and precomputes the trajectory decay rate kappa.
func NewModel(params Params, logger *slog.Logger) (*Model, error) {
	if params.Tau <= 0 || math.IsNaN(params.Tau) || math.IsInf(params.Tau, 0) {
		return nil, fmt.Errorf("impact: tau %v: %w", params.Tau, domain.ErrInvalidParameter)
	}
	for name, v := range map[string]float64{
		"lambda_temp":            params.LambdaTemp,
		"gamma":                  params.Gamma,
		"sigma":                  params.Sigma,
		"eta":                    params.Eta,
		"epsilon":                params.Epsilon,
		"fallback_impact_factor": params.FallbackImpactFactor,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("impact: %s %v: %w", name, v, domain.ErrInvalidParameter)
		}
	}

	m := &Model{
		params: params,
		logger: logger.With(slog.String("component", "impact_model")),
	}

	m.etaTilde = params.Eta - 0.5*params.Gamma*params.Tau
	if m.etaTilde <= 0 {
		m.logger.Warn("adjusted permanent impact non-positive, clamping",
			slog.Float64("eta_tilde", m.etaTilde),
		)
		m.etaTilde = minEtaTilde
		m.degraded = true
	}

	m.kappaTildeSq = params.LambdaTemp * params.Sigma * params.Sigma / m.etaTilde

	// kappa = arccosh(kappaTildeSq * tau^2 / 2 + 1) / tau. The argument is
	// >= 1 whenever kappaTildeSq >= 0, which the validation above ensures.
	arg := 0.5*m.kappaTildeSq*params.Tau*params.Tau + 1
	if arg < 1 {
		return nil, fmt.Errorf("impact: arccosh argument %v out of domain: %w", arg, domain.ErrInvalidParameter)
	}
	m.kappa = math.Acosh(arg) / params.Tau

	return m, nil
}

// Params returns the parameters the model was built with.
func (m *Model) Params() Params { return m.params }

// Kappa returns the trajectory decay rate.
func (m *Model) Kappa() float64 { return m.kappa }

// Degraded reports whether the adjusted permanent impact had to be clamped.
func (m *Model) Degraded() bool { return m.degraded }

// TemporaryImpact returns the temporary impact cost of a single trade over
// the given interval: (epsilon*sign(size) + lambda*rate) * |size|. An
// interval <= 0 defaults to tau.
func (m *Model) TemporaryImpact(tradeSize, interval float64) float64 {
	if interval <= 0 {
		interval = m.params.Tau
	}
	rate := tradeSize / interval
	perUnit := m.params.Epsilon*sign(tradeSize) + m.params.LambdaTemp*rate
	return perUnit * math.Abs(tradeSize)
}

// PermanentImpact returns the lasting price change caused by a trade over the
// given interval: eta * rate. An interval <= 0 defaults to tau.
func (m *Model) PermanentImpact(tradeSize, interval float64) float64 {
	if interval <= 0 {
		interval = m.params.Tau
	}
	return m.params.Eta * tradeSize / interval
}

// OptimalTrajectory computes the cost-risk-optimal execution schedule for
// liquidating totalSize over horizon split into numPeriods trades. It returns
// the holdings before each period (numPeriods+1 entries, holdings[0] ==
// totalSize) and the per-period trade sizes.
func (m *Model) OptimalTrajectory(totalSize, horizon float64, numPeriods int) (domain.Trajectory, error) {
	if numPeriods <= 0 {
		return domain.Trajectory{}, fmt.Errorf("impact: num periods %d: %w", numPeriods, domain.ErrInvalidParameter)
	}
	if horizon <= 0 || math.IsNaN(horizon) || math.IsInf(horizon, 0) {
		return domain.Trajectory{}, fmt.Errorf("impact: horizon %v: %w", horizon, domain.ErrInvalidParameter)
	}

	tau := horizon / float64(numPeriods)
	holdings := make([]float64, numPeriods+1)
	trades := make([]float64, numPeriods)

	sinhKappaT := math.Sinh(m.kappa * horizon)
	if m.kappa == 0 || sinhKappaT == 0 {
		// Degenerate kappa: the schedule collapses to uniform liquidation.
		for j := 0; j <= numPeriods; j++ {
			holdings[j] = totalSize * float64(numPeriods-j) / float64(numPeriods)
		}
	} else {
		for j := 0; j <= numPeriods; j++ {
			holdings[j] = totalSize * math.Sinh(m.kappa*float64(numPeriods-j)*tau) / sinhKappaT
		}
	}
	holdings[0] = totalSize

	for j := 0; j < numPeriods; j++ {
		trades[j] = holdings[j] - holdings[j+1]
	}

	return domain.Trajectory{Holdings: holdings, Trades: trades}, nil
}

// EstimateTotalCost breaks down the cost of executing a trade sequence. The
// initial position is taken to be the sum of the trades. Permanent impact is
// charged against the position remaining after each trade; volatility risk
// accrues on the position held going into it. An interval <= 0 defaults to
// tau.
func (m *Model) EstimateTotalCost(trades []float64, interval float64) domain.CostBreakdown {
	if interval <= 0 {
		interval = m.params.Tau
	}

	var position float64
	for _, ts := range trades {
		position += ts
	}

	var out domain.CostBreakdown
	holding := position
	for _, ts := range trades {
		next := holding - ts

		out.TemporaryImpact += m.TemporaryImpact(ts, interval)
		out.PermanentImpact += m.PermanentImpact(ts, interval) * next
		out.VolatilityRisk += 0.5 * m.params.Gamma * m.params.Sigma * m.params.Sigma * holding * holding * interval

		holding = next
	}
	out.TotalCost = out.TemporaryImpact + out.PermanentImpact + out.VolatilityRisk
	return out
}

// EstimateMarketImpact estimates the impact of an order against live book
// depth. Buys walk the ask side, sells the bid side. When book is nil or
// cannot fill the order, the estimate falls back to the square-root model.
// It never fails: the fallback always produces a finite estimate.
func (m *Model) EstimateMarketImpact(orderSize, currentPrice float64, book domain.BookQuerier, side domain.OrderSide) domain.ImpactEstimate {
	if book == nil {
		return m.fallbackImpact(orderSize, currentPrice)
	}

	executed, err := book.PriceForVolume(side.ImpactSide(), orderSize)
	if err != nil {
		m.logger.Warn("book cannot fill order, using model estimate",
			slog.Float64("order_size", orderSize),
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)
		return m.fallbackImpact(orderSize, currentPrice)
	}

	var priceImpact float64
	if side == domain.OrderBuy {
		priceImpact = executed - currentPrice
	} else {
		priceImpact = currentPrice - executed
	}
	priceImpact = math.Max(0, priceImpact)

	est := domain.ImpactEstimate{
		PriceImpact: priceImpact,
		Slippage:    priceImpact * orderSize,
		Source:      "book",
	}
	if currentPrice > 0 {
		est.RelativeImpact = priceImpact / currentPrice
	}
	return est
}

// fallbackImpact is the square-root estimate used without book depth:
// factor * price * sqrt(size).
func (m *Model) fallbackImpact(orderSize, currentPrice float64) domain.ImpactEstimate {
	priceImpact := m.params.FallbackImpactFactor * currentPrice * math.Sqrt(math.Abs(orderSize))

	est := domain.ImpactEstimate{
		PriceImpact: priceImpact,
		Slippage:    priceImpact * orderSize,
		Source:      "model",
	}
	if currentPrice > 0 {
		est.RelativeImpact = priceImpact / currentPrice
	}
	return est
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
