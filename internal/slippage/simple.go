package slippage

import "math"

const defaultImpactFactor = 0.1

// Simple is the closed-form square-root estimator. With a market volume it
// normalizes order size by volume; without one it scales the impact factor by
// volatility and applies it to the raw square root of the order size.
type Simple struct {
	impactFactor float64
	marketVolume float64
}

// NewSimple builds a Simple estimator. impactFactor <= 0 selects the default
// of 0.1; marketVolume <= 0 means no baseline volume is configured.
func NewSimple(impactFactor, marketVolume float64) *Simple {
	if impactFactor <= 0 {
		impactFactor = defaultImpactFactor
	}
	return &Simple{impactFactor: impactFactor, marketVolume: marketVolume}
}

// Estimate returns factor*price*sqrt(size/volume) when a volume is known,
// from the context or the configured baseline, and factor*(1+volatility)*
// price*sqrt(size) otherwise.
func (s *Simple) Estimate(orderSize, currentPrice float64, ctx Context) float64 {
	volume := ctx.MarketVolume
	if volume <= 0 {
		volume = s.marketVolume
	}

	if volume <= 0 {
		factor := s.impactFactor
		if ctx.Volatility > 0 {
			factor *= 1 + ctx.Volatility
		}
		return factor * currentPrice * math.Sqrt(math.Abs(orderSize))
	}

	return s.impactFactor * currentPrice * math.Sqrt(math.Abs(orderSize)/volume)
}

var _ Estimator = (*Simple)(nil)
