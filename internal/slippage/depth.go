package slippage

import (
	"log/slog"
	"math"

	"github.com/execlab/tradecost/internal/domain"
)

const defaultAdditionalFactor = 1.1

// Depth estimates slippage by walking the live book: the gap between the
// volume-weighted execution price and the reference price, scaled up by a
// factor covering costs not visible in the book. Without a book, or when the
// book cannot fill the order, it falls back to the Simple estimator.
type Depth struct {
	additionalFactor float64
	fallback         *Simple
	logger           *slog.Logger
}

// NewDepth builds a Depth estimator. additionalFactor <= 0 selects the
// default of 1.1.
func NewDepth(additionalFactor float64, logger *slog.Logger) *Depth {
	if additionalFactor <= 0 {
		additionalFactor = defaultAdditionalFactor
	}
	return &Depth{
		additionalFactor: additionalFactor,
		fallback:         NewSimple(0, 0),
		logger:           logger.With(slog.String("component", "depth_slippage")),
	}
}

// Estimate walks ctx.Book on the side the order would consume. The result is
// floored at zero so a favorable book never reports negative slippage.
func (d *Depth) Estimate(orderSize, currentPrice float64, ctx Context) float64 {
	if ctx.Book == nil {
		d.logger.Warn("no book available, falling back to simple estimate")
		return d.fallback.Estimate(orderSize, currentPrice, ctx)
	}

	executed, err := ctx.Book.PriceForVolume(ctx.Side.ImpactSide(), orderSize)
	if err != nil {
		d.logger.Warn("book cannot fill order, falling back to simple estimate",
			slog.Float64("order_size", orderSize),
			slog.String("side", string(ctx.Side)),
			slog.String("error", err.Error()),
		)
		return d.fallback.Estimate(orderSize, currentPrice, ctx)
	}

	var slippage float64
	if ctx.Side == domain.OrderSell {
		slippage = currentPrice - executed
	} else {
		slippage = executed - currentPrice
	}
	return math.Max(0, slippage*d.additionalFactor)
}

var _ Estimator = (*Depth)(nil)
