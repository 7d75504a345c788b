// Package slippage provides a family of estimators for the cost gap between
// the quoted price and the realized execution price: a closed-form
// square-root model, a book-walking model, and a regression model trained on
// recorded fills. A factory picks among them based on what data is available.
package slippage

import "github.com/execlab/tradecost/internal/domain"

// Context carries the optional market inputs an estimator may use. Zero
// values mean the input is absent: estimators degrade to their fallback
// behavior rather than fail.
type Context struct {
	// MarketVolume is the typical traded volume used to normalize order
	// size.
	MarketVolume float64
	// Volatility is the current volatility of the asset.
	Volatility float64
	// Spread is the current bid-ask spread.
	Spread float64
	// Book exposes live depth when available.
	Book domain.BookQuerier
	// Side is the order direction; it selects which book side is walked.
	Side domain.OrderSide
}

// Estimator estimates slippage in currency units for an order of the given
// size at the given reference price. Implementations never fail: missing
// inputs trigger a fallback estimate instead.
type Estimator interface {
	Estimate(orderSize, currentPrice float64, ctx Context) float64
}
