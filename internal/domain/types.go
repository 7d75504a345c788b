// Package domain defines the core types shared across the trade cost
// estimator: price levels, depth deltas, quotes, cost reports, and the
// store/cache interfaces implemented by the infrastructure packages.
package domain

import "time"

// Side identifies one side of an orderbook.
type Side string

const (
	// SideBid is the buy side of the book.
	SideBid Side = "bid"
	// SideAsk is the sell side of the book.
	SideAsk Side = "ask"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// OrderSide identifies the direction of a hypothetical order. A buy consumes
// ask liquidity, a sell consumes bid liquidity.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// ImpactSide returns the book side an order of this direction executes
// against.
func (o OrderSide) ImpactSide() Side {
	if o == OrderSell {
		return SideBid
	}
	return SideAsk
}

// PriceLevel is a single price+quantity entry on one side of a book.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// DepthDelta is one incremental depth update for a symbol. Each level entry
// follows replace-if-positive / delete-if-zero semantics: a quantity > 0
// replaces the level at that price, a quantity <= 0 removes it.
type DepthDelta struct {
	Timestamp time.Time
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// BookSnapshot is a read-only copy of a book's state at a point in time,
// served to external consumers (HTTP API, quote cache).
type BookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // descending by price, best first
	Asks      []PriceLevel `json:"asks"` // ascending by price, best first
	BestBid   float64      `json:"best_bid"`
	BestAsk   float64      `json:"best_ask"`
	MidPrice  float64      `json:"mid_price"`
	Spread    float64      `json:"spread"`
	Timestamp time.Time    `json:"timestamp"`
}

// Quote bundles the top-of-book figures for a symbol.
type Quote struct {
	Symbol    string
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Spread    float64
	Timestamp time.Time
}

// BookQuerier is the read-only book capability the estimators depend on.
// *book.PriceLevelBook implements it; estimators accept the interface so
// they can be exercised against fixtures in tests.
type BookQuerier interface {
	// PriceForVolume walks price levels in priority order until volume is
	// filled and returns the quantity-weighted average execution price. It
	// returns ErrInsufficientLiquidity when the side cannot fill the volume.
	PriceForVolume(side Side, volume float64) (float64, error)
}

// ImpactEstimate is the result of a market-impact estimate for one order.
type ImpactEstimate struct {
	PriceImpact    float64 `json:"price_impact"`
	RelativeImpact float64 `json:"relative_impact"`
	Slippage       float64 `json:"slippage"`
	// Source records whether the estimate walked the live book ("book") or
	// fell back to the square-root model ("model").
	Source string `json:"source"`
}

// CostBreakdown is the decomposition of total execution cost over a trade
// schedule, as produced by the Almgren-Chriss model.
type CostBreakdown struct {
	TemporaryImpact float64 `json:"temporary_impact"`
	PermanentImpact float64 `json:"permanent_impact"`
	VolatilityRisk  float64 `json:"volatility_risk"`
	TotalCost       float64 `json:"total_cost"`
}

// Trajectory is an optimal liquidation schedule: holdings at each period
// boundary and the trade executed in each period. len(Holdings) is always
// len(Trades)+1 and Holdings[0] equals the total size exactly.
type Trajectory struct {
	Holdings []float64 `json:"holdings"`
	Trades   []float64 `json:"trades"`
}

// SlippageSample is one historical observation used to train the regression
// slippage estimator.
type SlippageSample struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	OrderSize    float64   `json:"order_size"`
	Volatility   float64   `json:"volatility"`
	Spread       float64   `json:"spread"`
	MarketVolume float64   `json:"market_volume"`
	Slippage     float64   `json:"slippage"`
	ObservedAt   time.Time `json:"observed_at"`
}

// EstimateRequest describes a hypothetical order to cost out.
type EstimateRequest struct {
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	OrderSize float64   `json:"order_size"`
	// Price overrides the book mid-price as the reference price. Required
	// when no live book is available for the symbol.
	Price float64 `json:"price,omitempty"`
	// Exchange selects the fee schedule; empty uses the default schedule.
	Exchange string `json:"exchange,omitempty"`
	FeeType  string `json:"fee_type,omitempty"`
}

// CostReport is the full cost figure for one hypothetical order, composed by
// the service layer from book queries, the impact model, the slippage
// estimator, and the fee schedule.
type CostReport struct {
	ID             string         `json:"id"`
	Symbol         string         `json:"symbol"`
	Side           OrderSide      `json:"side"`
	OrderSize      float64        `json:"order_size"`
	ReferencePrice float64        `json:"reference_price"`
	Impact         ImpactEstimate `json:"impact"`
	SlippageCost   float64        `json:"slippage_cost"`
	Fee            float64        `json:"fee"`
	NetCost        float64        `json:"net_cost"`
	CreatedAt      time.Time      `json:"created_at"`
}
