// Package fees models exchange fee schedules: percentage, volume-tiered,
// and flat structures, plus a registry mapping exchange names to their
// configured calculator.
package fees

import (
	"log/slog"
	"sort"
	"strings"
)

// Type identifies what a fee is charged for.
type Type string

const (
	Maker      Type = "maker"
	Taker      Type = "taker"
	Deposit    Type = "deposit"
	Withdrawal Type = "withdrawal"
	Network    Type = "network"
)

// Valid reports whether t is a known fee type.
func (t Type) Valid() bool {
	switch t {
	case Maker, Taker, Deposit, Withdrawal, Network:
		return true
	default:
		return false
	}
}

// normalize maps unknown fee types to taker, the conservative default.
func (t Type) normalize() Type {
	if !t.Valid() {
		return Taker
	}
	return t
}

// Params carries the optional inputs a fee calculation may need.
type Params struct {
	// TradingVolume is the 30-day volume used for tier selection.
	TradingVolume float64
	// NetworkFee is the externally quoted chain fee; network fees pass
	// through every calculator unchanged.
	NetworkFee float64
}

// Calculator computes the fee in quote currency for an order of the given
// size at the given price.
type Calculator interface {
	Fee(orderSize, price float64, feeType Type, p Params) float64
}

// Percentage charges a fixed rate of trade value per fee type. This is the
// most common exchange structure.
type Percentage struct {
	rates map[Type]float64
}

// NewPercentage builds a percentage calculator from per-type decimal rates
// (0.001 means 0.1%).
func NewPercentage(maker, taker, deposit, withdrawal float64) *Percentage {
	return &Percentage{rates: map[Type]float64{
		Maker:      maker,
		Taker:      taker,
		Deposit:    deposit,
		Withdrawal: withdrawal,
	}}
}

// DefaultPercentage returns the generic 0.1%/0.2% schedule.
func DefaultPercentage() *Percentage {
	return NewPercentage(0.001, 0.002, 0, 0.0005)
}

func (c *Percentage) Fee(orderSize, price float64, feeType Type, p Params) float64 {
	feeType = feeType.normalize()
	if feeType == Network {
		return p.NetworkFee
	}
	return orderSize * price * c.rates[feeType]
}

// Tier is one volume band of a tiered schedule: the rate applies at and
// above the threshold.
type Tier struct {
	Threshold float64
	Rate      float64
}

// Tiered discounts the rate as 30-day trading volume grows.
type Tiered struct {
	makerTiers []Tier
	takerTiers []Tier
}

// NewTiered builds a tiered calculator. Nil tier lists select the generic
// defaults. Tiers are kept sorted by threshold.
func NewTiered(makerTiers, takerTiers []Tier) *Tiered {
	if makerTiers == nil {
		makerTiers = []Tier{
			{0, 0.001}, {50000, 0.0008}, {100000, 0.0006}, {500000, 0.0004}, {1000000, 0.0002},
		}
	}
	if takerTiers == nil {
		takerTiers = []Tier{
			{0, 0.002}, {50000, 0.0018}, {100000, 0.0016}, {500000, 0.0014}, {1000000, 0.0012},
		}
	}
	c := &Tiered{
		makerTiers: append([]Tier(nil), makerTiers...),
		takerTiers: append([]Tier(nil), takerTiers...),
	}
	sort.Slice(c.makerTiers, func(i, j int) bool { return c.makerTiers[i].Threshold < c.makerTiers[j].Threshold })
	sort.Slice(c.takerTiers, func(i, j int) bool { return c.takerTiers[i].Threshold < c.takerTiers[j].Threshold })
	return c
}

// rateFor returns the rate of the highest tier whose threshold the volume
// reaches.
func rateFor(volume float64, tiers []Tier) float64 {
	rate := tiers[0].Rate
	for _, t := range tiers {
		if volume >= t.Threshold {
			rate = t.Rate
		}
	}
	return rate
}

func (c *Tiered) Fee(orderSize, price float64, feeType Type, p Params) float64 {
	switch feeType.normalize() {
	case Maker:
		return orderSize * price * rateFor(p.TradingVolume, c.makerTiers)
	case Taker:
		return orderSize * price * rateFor(p.TradingVolume, c.takerTiers)
	case Network:
		return p.NetworkFee
	default:
		// Deposit and withdrawal have no tiers; charge the base rate.
		return orderSize * price * 0.001
	}
}

// Flat charges a fixed amount per transaction regardless of size.
type Flat struct {
	fees map[Type]float64
}

// NewFlat builds a flat calculator with per-type amounts in quote currency.
func NewFlat(maker, taker, deposit, withdrawal float64) *Flat {
	return &Flat{fees: map[Type]float64{
		Maker:      maker,
		Taker:      taker,
		Deposit:    deposit,
		Withdrawal: withdrawal,
	}}
}

func (c *Flat) Fee(orderSize, price float64, feeType Type, p Params) float64 {
	feeType = feeType.normalize()
	if feeType == Network {
		return p.NetworkFee
	}
	return c.fees[feeType]
}

// Schedule maps exchange names to their calculators, with a percentage
// default for unknown exchanges.
type Schedule struct {
	logger      *slog.Logger
	calculators map[string]Calculator
	fallback    Calculator
}

// NewSchedule returns an empty schedule with the generic percentage default.
func NewSchedule(logger *slog.Logger) *Schedule {
	return &Schedule{
		logger:      logger.With(slog.String("component", "fee_schedule")),
		calculators: make(map[string]Calculator),
		fallback:    DefaultPercentage(),
	}
}

// Register associates a calculator with an exchange name, case-insensitively.
func (s *Schedule) Register(exchange string, c Calculator) {
	s.calculators[strings.ToLower(exchange)] = c
}

// Calculator returns the calculator for the exchange, or the default when
// the exchange is unknown or empty.
func (s *Schedule) Calculator(exchange string) Calculator {
	if exchange == "" {
		return s.fallback
	}
	c, ok := s.calculators[strings.ToLower(exchange)]
	if !ok {
		s.logger.Warn("no fee schedule for exchange, using default",
			slog.String("exchange", exchange),
		)
		return s.fallback
	}
	return c
}

// Fee calculates the fee for an order on the named exchange.
func (s *Schedule) Fee(orderSize, price float64, exchange string, feeType Type, p Params) float64 {
	return s.Calculator(exchange).Fee(orderSize, price, feeType, p)
}

// TotalCost returns the all-in cost of a trade and the fee alone. Fees add
// to the cost of buys and come out of the proceeds of sells.
func (s *Schedule) TotalCost(orderSize, price float64, exchange string, feeType Type, buy bool, p Params) (total, fee float64) {
	base := orderSize * price
	fee = s.Fee(orderSize, price, exchange, feeType, p)
	if buy {
		return base + fee, fee
	}
	return base - fee, fee
}

// DefaultSchedule returns a schedule preloaded with the tier tables of the
// major venues.
func DefaultSchedule(logger *slog.Logger) *Schedule {
	s := NewSchedule(logger)

	s.Register("okx", NewTiered(
		[]Tier{{0, 0.0008}, {5000000, 0.0006}, {10000000, 0.0004}, {20000000, 0.0002}},
		[]Tier{{0, 0.001}, {5000000, 0.0008}, {10000000, 0.0006}, {20000000, 0.0004}},
	))
	s.Register("binance", NewTiered(
		[]Tier{{0, 0.001}, {1000000, 0.0009}, {5000000, 0.0008}, {10000000, 0.0007}},
		[]Tier{{0, 0.001}, {1000000, 0.0009}, {5000000, 0.0008}, {10000000, 0.0007}},
	))
	s.Register("coinbase", NewTiered(
		[]Tier{{0, 0.005}, {10000, 0.0035}, {50000, 0.0025}, {100000, 0.002}},
		[]Tier{{0, 0.006}, {10000, 0.004}, {50000, 0.0025}, {100000, 0.002}},
	))

	return s
}
