// Package book maintains per-symbol limit order book state from streamed
// depth deltas and answers the depth queries the cost estimators rely on:
// best price, spread, mid-price, cumulative volume, and volume-weighted
// execution price.
package book

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/execlab/tradecost/internal/domain"
)

// PriceLevelBook is the live book for a single symbol. A single writer (the
// feed delivering the symbol's deltas) mutates it through ApplyDelta while
// any number of readers query it concurrently; one RWMutex guards the whole
// book so every query observes a self-consistent snapshot.
type PriceLevelBook struct {
	symbol string
	logger *slog.Logger

	mu             sync.RWMutex
	bids           ladder
	asks           ladder
	lastUpdate     time.Time
	lastProcessing time.Duration
}

// New creates an empty book for the given symbol.
func New(symbol string, logger *slog.Logger) *PriceLevelBook {
	return &PriceLevelBook{
		symbol: symbol,
		logger: logger.With(
			slog.String("component", "book"),
			slog.String("symbol", symbol),
		),
	}
}

// Symbol returns the trading symbol this book tracks.
func (b *PriceLevelBook) Symbol() string { return b.symbol }

// ApplyDelta applies one depth update: each entry with quantity > 0 replaces
// the level at its price, each entry with quantity <= 0 removes it. Entries
// with a non-finite or non-positive price are logged and skipped; they never
// abort the rest of the delta. The returned duration is the processing time
// for telemetry only.
func (b *PriceLevelBook) ApplyDelta(delta domain.DepthDelta) time.Duration {
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.applySide(&b.bids, domain.SideBid, delta.Bids)
	b.applySide(&b.asks, domain.SideAsk, delta.Asks)

	if !delta.Timestamp.IsZero() {
		b.lastUpdate = delta.Timestamp
	} else {
		b.lastUpdate = start
	}
	b.lastProcessing = time.Since(start)
	return b.lastProcessing
}

// applySide applies one side's entries. Caller must hold b.mu.
func (b *PriceLevelBook) applySide(l *ladder, side domain.Side, entries []domain.PriceLevel) {
	for _, e := range entries {
		if !validLevel(e) {
			b.logger.Warn("skipping malformed depth entry",
				slog.String("side", string(side)),
				slog.Float64("price", e.Price),
				slog.Float64("quantity", e.Quantity),
			)
			continue
		}
		if e.Quantity > 0 {
			l.set(e.Price, e.Quantity)
		} else {
			l.remove(e.Price)
		}
	}
}

// validLevel reports whether a delta entry can be applied. Quantity <= 0 is
// valid (it deletes the level); a NaN quantity or a non-positive or
// non-finite price is not.
func validLevel(e domain.PriceLevel) bool {
	if math.IsNaN(e.Price) || math.IsInf(e.Price, 0) || e.Price <= 0 {
		return false
	}
	if math.IsNaN(e.Quantity) || math.IsInf(e.Quantity, 0) {
		return false
	}
	return true
}

// BestBid returns the highest bid level, or false when the bid side is empty.
func (b *PriceLevelBook) BestBid() (domain.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.max()
}

// BestAsk returns the lowest ask level, or false when the ask side is empty.
func (b *PriceLevelBook) BestAsk() (domain.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.min()
}

// Spread returns bestAsk - bestBid, or false when either side is empty.
func (b *PriceLevelBook) Spread() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ask, okAsk := b.asks.min()
	bid, okBid := b.bids.max()
	if !okAsk || !okBid {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// MidPrice returns (bestAsk + bestBid) / 2, or false when either side is
// empty.
func (b *PriceLevelBook) MidPrice() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ask, okAsk := b.asks.min()
	bid, okBid := b.bids.max()
	if !okAsk || !okBid {
		return 0, false
	}
	return (ask.Price + bid.Price) / 2, true
}

// VolumeAtPrice returns the exact quantity resting at price on the given
// side, or 0 when the level is absent or the side is unknown.
func (b *PriceLevelBook) VolumeAtPrice(side domain.Side, price float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch side {
	case domain.SideAsk:
		return b.asks.get(price)
	case domain.SideBid:
		return b.bids.get(price)
	default:
		return 0
	}
}

// CumulativeVolume sums the quantity at all ask levels priced <= bound, or
// all bid levels priced >= bound.
func (b *PriceLevelBook) CumulativeVolume(side domain.Side, bound float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total float64
	switch side {
	case domain.SideAsk:
		for _, lvl := range b.asks.levels {
			if lvl.Price > bound {
				break
			}
			total += lvl.Quantity
		}
	case domain.SideBid:
		for i := len(b.bids.levels) - 1; i >= 0; i-- {
			lvl := b.bids.levels[i]
			if lvl.Price < bound {
				break
			}
			total += lvl.Quantity
		}
	}
	return total
}

// PriceForVolume walks price levels in priority order — ascending for asks,
// descending for bids — accumulating quantity until volume is filled, and
// returns the quantity-weighted average execution price. It returns
// domain.ErrInsufficientLiquidity when the side cannot fill the volume, and
// treats a non-positive volume the same way so the division below is always
// defined. Pure query; the book is never mutated.
func (b *PriceLevelBook) PriceForVolume(side domain.Side, volume float64) (float64, error) {
	if volume <= 0 || math.IsNaN(volume) {
		return 0, domain.ErrInsufficientLiquidity
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []domain.PriceLevel
	switch side {
	case domain.SideAsk:
		levels = b.asks.levels
	case domain.SideBid:
		levels = b.bids.descending()
	default:
		return 0, domain.ErrInsufficientLiquidity
	}

	remaining := volume
	var totalCost float64
	for _, lvl := range levels {
		if remaining <= lvl.Quantity {
			totalCost += remaining * lvl.Price
			remaining = 0
			break
		}
		totalCost += lvl.Quantity * lvl.Price
		remaining -= lvl.Quantity
	}

	if remaining > 0 {
		return 0, domain.ErrInsufficientLiquidity
	}
	return totalCost / volume, nil
}

// Depth returns the number of levels on the given side.
func (b *PriceLevelBook) Depth(side domain.Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch side {
	case domain.SideAsk:
		return b.asks.len()
	case domain.SideBid:
		return b.bids.len()
	default:
		return 0
	}
}

// LastUpdate returns the timestamp of the most recently applied delta.
func (b *PriceLevelBook) LastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// LastProcessing returns how long the most recent ApplyDelta took.
func (b *PriceLevelBook) LastProcessing() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastProcessing
}

// Snapshot returns a read-only copy of the book: bids best-first, asks
// best-first, plus the derived top-of-book figures.
func (b *PriceLevelBook) Snapshot() domain.BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := domain.BookSnapshot{
		Symbol:    b.symbol,
		Bids:      b.bids.descending(),
		Asks:      b.asks.ascending(),
		Timestamp: b.lastUpdate,
	}

	ask, okAsk := b.asks.min()
	bid, okBid := b.bids.max()
	if okBid {
		snap.BestBid = bid.Price
	}
	if okAsk {
		snap.BestAsk = ask.Price
	}
	if okAsk && okBid {
		snap.MidPrice = (ask.Price + bid.Price) / 2
		snap.Spread = ask.Price - bid.Price
	}
	return snap
}

// Compile-time interface check.
var _ domain.BookQuerier = (*PriceLevelBook)(nil)
