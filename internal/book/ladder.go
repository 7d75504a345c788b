package book

import (
	"sort"

	"github.com/execlab/tradecost/internal/domain"
)

// ladder is an ordered set of price levels for one side of a book, kept
// sorted ascending by price. Lookups and mutations use binary search, so
// best-price queries are O(1) at either end and level updates are O(log n)
// search plus O(n) shift.
type ladder struct {
	levels []domain.PriceLevel
}

// find returns the index at which price sits (or would be inserted) and
// whether a level with exactly that price exists.
func (l *ladder) find(price float64) (int, bool) {
	i := sort.Search(len(l.levels), func(i int) bool {
		return l.levels[i].Price >= price
	})
	return i, i < len(l.levels) && l.levels[i].Price == price
}

// set replaces the quantity at price, inserting a new level when absent.
func (l *ladder) set(price, quantity float64) {
	i, ok := l.find(price)
	if ok {
		l.levels[i].Quantity = quantity
		return
	}
	l.levels = append(l.levels, domain.PriceLevel{})
	copy(l.levels[i+1:], l.levels[i:])
	l.levels[i] = domain.PriceLevel{Price: price, Quantity: quantity}
}

// remove deletes the level at price if present.
func (l *ladder) remove(price float64) {
	i, ok := l.find(price)
	if !ok {
		return
	}
	l.levels = append(l.levels[:i], l.levels[i+1:]...)
}

// get returns the quantity at price, or 0 when the level is absent.
func (l *ladder) get(price float64) float64 {
	if i, ok := l.find(price); ok {
		return l.levels[i].Quantity
	}
	return 0
}

// min returns the lowest-priced level.
func (l *ladder) min() (domain.PriceLevel, bool) {
	if len(l.levels) == 0 {
		return domain.PriceLevel{}, false
	}
	return l.levels[0], true
}

// max returns the highest-priced level.
func (l *ladder) max() (domain.PriceLevel, bool) {
	if len(l.levels) == 0 {
		return domain.PriceLevel{}, false
	}
	return l.levels[len(l.levels)-1], true
}

func (l *ladder) len() int { return len(l.levels) }

// ascending returns a copy of the levels from lowest to highest price.
func (l *ladder) ascending() []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(l.levels))
	copy(out, l.levels)
	return out
}

// descending returns a copy of the levels from highest to lowest price.
func (l *ladder) descending() []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(l.levels))
	for i, lvl := range l.levels {
		out[len(l.levels)-1-i] = lvl
	}
	return out
}
