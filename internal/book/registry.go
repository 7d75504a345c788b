package book

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/execlab/tradecost/internal/domain"
)

// Feed is the handle the registry keeps for each connected symbol so it can
// release the subscription on disconnect. The websocket client in
// internal/feed satisfies it.
type Feed interface {
	Close() error
}

// Registry owns the collection of per-symbol books and routes inbound depth
// deltas to them. It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	books map[string]*PriceLevelBook
	feeds map[string]Feed
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With(slog.String("component", "book_registry")),
		books:  make(map[string]*PriceLevelBook),
		feeds:  make(map[string]Feed),
	}
}

// Connect creates the book for symbol if absent and associates the feed
// handle with it. A nil feed is allowed (e.g. books populated from replayed
// data). The book is returned so the caller can register delta handlers.
func (r *Registry) Connect(symbol string, feed Feed) *PriceLevelBook {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[symbol]
	if !ok {
		b = New(symbol, r.logger)
		r.books[symbol] = b
	}
	if feed != nil {
		r.feeds[symbol] = feed
	}
	return b
}

// RouteDelta forwards a delta to the symbol's book. Deltas for unregistered
// symbols are dropped with a warning; a live stream must never be able to
// take the registry down.
func (r *Registry) RouteDelta(symbol string, delta domain.DepthDelta) {
	r.mu.RLock()
	b, ok := r.books[symbol]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("dropping delta for unknown symbol",
			slog.String("symbol", symbol),
		)
		return
	}

	elapsed := b.ApplyDelta(delta)
	r.logger.Debug("applied depth delta",
		slog.String("symbol", symbol),
		slog.Duration("processing", elapsed),
	)
}

// Get returns the book for symbol, or domain.ErrNotFound.
func (r *Registry) Get(symbol string) (*PriceLevelBook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.books[symbol]
	if !ok {
		return nil, fmt.Errorf("book %q: %w", symbol, domain.ErrNotFound)
	}
	return b, nil
}

// Symbols returns the registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DisconnectAll closes every feed association. Books are retained and stay
// queryable with their last state until Remove is called.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for symbol, feed := range r.feeds {
		if err := feed.Close(); err != nil {
			r.logger.Warn("closing feed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		} else {
			r.logger.Info("disconnected feed", slog.String("symbol", symbol))
		}
	}
	r.feeds = make(map[string]Feed)
}

// Remove drops the retained book for symbol, closing its feed if one is
// still attached.
func (r *Registry) Remove(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if feed, ok := r.feeds[symbol]; ok {
		_ = feed.Close()
		delete(r.feeds, symbol)
	}
	delete(r.books, symbol)
}
