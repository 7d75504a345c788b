package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/domain"
)

// Feeder opens one depth stream per configured symbol and routes every
// decoded delta through the registry via the provided handler. It runs until
// the context is cancelled.
type Feeder struct {
	urlTemplate string
	symbols     []string
	registry    *book.Registry
	onDelta     DeltaHandler
	logger      *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewFeeder creates a feeder. urlTemplate is the stream endpoint with an
// optional "{symbol}" placeholder; without one the symbol is appended as a
// path segment. onDelta may be nil, in which case deltas go straight to the
// registry.
func NewFeeder(urlTemplate string, symbols []string, registry *book.Registry, onDelta DeltaHandler, logger *slog.Logger) *Feeder {
	return &Feeder{
		urlTemplate: urlTemplate,
		symbols:     symbols,
		registry:    registry,
		onDelta:     onDelta,
		logger:      logger.With(slog.String("component", "feeder")),
		done:        make(chan struct{}),
	}
}

// StreamURL resolves the endpoint for one symbol.
func (f *Feeder) StreamURL(symbol string) string {
	if strings.Contains(f.urlTemplate, "{symbol}") {
		return strings.ReplaceAll(f.urlTemplate, "{symbol}", symbol)
	}
	return strings.TrimRight(f.urlTemplate, "/") + "/" + symbol
}

// Run connects every symbol's stream and blocks until ctx is cancelled or
// Close is called. Each client reconnects independently on disconnect.
func (f *Feeder) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols configured, exiting")
		return nil
	}

	for _, symbol := range f.symbols {
		client := NewDepthClient(f.StreamURL(symbol), symbol, f.logger)
		client.OnDelta(f.route)
		f.registry.Connect(symbol, client)

		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := client.Connect(connCtx)
		cancel()
		if err != nil {
			// The client's own backoff takes over; the book stays
			// registered and fills once the stream comes up.
			f.logger.Warn("initial connect failed, client will retry",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			go client.reconnect()
		}
	}
	f.logger.Info("depth feeds started", slog.Int("symbols", len(f.symbols)))

	select {
	case <-ctx.Done():
		f.registry.DisconnectAll()
		return ctx.Err()
	case <-f.done:
		f.registry.DisconnectAll()
		return nil
	}
}

func (f *Feeder) route(symbol string, delta domain.DepthDelta) {
	if f.onDelta != nil {
		f.onDelta(symbol, delta)
		return
	}
	f.registry.RouteDelta(symbol, delta)
}

// Close stops the feeder and disconnects all streams.
func (f *Feeder) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
