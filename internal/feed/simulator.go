package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/execlab/tradecost/internal/domain"
)

// SimulatorConfig tunes the synthetic depth generator.
type SimulatorConfig struct {
	Symbols  []string
	Interval time.Duration
	MidPrice float64
	Levels   int
	Seed     int64
}

// Simulator emits synthetic depth deltas for a set of symbols. Each symbol's
// mid-price follows an independent random walk and every tick rebuilds a
// ladder of Levels price levels on each side. It exists so the estimator can
// be exercised end to end without a live exchange connection.
type Simulator struct {
	cfg     SimulatorConfig
	onDelta DeltaHandler
	rng     *rand.Rand
	mids    map[string]float64
	logger  *slog.Logger
}

// NewSimulator creates a Simulator delivering deltas through onDelta.
func NewSimulator(cfg SimulatorConfig, onDelta DeltaHandler, logger *slog.Logger) *Simulator {
	mids := make(map[string]float64, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		mids[s] = cfg.MidPrice
	}
	return &Simulator{
		cfg:     cfg,
		onDelta: onDelta,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		mids:    mids,
		logger:  logger.With(slog.String("component", "simulator")),
	}
}

// Run emits deltas until the context is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulator starting",
		slog.Int("symbols", len(s.cfg.Symbols)),
		slog.Duration("interval", s.cfg.Interval),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator stopping")
			return ctx.Err()
		case now := <-ticker.C:
			for _, symbol := range s.cfg.Symbols {
				s.onDelta(symbol, s.tick(symbol, now))
			}
		}
	}
}

// tick advances one symbol's random walk and builds its next delta.
func (s *Simulator) tick(symbol string, now time.Time) domain.DepthDelta {
	mid := s.mids[symbol]

	// Random walk with ~10bps per-tick moves, floored away from zero.
	mid *= 1 + (s.rng.Float64()-0.5)*0.002
	if mid < 1 {
		mid = 1
	}
	s.mids[symbol] = mid

	step := mid * 0.0005
	delta := domain.DepthDelta{
		Timestamp: now,
		Bids:      make([]domain.PriceLevel, 0, s.cfg.Levels),
		Asks:      make([]domain.PriceLevel, 0, s.cfg.Levels),
	}
	for i := 1; i <= s.cfg.Levels; i++ {
		qty := 0.5 + s.rng.Float64()*2
		delta.Bids = append(delta.Bids, domain.PriceLevel{
			Price:    mid - step*float64(i),
			Quantity: qty,
		})
		qty = 0.5 + s.rng.Float64()*2
		delta.Asks = append(delta.Asks, domain.PriceLevel{
			Price:    mid + step*float64(i),
			Quantity: qty,
		})
	}
	return delta
}
