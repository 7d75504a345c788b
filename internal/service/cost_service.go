// Package service coordinates the books, models, and infrastructure into the
// operations the API and the simulation mode expose.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/domain"
	"github.com/execlab/tradecost/internal/fees"
	"github.com/execlab/tradecost/internal/impact"
	"github.com/execlab/tradecost/internal/slippage"
)

// CostService answers execution-cost questions against the live books: it
// routes inbound depth deltas, publishes quotes, and assembles cost reports
// from the impact model, the slippage estimator, and the fee schedule.
// The sample store, quote cache, and archiver are optional; a nil dependency
// disables that concern.
type CostService struct {
	registry  *book.Registry
	model     *impact.Model
	estimator slippage.Estimator
	fees      *fees.Schedule
	samples   domain.SampleStore
	quotes    domain.QuoteCache
	archiver  domain.ReportArchiver
	logger    *slog.Logger
}

// NewCostService creates a CostService. registry, model, estimator, and
// schedule are required; samples, quotes, and archiver may be nil.
func NewCostService(
	registry *book.Registry,
	model *impact.Model,
	estimator slippage.Estimator,
	schedule *fees.Schedule,
	samples domain.SampleStore,
	quotes domain.QuoteCache,
	archiver domain.ReportArchiver,
	logger *slog.Logger,
) *CostService {
	return &CostService{
		registry:  registry,
		model:     model,
		estimator: estimator,
		fees:      schedule,
		samples:   samples,
		quotes:    quotes,
		archiver:  archiver,
		logger:    logger.With(slog.String("component", "cost_service")),
	}
}

// HandleDelta applies one depth update and publishes the refreshed quote.
// Quote publication is best-effort: a cache failure is logged, never
// propagated into the data path.
func (s *CostService) HandleDelta(symbol string, delta domain.DepthDelta) {
	s.registry.RouteDelta(symbol, delta)

	if s.quotes == nil {
		return
	}
	b, err := s.registry.Get(symbol)
	if err != nil {
		return
	}
	snap := b.Snapshot()
	if snap.MidPrice == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	quote := domain.Quote{
		Symbol:    symbol,
		BestBid:   snap.BestBid,
		BestAsk:   snap.BestAsk,
		MidPrice:  snap.MidPrice,
		Spread:    snap.Spread,
		Timestamp: snap.Timestamp,
	}
	if err := s.quotes.SetQuote(ctx, quote); err != nil {
		s.logger.Warn("publishing quote failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

// EstimateOrder assembles a full cost report for a hypothetical order. The
// reference price is the request's, or the book mid-price when the request
// leaves it zero. Book depth refines the impact and slippage estimates when
// available; without it the closed-form models take over.
func (s *CostService) EstimateOrder(ctx context.Context, req domain.EstimateRequest) (domain.CostReport, error) {
	if req.OrderSize <= 0 {
		return domain.CostReport{}, fmt.Errorf("cost_service: order size %v: %w", req.OrderSize, domain.ErrInvalidParameter)
	}
	side := req.Side
	if side == "" {
		side = domain.OrderBuy
	}
	if side != domain.OrderBuy && side != domain.OrderSell {
		return domain.CostReport{}, fmt.Errorf("cost_service: side %q: %w", side, domain.ErrInvalidParameter)
	}

	var querier domain.BookQuerier
	var spread float64
	refPrice := req.Price

	if b, err := s.registry.Get(req.Symbol); err == nil {
		querier = b
		if sp, ok := b.Spread(); ok {
			spread = sp
		}
		if refPrice == 0 {
			if mid, ok := b.MidPrice(); ok {
				refPrice = mid
			}
		}
	}
	if refPrice <= 0 {
		return domain.CostReport{}, fmt.Errorf("cost_service: no reference price for %q: %w", req.Symbol, domain.ErrInvalidParameter)
	}

	est := s.model.EstimateMarketImpact(req.OrderSize, refPrice, querier, side)

	slip := s.estimator.Estimate(req.OrderSize, refPrice, slippage.Context{
		Spread: spread,
		Book:   querier,
		Side:   side,
	})

	feeType := fees.Type(req.FeeType)
	if req.FeeType == "" {
		feeType = fees.Taker
	}
	fee := s.fees.Fee(req.OrderSize, refPrice, req.Exchange, feeType, fees.Params{})

	base := req.OrderSize * refPrice
	net := base + slip + fee
	if side == domain.OrderSell {
		net = base - slip - fee
	}

	report := domain.CostReport{
		ID:             uuid.NewString(),
		Symbol:         req.Symbol,
		Side:           side,
		OrderSize:      req.OrderSize,
		ReferencePrice: refPrice,
		Impact:         est,
		SlippageCost:   slip,
		Fee:            fee,
		NetCost:        net,
		CreatedAt:      time.Now().UTC(),
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveReport(ctx, report); err != nil {
			s.logger.Warn("archiving report failed",
				slog.String("report_id", report.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return report, nil
}

// RecordSample persists an observed fill for later regression training.
func (s *CostService) RecordSample(ctx context.Context, sample domain.SlippageSample) error {
	if s.samples == nil {
		return fmt.Errorf("cost_service: sample store not configured: %w", domain.ErrInvalidParameter)
	}
	if sample.OrderSize <= 0 {
		return fmt.Errorf("cost_service: sample order size %v: %w", sample.OrderSize, domain.ErrInvalidParameter)
	}
	if err := s.samples.Insert(ctx, sample); err != nil {
		return fmt.Errorf("cost_service: record sample: %w", err)
	}
	return nil
}

// TrainingData returns up to limit recorded samples, most recent first.
func (s *CostService) TrainingData(ctx context.Context, limit int) ([]domain.SlippageSample, error) {
	if s.samples == nil {
		return nil, nil
	}
	samples, err := s.samples.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("cost_service: training data: %w", err)
	}
	return samples, nil
}

// Symbols returns the tracked symbols in sorted order.
func (s *CostService) Symbols() []string {
	return s.registry.Symbols()
}

// Snapshot returns the current state of one symbol's book.
func (s *CostService) Snapshot(symbol string) (domain.BookSnapshot, error) {
	b, err := s.registry.Get(symbol)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("cost_service: snapshot: %w", err)
	}
	return b.Snapshot(), nil
}
