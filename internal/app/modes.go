package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/execlab/tradecost/internal/book"
	"github.com/execlab/tradecost/internal/fees"
	"github.com/execlab/tradecost/internal/feed"
	"github.com/execlab/tradecost/internal/impact"
	"github.com/execlab/tradecost/internal/pipeline"
	"github.com/execlab/tradecost/internal/server"
	"github.com/execlab/tradecost/internal/server/handler"
	"github.com/execlab/tradecost/internal/service"
	"github.com/execlab/tradecost/internal/slippage"
)

// FeedMode consumes live depth streams, maintains the books, and serves the
// API when enabled.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode",
		slog.Int("symbols", len(a.cfg.Feed.Symbols)),
	)

	g, ctx := errgroup.WithContext(ctx)

	registry := book.NewRegistry(a.logger)
	svc, err := a.buildService(ctx, registry, deps, true)
	if err != nil {
		return fmt.Errorf("feed mode: %w", err)
	}

	feeder := feed.NewFeeder(a.cfg.Feed.URL, a.cfg.Feed.Symbols, registry, svc.HandleDelta, a.logger)
	g.Go(func() error {
		defer feeder.Close()
		return feeder.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}
	a.startRetention(ctx, g, deps)

	return g.Wait()
}

// SimulateMode drives the books from a synthetic depth generator instead of a
// live stream. Useful for demos and load testing the estimation path.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode",
		slog.Duration("interval", a.cfg.Simulate.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	registry := book.NewRegistry(a.logger)
	svc, err := a.buildService(ctx, registry, deps, true)
	if err != nil {
		return fmt.Errorf("simulate mode: %w", err)
	}

	for _, symbol := range a.cfg.Feed.Symbols {
		registry.Connect(symbol, nil)
	}
	sim := feed.NewSimulator(feed.SimulatorConfig{
		Symbols:  a.cfg.Feed.Symbols,
		Interval: a.cfg.Simulate.Interval.Duration,
		MidPrice: a.cfg.Simulate.MidPrice,
		Levels:   a.cfg.Simulate.Levels,
		Seed:     a.cfg.Simulate.Seed,
	}, svc.HandleDelta, a.logger)
	g.Go(func() error {
		return sim.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}

	return g.Wait()
}

// ServeMode runs the HTTP API alone. Estimates work against stored samples and
// explicit reference prices; no books are populated.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	registry := book.NewRegistry(a.logger)
	svc, err := a.buildService(ctx, registry, deps, false)
	if err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	a.startHTTPServer(ctx, g, deps, svc)
	a.startRetention(ctx, g, deps)

	return g.Wait()
}

// FullMode runs the live feed and the HTTP API together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	registry := book.NewRegistry(a.logger)
	svc, err := a.buildService(ctx, registry, deps, true)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	feeder := feed.NewFeeder(a.cfg.Feed.URL, a.cfg.Feed.Symbols, registry, svc.HandleDelta, a.logger)
	g.Go(func() error {
		defer feeder.Close()
		return feeder.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, svc)
	a.startRetention(ctx, g, deps)

	return g.Wait()
}

// buildService assembles the cost service: impact model from the configured
// parameters, the slippage estimator from the factory, and the default fee
// schedule. hasBook tells the estimator factory whether live depth will be
// available at estimate time.
func (a *App) buildService(ctx context.Context, registry *book.Registry, deps *Dependencies, hasBook bool) (*service.CostService, error) {
	model, err := impact.NewModel(a.impactParams(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("impact model: %w", err)
	}

	opts := slippage.Options{
		ImpactFactor:     a.cfg.Slippage.ImpactFactor,
		MarketVolume:     a.cfg.Slippage.MarketVolume,
		AdditionalFactor: a.cfg.Slippage.AdditionalFactor,
		HasBook:          hasBook,
	}

	// Regression and auto modes want the recorded fill history.
	mode := strings.ToLower(a.cfg.Slippage.Mode)
	if deps.SampleStore != nil && (mode == slippage.ModeRegression || mode == slippage.ModeAuto) {
		samples, err := deps.SampleStore.ListRecent(ctx, a.cfg.Slippage.TrainingLimit)
		if err != nil {
			a.logger.WarnContext(ctx, "loading training samples failed, estimator falls back",
				slog.String("error", err.Error()),
			)
		} else {
			opts.Samples = samples
			a.logger.InfoContext(ctx, "loaded training samples",
				slog.Int("count", len(samples)),
			)
		}
	}

	estimator, err := slippage.New(mode, opts, a.logger)
	if err != nil {
		return nil, fmt.Errorf("slippage estimator: %w", err)
	}

	schedule := fees.DefaultSchedule(a.logger)

	return service.NewCostService(
		registry, model, estimator, schedule,
		deps.SampleStore, deps.QuoteCache, deps.Archiver,
		a.logger,
	), nil
}

// impactParams merges the configured impact parameters over the defaults.
// Zero-valued fields keep their default.
func (a *App) impactParams() impact.Params {
	p := impact.DefaultParams()
	if v := a.cfg.Impact.LambdaTemp; v > 0 {
		p.LambdaTemp = v
	}
	if v := a.cfg.Impact.Gamma; v > 0 {
		p.Gamma = v
	}
	if v := a.cfg.Impact.Sigma; v > 0 {
		p.Sigma = v
	}
	if v := a.cfg.Impact.Eta; v > 0 {
		p.Eta = v
	}
	if v := a.cfg.Impact.Epsilon; v > 0 {
		p.Epsilon = v
	}
	if v := a.cfg.Impact.Tau; v > 0 {
		p.Tau = v
	}
	if v := a.cfg.Impact.FallbackFactor; v > 0 {
		p.FallbackImpactFactor = v
	}
	return p
}

// startRetention runs the sample retention job when it is enabled and both
// backends are wired.
func (a *App) startRetention(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Retention.Enabled || deps.SampleSource == nil || deps.SampleArchiver == nil {
		return
	}
	job := pipeline.NewRetention(deps.SampleSource, deps.SampleArchiver, a.cfg.Retention.Days, a.logger)
	g.Go(func() error {
		return job.RunCron(ctx, a.cfg.Retention.Cron)
	})
}

// startHTTPServer registers the API routes and runs the server on the group,
// shutting it down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.CostService) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Books:    handler.NewBookHandler(svc, a.logger),
		Estimate: handler.NewEstimateHandler(svc, a.logger),
		Samples:  handler.NewSampleHandler(svc, a.logger),
	}, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
