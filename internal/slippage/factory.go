package slippage

import (
	"fmt"
	"log/slog"

	"github.com/execlab/tradecost/internal/domain"
)

// Estimator modes accepted by New.
const (
	ModeSimple     = "simple"
	ModeDepth      = "depth"
	ModeRegression = "regression"
	ModeAuto       = "auto"
)

// minTrainingSamples is the history size above which auto mode prefers the
// regression estimator.
const minTrainingSamples = 100

// Options configures the factory.
type Options struct {
	// ImpactFactor tunes the Simple estimator; <= 0 uses the default.
	ImpactFactor float64
	// MarketVolume is the baseline volume for the Simple estimator.
	MarketVolume float64
	// AdditionalFactor tunes the Depth estimator; <= 0 uses the default.
	AdditionalFactor float64
	// Samples is the recorded fill history used to train the regression
	// estimator.
	Samples []domain.SlippageSample
	// HasBook reports whether live depth will be available at estimate
	// time; auto mode uses it to choose the Depth estimator.
	HasBook bool
}

// New builds the estimator for the given mode. Auto picks regression when
// the sample history is deep enough and training succeeds, depth when live
// book data is available, and simple otherwise.
func New(mode string, opts Options, logger *slog.Logger) (Estimator, error) {
	log := logger.With(slog.String("component", "slippage_factory"))

	switch mode {
	case ModeSimple, "":
		return NewSimple(opts.ImpactFactor, opts.MarketVolume), nil

	case ModeDepth:
		return NewDepth(opts.AdditionalFactor, logger), nil

	case ModeRegression:
		r := NewRegression(logger)
		if len(opts.Samples) > 0 {
			if _, err := r.Train(opts.Samples); err != nil {
				return nil, fmt.Errorf("slippage: train regression: %w", err)
			}
		}
		return r, nil

	case ModeAuto:
		if len(opts.Samples) > minTrainingSamples {
			r := NewRegression(logger)
			score, err := r.Train(opts.Samples)
			if err == nil {
				log.Info("auto mode selected regression estimator",
					slog.Int("samples", len(opts.Samples)),
					slog.Float64("r2_score", score),
				)
				return r, nil
			}
			log.Warn("regression training failed, trying next estimator",
				slog.String("error", err.Error()),
			)
		}
		if opts.HasBook {
			log.Info("auto mode selected depth estimator")
			return NewDepth(opts.AdditionalFactor, logger), nil
		}
		log.Info("auto mode selected simple estimator")
		return NewSimple(opts.ImpactFactor, opts.MarketVolume), nil

	default:
		return nil, fmt.Errorf("slippage: mode %q: %w", mode, domain.ErrInvalidParameter)
	}
}
