package screening

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"screening-systemv1/internal/indicator"
	"screening-systemv1/internal/logger"
	"screening-systemv1/internal/metrics"
	"screening-systemv1/internal/model"
)

// Builder runs indicators over every symbol of a quote source.
type Builder struct {
	factory indicator.Factory
	source  model.QuoteSource
	workers int
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers fans symbols out over n goroutines. n <= 1 runs sequentially.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// WithLogger sets the build logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics records per-build counters and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder returns a builder creating runners through factory.
func NewBuilder(factory indicator.Factory, source model.QuoteSource, opts ...Option) *Builder {
	b := &Builder{factory: factory, source: source, workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildType decodes params over the defaults of typ and builds it.
func (b *Builder) BuildType(ctx context.Context, typ string, params map[string]any) (*Indicator, error) {
	cfg, err := indicator.Decode(typ, params)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, cfg)
}

// Build runs cfg for every symbol and assembles one attribute per output
// column. ctx is checked between symbols; entries already persisted stay
// valid when the build is cancelled.
func (b *Builder) Build(ctx context.Context, cfg indicator.Config) (*Indicator, error) {
	runner, err := b.factory.Create(cfg)
	if err != nil {
		return nil, err
	}
	symbols, err := b.source.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	name := runner.UniqueName()
	log := b.logger.With(append(logger.Fields(ctx), zap.String("indicator", name))...)
	start := time.Now()

	results := make([]*model.Result, len(symbols))
	if b.workers <= 1 {
		for i, sym := range symbols {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if results[i], err = b.runSymbol(ctx, runner, sym); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for i, sym := range symbols {
			if gctx.Err() != nil {
				break
			}
			i, sym := i, sym
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := b.runSymbol(gctx, runner, sym)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	ind := newIndicator(name)
	for i, sym := range symbols {
		ind.add(sym, results[i])
	}

	took := time.Since(start)
	if b.metrics != nil {
		b.metrics.BuildDur.WithLabelValues(runner.Type()).Observe(took.Seconds())
	}
	log.Info("indicator built",
		zap.Int("symbols", len(symbols)),
		zap.Int("attributes", len(ind.keys)),
		zap.Duration("took", took),
	)
	return ind, nil
}

func (b *Builder) runSymbol(ctx context.Context, runner indicator.Runner, symbol string) (*model.Result, error) {
	series, err := b.source.Quotes(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quotes %s: %w", symbol, err)
	}
	res, err := runner.Run(ctx, symbol, series.Frame(), nil)
	if err != nil {
		return nil, fmt.Errorf("symbol %s: %w", symbol, err)
	}
	if b.metrics != nil {
		b.metrics.BuildSymbols.Inc()
	}
	return res, nil
}
