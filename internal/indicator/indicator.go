// Package indicator computes technical indicators over date-indexed frames.
//
// Every indicator is described by an immutable Config whose UniqueName keys
// both dependency sharing and the result cache. A Factory turns a Config
// into a Runner. Indicators that depend on other indicators request them from
// the Factory they were built with, so a caching Factory transparently caches
// the whole dependency graph.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"screening-systemv1/internal/metrics"
	"screening-systemv1/internal/model"
)

var (
	// ErrInvalidConfig is returned for parameter sets that fail validation.
	ErrInvalidConfig = errors.New("invalid indicator config")

	// ErrUnknownType is returned when a type is not registered.
	ErrUnknownType = errors.New("unknown indicator type")

	// ErrMissingColumn is returned when an input frame lacks a required column.
	ErrMissingColumn = errors.New("missing input column")
)

// Config is the parameter set of one indicator instance.
type Config interface {
	// Type returns the registered type name, e.g. "SMA".
	Type() string

	// UniqueName is deterministic in the type and every parameter value.
	UniqueName() string

	// Validate reports parameter errors wrapped in ErrInvalidConfig.
	Validate() error

	// newAlgorithm builds the computation, requesting dependencies from deps.
	newAlgorithm(deps Factory) algorithm
}

// Runner runs one configured indicator for a symbol.
type Runner interface {
	Type() string
	UniqueName() string

	// Run returns cached when it is fresh for input, otherwise a full
	// recomputation over input. cached may be nil.
	Run(ctx context.Context, symbol string, input *model.Frame, cached *model.Result) (*model.Result, error)
}

// Factory creates runners from configurations.
type Factory interface {
	Create(cfg Config) (Runner, error)
}

type algorithm interface {
	compute(ctx context.Context, symbol string, input *model.Frame) (*model.Result, error)
}

// IsFresh reports whether cached can be reused for input: it must exist and
// carry exactly the same date index, element by element.
func IsFresh(input *model.Frame, cached *model.Result) bool {
	if cached == nil || input == nil {
		return false
	}
	return cached.IndexEqual(input.Index)
}

// Option configures a factory.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger used for computation and cache events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics enables computation and cache instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// plainFactory builds algorithms with itself as the dependency factory.
type plainFactory struct {
	opts options
}

// NewFactory returns a factory whose runners compute on every call and
// request their dependencies, uncached, from the same factory.
func NewFactory(opts ...Option) Factory {
	return &plainFactory{opts: buildOptions(opts)}
}

func (f *plainFactory) Create(cfg Config) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newRunner(cfg, f, f.opts), nil
}

// runner adapts an algorithm to the Runner interface. The type and unique
// name are fixed at creation, together with the algorithm's parameters.
type runner struct {
	typ  string
	name string
	algo algorithm
	opts options
}

func newRunner(cfg Config, deps Factory, opts options) *runner {
	return &runner{typ: cfg.Type(), name: cfg.UniqueName(), algo: cfg.newAlgorithm(deps), opts: opts}
}

func (r *runner) Type() string       { return r.typ }
func (r *runner) UniqueName() string { return r.name }

func (r *runner) Run(ctx context.Context, symbol string, input *model.Frame, cached *model.Result) (*model.Result, error) {
	if IsFresh(input, cached) {
		return cached, nil
	}

	start := time.Now()
	res, err := r.algo.compute(ctx, symbol, input)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.name, symbol, err)
	}
	if m := r.opts.metrics; m != nil {
		m.Computations.WithLabelValues(r.typ).Inc()
		m.ComputeDur.WithLabelValues(r.typ).Observe(time.Since(start).Seconds())
	}
	r.opts.logger.Debug("indicator computed",
		zap.String("indicator", r.name),
		zap.String("symbol", symbol),
		zap.Int("rows", input.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// run creates cfg through deps and runs it over input.
func run(ctx context.Context, deps Factory, cfg Config, symbol string, input *model.Frame) (*model.Result, error) {
	r, err := deps.Create(cfg)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, symbol, input, nil)
}

// runColumn runs cfg and returns one of its output columns.
func runColumn(ctx context.Context, deps Factory, cfg Config, symbol string, input *model.Frame, col string) ([]float64, error) {
	res, err := run(ctx, deps, cfg, symbol, input)
	if err != nil {
		return nil, err
	}
	out, ok := res.Column(col)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", cfg.UniqueName(), ErrMissingColumn, col)
	}
	return out, nil
}

// column fetches a required input column.
func column(input *model.Frame, name string) ([]float64, error) {
	out, ok := input.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
