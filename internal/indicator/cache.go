package indicator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"screening-systemv1/internal/model"
)

// CachingFactory creates runners whose results are persisted in a
// ResultStore per (unique name, symbol). Each runner's algorithm is given a
// new CachingFactory over the same store, so every dependency it requests is
// cached and shared as well.
type CachingFactory struct {
	store  model.ResultStore
	flight *singleflight.Group
	opts   options
}

// NewCachingFactory returns a caching factory persisting into store.
func NewCachingFactory(store model.ResultStore, opts ...Option) *CachingFactory {
	return &CachingFactory{
		store:  store,
		flight: &singleflight.Group{},
		opts:   buildOptions(opts),
	}
}

// child returns a fresh factory bound to the same store. The in-flight
// group is shared so one writer per entry holds across the whole graph.
func (f *CachingFactory) child() *CachingFactory {
	return &CachingFactory{store: f.store, flight: f.flight, opts: f.opts}
}

// Create validates cfg and returns a cache-wrapped runner for it.
func (f *CachingFactory) Create(cfg Config) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cachedRunner{
		inner:  newRunner(cfg, f.child(), f.opts),
		store:  f.store,
		flight: f.flight,
		opts:   f.opts,
	}, nil
}

type cachedRunner struct {
	inner  *runner
	store  model.ResultStore
	flight *singleflight.Group
	opts   options
}

func (r *cachedRunner) Type() string       { return r.inner.Type() }
func (r *cachedRunner) UniqueName() string { return r.inner.UniqueName() }

// Run loads the stored entry, reuses it when fresh and otherwise recomputes
// and persists. Concurrent calls for the same entry share one resolution.
func (r *cachedRunner) Run(ctx context.Context, symbol string, input *model.Frame, cached *model.Result) (*model.Result, error) {
	key := r.UniqueName() + "/" + symbol
	v, err, _ := r.flight.Do(key, func() (any, error) {
		return r.resolve(ctx, symbol, input, cached)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*model.Result)
	if IsFresh(input, res) {
		return res, nil
	}
	// joined a flight started for a different quote index
	return r.resolve(ctx, symbol, input, cached)
}

func (r *cachedRunner) resolve(ctx context.Context, symbol string, input *model.Frame, cached *model.Result) (*model.Result, error) {
	name, typ := r.UniqueName(), r.Type()
	log := r.opts.logger.With(zap.String("indicator", name), zap.String("symbol", symbol))

	stored, err := r.store.Load(ctx, name, symbol)
	if err != nil {
		r.countStoreError("load")
		return nil, fmt.Errorf("load %s/%s: %w", name, symbol, err)
	}
	if stored == nil {
		stored = cached
	}
	if IsFresh(input, stored) {
		if m := r.opts.metrics; m != nil {
			m.CacheHits.WithLabelValues(typ).Inc()
		}
		log.Debug("cache hit")
		return stored, nil
	}

	if m := r.opts.metrics; m != nil {
		m.CacheMisses.WithLabelValues(typ).Inc()
	}
	log.Debug("cache miss", zap.Bool("present", stored != nil))

	res, err := r.inner.Run(ctx, symbol, input, nil)
	if err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, name, symbol, res); err != nil {
		r.countStoreError("save")
		return nil, fmt.Errorf("save %s/%s: %w", name, symbol, err)
	}
	return res, nil
}

func (r *cachedRunner) countStoreError(op string) {
	if m := r.opts.metrics; m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}
