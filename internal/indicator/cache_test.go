package indicator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-systemv1/internal/metrics"
	"screening-systemv1/internal/model"
	"screening-systemv1/internal/store"
	"screening-systemv1/internal/store/file"
)

// memStore is an in-memory ResultStore that can be told to fail.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*model.Result
	loadErr error
	saveErr error
}

func newMemStore() *memStore { return &memStore{entries: map[string]*model.Result{}} }

func (s *memStore) Load(_ context.Context, name, symbol string) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.entries[name+"/"+symbol], nil
}

func (s *memStore) Save(_ context.Context, name, symbol string, res *model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries[name+"/"+symbol] = res
	return nil
}

func (s *memStore) has(name, symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name+"/"+symbol]
	return ok
}

func computedCount(m *metrics.Metrics, typ string) float64 {
	return testutil.ToFloat64(m.Computations.WithLabelValues(typ))
}

func runCached(t *testing.T, f Factory, cfg Config, in *model.Frame) *model.Result {
	t.Helper()
	r, err := f.Create(cfg)
	require.NoError(t, err)
	res, err := r.Run(ctxb, "TEST", in, nil)
	require.NoError(t, err)
	return res
}

func TestCachingFactory_PersistsDependencies(t *testing.T) {
	root := t.TempDir()
	fs, err := file.New(root)
	require.NoError(t, err)

	runCached(t, NewCachingFactory(fs), EMAConfig{Period: 3, Field: model.ColClose}, frame(randomWalk(20, 1)...))

	assert.FileExists(t, filepath.Join(root, "ema_Close_3", "TEST.msgpack"))
	assert.FileExists(t, filepath.Join(root, "sma_Close_3", "TEST.msgpack"), "the EMA seed is cached too")
}

func TestCachingFactory_FreshEntryIsNotRecomputed(t *testing.T) {
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	in := frame(randomWalk(50, 2)...)
	cfg := EMAConfig{Period: 5, Field: model.ColClose}

	first := runCached(t, NewCachingFactory(fs), cfg, in)

	m := newMetrics()
	second := runCached(t, NewCachingFactory(fs, WithMetrics(m)), cfg, in)

	assert.Zero(t, computedCount(m, TypeEMA))
	assert.Zero(t, computedCount(m, TypeSMA))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues(TypeEMA)))
	assertSeries(t, "EMA", col(t, second, "EMA"), col(t, first, "EMA"), 0)
	assert.Equal(t, first.Direction, second.Direction)
}

func TestCachingFactory_ChangedIndexRecomputes(t *testing.T) {
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	closes := randomWalk(40, 3)
	cfg := SMAConfig{Period: 4, Field: model.ColClose}
	runCached(t, NewCachingFactory(fs), cfg, frame(closes[:39]...))

	t.Run("appended row", func(t *testing.T) {
		m := newMetrics()
		res := runCached(t, NewCachingFactory(fs, WithMetrics(m)), cfg, frame(closes...))
		assert.Equal(t, 1.0, computedCount(m, TypeSMA))
		assert.Equal(t, 40, res.Len())

		stored, err := fs.Load(ctxb, cfg.UniqueName(), "TEST")
		require.NoError(t, err)
		assert.Equal(t, 40, stored.Len(), "the recomputed result replaces the entry")
	})

	t.Run("dropped leading row", func(t *testing.T) {
		s := series("TEST", closes)
		s.Quotes = s.Quotes[1:]
		m := newMetrics()
		res := runCached(t, NewCachingFactory(fs, WithMetrics(m)), cfg, s.Frame())
		assert.Equal(t, 1.0, computedCount(m, TypeSMA))
		assert.True(t, res.IndexEqual(s.Frame().Index))
	})

	t.Run("shifted dates", func(t *testing.T) {
		// the stored entry covers day0+1..day0+39; this covers day0+2..day0+40
		s := series("TEST", closes[1:])
		for i := range s.Quotes {
			s.Quotes[i].Date = s.Quotes[i].Date.AddDate(0, 0, 2)
		}
		m := newMetrics()
		runCached(t, NewCachingFactory(fs, WithMetrics(m)), cfg, s.Frame())
		assert.Equal(t, 1.0, computedCount(m, TypeSMA))
	})
}

func TestCachingFactory_SharesEntriesAcrossIndicators(t *testing.T) {
	st := newMemStore()
	m := newMetrics()
	f := NewCachingFactory(st, WithMetrics(m))
	in := frame(randomWalk(80, 4)...)

	runCached(t, f, MACDConfig{Fast: 12, Slow: 26, Signal: 9}, in)
	assert.Equal(t, 3.0, computedCount(m, TypeEMA), "fast, slow and signal")
	assert.True(t, st.has("ema_Close_12", "TEST"))
	assert.True(t, st.has("ema_macd_12_26_9.MACD_9", "TEST"))

	runCached(t, f, EMAConfig{Period: 12, Field: model.ColClose}, in)
	assert.Equal(t, 3.0, computedCount(m, TypeEMA), "EMA(12) reused from MACD")

	runCached(t, f, VolumeConfig{Period: 12}, in)
	assert.Equal(t, 4.0, computedCount(m, TypeEMA), "EMA of Volume is a distinct entry")
	assert.True(t, st.has("ema_Volume_12", "TEST"))
}

func TestCachingFactory_SignalEntryPath(t *testing.T) {
	root := t.TempDir()
	fs, err := file.New(root)
	require.NoError(t, err)
	runCached(t, NewCachingFactory(fs), MACDConfig{Fast: 3, Slow: 6, Signal: 3}, frame(randomWalk(30, 5)...))

	assert.FileExists(t, filepath.Join(root, "ema_macd_3_6_3.MACD_3", "TEST.msgpack"))
	assert.NoFileExists(t, filepath.Join(root, "ema_MACD_3", "TEST.msgpack"))
}

func TestCachingFactory_LoadErrorPropagates(t *testing.T) {
	st := newMemStore()
	st.loadErr = errors.New("disk on fire")
	m := newMetrics()

	r, err := NewCachingFactory(st, WithMetrics(m)).Create(SMAConfig{Period: 2, Field: model.ColClose})
	require.NoError(t, err)
	_, err = r.Run(ctxb, "TEST", frame(1, 2, 3), nil)

	assert.ErrorIs(t, err, st.loadErr)
	assert.Zero(t, computedCount(m, TypeSMA), "nothing is computed when the store cannot be read")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("load")))
}

func TestCachingFactory_SaveErrorPropagates(t *testing.T) {
	st := newMemStore()
	st.saveErr = errors.New("read-only")
	m := newMetrics()

	r, err := NewCachingFactory(st, WithMetrics(m)).Create(SMAConfig{Period: 2, Field: model.ColClose})
	require.NoError(t, err)
	_, err = r.Run(ctxb, "TEST", frame(1, 2, 3), nil)

	assert.ErrorIs(t, err, st.saveErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("save")))
}

func TestCachingFactory_CorruptEntry(t *testing.T) {
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	cfg := ATRConfig{Period: 3}
	path := fs.Path(cfg.UniqueName(), "TEST")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not msgpack"), 0o644))

	r, err := NewCachingFactory(fs).Create(cfg)
	require.NoError(t, err)
	_, err = r.Run(ctxb, "TEST", frame(1, 2, 3, 4, 5), nil)
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestCachingFactory_ConcurrentRunsComputeOnce(t *testing.T) {
	st := newMemStore()
	m := newMetrics()
	f := NewCachingFactory(st, WithMetrics(m))
	in := frame(randomWalk(200, 6)...)

	r, err := f.Create(TrendStrengthConfig{Start: 5, End: 30, Step: 5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*model.Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Run(context.Background(), "TEST", in, nil)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.True(t, results[i].IndexEqual(in.Index))
	}
	assert.Equal(t, 1.0, computedCount(m, TypeTrendStrength))
	assert.Equal(t, 6.0, computedCount(m, TypeSMA), "one computation per fan member")
}

func TestCachingFactory_UsesPassedCachedWhenStoreIsEmpty(t *testing.T) {
	in := frame(1, 2, 3, 4)
	prior := runPlain(t, SMAConfig{Period: 2, Field: model.ColClose}, in)

	st := newMemStore()
	m := newMetrics()
	r, err := NewCachingFactory(st, WithMetrics(m)).Create(SMAConfig{Period: 2, Field: model.ColClose})
	require.NoError(t, err)
	res, err := r.Run(ctxb, "TEST", in, prior)
	require.NoError(t, err)

	assert.Same(t, prior, res)
	assert.Zero(t, computedCount(m, TypeSMA))
}

func TestPlainFactory(t *testing.T) {
	m := newMetrics()
	r, err := NewFactory(WithMetrics(m)).Create(EMAConfig{Period: 3, Field: model.ColClose})
	require.NoError(t, err)
	in := frame(1, 2, 3, 4, 5)

	first, err := r.Run(ctxb, "TEST", in, nil)
	require.NoError(t, err)
	_, err = r.Run(ctxb, "TEST", in, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, computedCount(m, TypeEMA), "no cache: every call computes")

	again, err := r.Run(ctxb, "TEST", in, first)
	require.NoError(t, err)
	assert.Same(t, first, again, "a fresh cached result is returned as is")
	assert.Equal(t, 2.0, computedCount(m, TypeEMA))

	stale, err := r.Run(ctxb, "TEST", frame(1, 2, 3, 4, 5, 6), first)
	require.NoError(t, err)
	assert.Equal(t, 6, stale.Len())
}

func TestIsFresh(t *testing.T) {
	in := frame(1, 2, 3)
	res := runPlain(t, SMAConfig{Period: 1, Field: model.ColClose}, in)

	assert.True(t, IsFresh(in, res))
	assert.False(t, IsFresh(in, nil))
	assert.False(t, IsFresh(frame(1, 2), res))
	assert.False(t, IsFresh(frame(1, 2, 3, 4), res))

	swapped := frame(1, 2, 3)
	swapped.Index[0], swapped.Index[1] = swapped.Index[1], swapped.Index[0]
	assert.False(t, IsFresh(swapped, res), "reordered dates")

	gap := frame(1, 2, 3)
	gap.Index[2] = gap.Index[2].AddDate(0, 0, 1)
	assert.False(t, IsFresh(gap, res), "same length, different last date")

	dropped := model.NewFrame([]time.Time{day0, day0.AddDate(0, 0, 2)})
	assert.False(t, IsFresh(dropped, res), "middle row removed")
}

func TestCachingFactory_ConfigChangedAfterCreate(t *testing.T) {
	st := newMemStore()
	cfg := &SMAConfig{Period: 3, Field: model.ColClose}
	r, err := NewCachingFactory(st).Create(cfg)
	require.NoError(t, err)

	cfg.Period = 5
	res, err := r.Run(ctxb, "TEST", frame(10, 11, 12, 11, 10), nil)
	require.NoError(t, err)

	assert.Equal(t, "sma_Close_3", r.UniqueName())
	assert.True(t, st.has("sma_Close_3", "TEST"))
	assert.False(t, st.has("sma_Close_5", "TEST"))
	assert.Equal(t, 11.0, col(t, res, "SMA")[2])
}

func TestDecode_ReturnsValue(t *testing.T) {
	cfg, err := Decode(TypeSMA, map[string]any{"period": 3})
	require.NoError(t, err)
	_, isValue := cfg.(SMAConfig)
	assert.True(t, isValue)
}

func TestFactories_RejectInvalidConfig(t *testing.T) {
	invalidCfgs := []Config{
		SMAConfig{Period: 0, Field: model.ColClose},
		EMAConfig{Period: 3},
		STDEVConfig{Period: 1, Field: model.ColClose},
		MACDConfig{Fast: 26, Slow: 12, Signal: 9},
		MACrossConfig{Fast: 60, Slow: 40},
		TrendStrengthConfig{Start: 50, End: 40, Step: 5},
		TrendStrengthConfig{Start: 10, End: 40, Step: 0},
		BollingerBandConfig{Period: 20, StDev: 0},
		TrailingStopsConfig{Multiplier: -1, Period: 10},
		DonchianChannelConfig{High: 0, Low: 5},
		ATRChannelConfig{Top: 7, Bottom: 3, SMA: 0},
		VolumeConfig{},
		RSIConfig{Period: 0, Field: model.ColClose},
		ATRConfig{},
	}
	for _, f := range []Factory{NewFactory(), NewCachingFactory(newMemStore())} {
		for _, cfg := range invalidCfgs {
			_, err := f.Create(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig, "%#v", cfg)
		}
	}
}

func TestUniqueName(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{SMAConfig{Period: 10, Field: model.ColClose}, "sma_Close_10"},
		{EMAConfig{Period: 20, Field: model.ColVolume}, "ema_Volume_20"},
		{EMAConfig{Period: 9, Field: "MACD", Source: "macd_12_26_9"}, "ema_macd_12_26_9.MACD_9"},
		{STDEVConfig{Period: 50, Field: model.ColClose}, "stdev_Close_50"},
		{ATRConfig{Period: 14}, "atr_14"},
		{ATRChannelConfig{Top: 7, Bottom: 3, SMA: 150}, "atr_channel_7_3_150"},
		{DonchianChannelConfig{High: 50, Low: 20}, "donchian_channel_50_20"},
		{TrailingStopsConfig{Multiplier: 4, Period: 10}, "trailing_stops_4_10"},
		{TrailingStopsConfig{Multiplier: 2.5, Period: 10}, "trailing_stops_2.5_10"},
		{MACDConfig{Fast: 12, Slow: 26, Signal: 9}, "macd_12_26_9"},
		{MACrossConfig{Fast: 40, Slow: 60}, "ma_cross_40_60"},
		{VolumeConfig{Period: 20}, "volume_20"},
		{TrendStrengthConfig{Start: 40, End: 150, Step: 5}, "trend_strength_40_150_5"},
		{BollingerBandConfig{Period: 50, StDev: 2}, "bollinger_band_50_2"},
		{RSIConfig{Period: 20, Field: model.ColClose}, "rsi_Close_20"},
	}
	seen := map[string]bool{}
	for _, c := range cases {
		assert.Equal(t, c.want, c.cfg.UniqueName())
		assert.Equal(t, c.cfg.UniqueName(), c.cfg.UniqueName(), "deterministic")
		assert.False(t, seen[c.want], "duplicate name %s", c.want)
		seen[c.want] = true
	}
	assert.NotEqual(t,
		SMAConfig{Period: 10, Field: model.ColClose}.UniqueName(),
		SMAConfig{Period: 10, Field: model.ColOpen}.UniqueName())
}
