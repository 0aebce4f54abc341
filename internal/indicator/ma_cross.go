package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// MACrossConfig configures a fast/slow SMA crossover on Close.
type MACrossConfig struct {
	Fast int `mapstructure:"fast"`
	Slow int `mapstructure:"slow"`
}

func (c MACrossConfig) Type() string       { return TypeMACross }
func (c MACrossConfig) UniqueName() string { return "ma_cross_" + itoa(c.Fast) + "_" + itoa(c.Slow) }

func (c MACrossConfig) Validate() error {
	if c.Fast < 1 || c.Slow < 1 {
		return invalid("MACross fast=%d slow=%d: periods must be >= 1", c.Fast, c.Slow)
	}
	if c.Fast >= c.Slow {
		return invalid("MACross fast=%d must be < slow=%d", c.Fast, c.Slow)
	}
	return nil
}

func (c MACrossConfig) newAlgorithm(deps Factory) algorithm { return &maCross{cfg: c, deps: deps} }

type maCross struct {
	cfg  MACrossConfig
	deps Factory
}

func (a *maCross) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	fast, err := runColumn(ctx, a.deps, SMAConfig{Period: a.cfg.Fast, Field: model.ColClose}, symbol, in, "SMA")
	if err != nil {
		return nil, err
	}
	slow, err := runColumn(ctx, a.deps, SMAConfig{Period: a.cfg.Slow, Field: model.ColClose}, symbol, in, "SMA")
	if err != nil {
		return nil, err
	}

	n := in.Len()
	slowOver := make([]float64, n)
	fastOver := make([]float64, n)
	for i := 0; i < n; i++ {
		ok := defined(fast[i], slow[i])
		slowOver[i] = flag(ok, fast[i] <= slow[i] && at(fast, i-1) > at(slow, i-1))
		fastOver[i] = flag(ok, fast[i] >= slow[i] && at(slow, i-1) > at(fast, i-1))
	}

	res := model.NewResult(in.Index)
	res.Set("FastSMA", append([]float64(nil), fast...))
	res.Set("SlowSMA", append([]float64(nil), slow...))
	res.Set("SlowCrossoverFast", slowOver)
	res.Set("FastCrossoverSlow", fastOver)
	directions(res,
		func(i int) bool { return fast[i] > slow[i] },
		func(i int) bool { return slow[i] > fast[i] },
	)
	return roundAll(res), nil
}
