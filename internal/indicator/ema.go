package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// EMAConfig configures an Exponential Moving Average over Field.
type EMAConfig struct {
	Period int    `mapstructure:"period"`
	Field  string `mapstructure:"field"`
	Source string `mapstructure:"source"`
}

func (c EMAConfig) Type() string { return TypeEMA }

func (c EMAConfig) UniqueName() string {
	return "ema_" + fieldKey(c.Source, c.Field) + "_" + itoa(c.Period)
}

func (c EMAConfig) Validate() error {
	if c.Period < 1 {
		return invalid("EMA period=%d: must be >= 1", c.Period)
	}
	if c.Field == "" {
		return invalid("EMA field is empty")
	}
	return nil
}

func (c EMAConfig) newAlgorithm(deps Factory) algorithm { return &ema{cfg: c, deps: deps} }

// ema is seeded with the first defined SMA(Period) value and then follows
// EMA[t] = c*x[t] + (1-c)*EMA[t-1] with c = 2/(Period+1).
type ema struct {
	cfg  EMAConfig
	deps Factory
}

func (a *ema) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	x, err := column(in, a.cfg.Field)
	if err != nil {
		return nil, err
	}
	seed, err := runColumn(ctx, a.deps, SMAConfig(a.cfg), symbol, in, "SMA")
	if err != nil {
		return nil, err
	}

	multiplier := 2.0 / float64(a.cfg.Period+1)
	out := model.NaNs(len(x))
	if start := firstDefined(seed); start >= 0 {
		out[start] = seed[start]
		for i := start + 1; i < len(x); i++ {
			out[i] = multiplier*x[i] + (1-multiplier)*out[i-1]
		}
	}

	res := model.NewResult(in.Index)
	res.Set("EMA", out)
	directions(res,
		func(i int) bool { return x[i] > out[i] },
		func(i int) bool { return x[i] < out[i] },
	)
	return roundAll(res), nil
}
