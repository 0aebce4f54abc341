package indicator

import (
	"context"
	"math"

	"screening-systemv1/internal/model"
)

// BollingerBandConfig configures SMA(Period) ± StDev·STDEV(Period) bands on Close.
type BollingerBandConfig struct {
	Period int     `mapstructure:"period"`
	StDev  float64 `mapstructure:"stdev"`
}

func (c BollingerBandConfig) Type() string { return TypeBollingerBand }

func (c BollingerBandConfig) UniqueName() string {
	return "bollinger_band_" + itoa(c.Period) + "_" + ftoa(c.StDev)
}

func (c BollingerBandConfig) Validate() error {
	if c.Period < 2 {
		return invalid("BollingerBand period=%d: must be >= 2", c.Period)
	}
	if !(c.StDev > 0) || math.IsInf(c.StDev, 0) {
		return invalid("BollingerBand stdev=%v: must be a positive number", c.StDev)
	}
	return nil
}

func (c BollingerBandConfig) newAlgorithm(deps Factory) algorithm {
	return &bollinger{cfg: c, deps: deps}
}

type bollinger struct {
	cfg  BollingerBandConfig
	deps Factory
}

func (a *bollinger) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	cls, err := column(in, model.ColClose)
	if err != nil {
		return nil, err
	}
	high, err := column(in, model.ColHigh)
	if err != nil {
		return nil, err
	}
	mid, err := runColumn(ctx, a.deps, SMAConfig{Period: a.cfg.Period, Field: model.ColClose}, symbol, in, "SMA")
	if err != nil {
		return nil, err
	}
	sd, err := runColumn(ctx, a.deps, STDEVConfig{Period: a.cfg.Period, Field: model.ColClose}, symbol, in, "STDEV")
	if err != nil {
		return nil, err
	}

	n := in.Len()
	top := make([]float64, n)
	bottom := make([]float64, n)
	for i := 0; i < n; i++ {
		top[i] = mid[i] + sd[i]*a.cfg.StDev
		bottom[i] = mid[i] - sd[i]*a.cfg.StDev
	}

	res := model.NewResult(in.Index)
	res.Set("Top", top)
	res.Set("Mid", append([]float64(nil), mid...))
	res.Set("Bottom", bottom)
	directions(res,
		func(i int) bool { return cls[i] >= top[i] },
		func(i int) bool { return high[i] < bottom[i] },
	)
	return roundAll(res), nil
}
