package indicator

import (
	"context"
	"math"

	"screening-systemv1/internal/model"
)

// ATRConfig configures Wilder's Average True Range.
type ATRConfig struct {
	Period int `mapstructure:"period"`
}

func (c ATRConfig) Type() string       { return TypeATR }
func (c ATRConfig) UniqueName() string { return "atr_" + itoa(c.Period) }

func (c ATRConfig) Validate() error {
	if c.Period < 1 {
		return invalid("ATR period=%d: must be >= 1", c.Period)
	}
	return nil
}

func (c ATRConfig) newAlgorithm(Factory) algorithm { return &atr{cfg: c} }

// atr seeds with the mean of the first full window of true ranges and then
// applies Wilder smoothing: ATR = (prev*(period-1) + TR) / period.
type atr struct {
	cfg ATRConfig
}

func (a *atr) compute(_ context.Context, _ string, in *model.Frame) (*model.Result, error) {
	tr, err := trueRange(in)
	if err != nil {
		return nil, err
	}

	p := a.cfg.Period
	out := model.NaNs(len(tr))
	for i := p; i < len(tr); i++ {
		prev := out[i-1]
		if math.IsNaN(prev) {
			// (re)seed; stays NaN while the window holds an undefined range
			w := tr[i-p+1 : i+1]
			if !hasNaN(w) {
				out[i] = mean(w)
			}
			continue
		}
		out[i] = (prev*float64(p-1) + tr[i]) / float64(p)
	}

	res := model.NewResult(in.Index)
	res.Set("ATR", out)
	directions(res, never, never)
	return roundAll(res), nil
}

// trueRange is max(|H-L|, |H-prevC|, |L-prevC|) with each leg rounded.
// The first row has no previous close and is NaN.
func trueRange(in *model.Frame) ([]float64, error) {
	high, err := column(in, model.ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(in, model.ColLow)
	if err != nil {
		return nil, err
	}
	cls, err := column(in, model.ColClose)
	if err != nil {
		return nil, err
	}

	tr := model.NaNs(len(cls))
	for i := 1; i < len(cls); i++ {
		hl := round(math.Abs(high[i] - low[i]))
		hc := round(math.Abs(high[i] - cls[i-1]))
		lc := round(math.Abs(low[i] - cls[i-1]))
		if !defined(hl, hc, lc) {
			continue
		}
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr, nil
}
