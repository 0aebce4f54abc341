package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// ATRChannelConfig configures a channel around SMA(SMA, Close): Top adds
// ATR(Top), Bottom subtracts ATR(Bottom).
type ATRChannelConfig struct {
	Top    int `mapstructure:"top"`
	Bottom int `mapstructure:"bottom"`
	SMA    int `mapstructure:"sma"`
}

func (c ATRChannelConfig) Type() string { return TypeATRChannel }

func (c ATRChannelConfig) UniqueName() string {
	return "atr_channel_" + itoa(c.Top) + "_" + itoa(c.Bottom) + "_" + itoa(c.SMA)
}

func (c ATRChannelConfig) Validate() error {
	if c.Top < 1 || c.Bottom < 1 || c.SMA < 1 {
		return invalid("ATRChannel top=%d bottom=%d sma=%d: periods must be >= 1", c.Top, c.Bottom, c.SMA)
	}
	return nil
}

func (c ATRChannelConfig) newAlgorithm(deps Factory) algorithm {
	return &atrChannel{cfg: c, deps: deps}
}

type atrChannel struct {
	cfg  ATRChannelConfig
	deps Factory
}

func (a *atrChannel) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	cls, err := column(in, model.ColClose)
	if err != nil {
		return nil, err
	}
	topATR, err := runColumn(ctx, a.deps, ATRConfig{Period: a.cfg.Top}, symbol, in, "ATR")
	if err != nil {
		return nil, err
	}
	bottomATR, err := runColumn(ctx, a.deps, ATRConfig{Period: a.cfg.Bottom}, symbol, in, "ATR")
	if err != nil {
		return nil, err
	}
	mid, err := runColumn(ctx, a.deps, SMAConfig{Period: a.cfg.SMA, Field: model.ColClose}, symbol, in, "SMA")
	if err != nil {
		return nil, err
	}

	n := in.Len()
	top := make([]float64, n)
	bottom := make([]float64, n)
	for i := 0; i < n; i++ {
		top[i] = mid[i] + topATR[i]
		bottom[i] = mid[i] - bottomATR[i]
	}

	res := model.NewResult(in.Index)
	res.Set("Top", top)
	res.Set("Mid", append([]float64(nil), mid...))
	res.Set("Bottom", bottom)
	directions(res,
		func(i int) bool { return cls[i] > top[i] },
		func(i int) bool { return cls[i] < bottom[i] },
	)
	return roundAll(res), nil
}
