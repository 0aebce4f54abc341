package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// DonchianChannelConfig configures the rolling High/Low breakout channel.
type DonchianChannelConfig struct {
	High int `mapstructure:"high"`
	Low  int `mapstructure:"low"`
}

func (c DonchianChannelConfig) Type() string { return TypeDonchianChannel }

func (c DonchianChannelConfig) UniqueName() string {
	return "donchian_channel_" + itoa(c.High) + "_" + itoa(c.Low)
}

func (c DonchianChannelConfig) Validate() error {
	if c.High < 1 || c.Low < 1 {
		return invalid("DonchianChannel high=%d low=%d: windows must be >= 1", c.High, c.Low)
	}
	return nil
}

func (c DonchianChannelConfig) newAlgorithm(Factory) algorithm { return &donchian{cfg: c} }

type donchian struct {
	cfg DonchianChannelConfig
}

func (a *donchian) compute(_ context.Context, _ string, in *model.Frame) (*model.Result, error) {
	high, err := column(in, model.ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(in, model.ColLow)
	if err != nil {
		return nil, err
	}

	upper := rollingMax(high, a.cfg.High)
	lower := rollingMin(low, a.cfg.Low)
	mid := make([]float64, len(upper))
	for i := range mid {
		mid[i] = (upper[i] + lower[i]) / 2
	}

	res := model.NewResult(in.Index)
	res.Set("High", upper)
	res.Set("Mid", mid)
	res.Set("Low", lower)
	// breakout: a new extreme on one side without giving ground on the other
	directions(res,
		func(i int) bool { return at(upper, i-1) < upper[i] && at(lower, i-1) <= lower[i] },
		func(i int) bool { return at(lower, i-1) > lower[i] && at(upper, i-1) >= upper[i] },
	)
	return roundAll(res), nil
}
