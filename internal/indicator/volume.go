package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// VolumeConfig compares raw volume with its EMA.
type VolumeConfig struct {
	Period int `mapstructure:"period"`
}

func (c VolumeConfig) Type() string       { return TypeVolume }
func (c VolumeConfig) UniqueName() string { return "volume_" + itoa(c.Period) }

func (c VolumeConfig) Validate() error {
	if c.Period < 1 {
		return invalid("Volume period=%d: must be >= 1", c.Period)
	}
	return nil
}

func (c VolumeConfig) newAlgorithm(deps Factory) algorithm { return &volume{cfg: c, deps: deps} }

type volume struct {
	cfg  VolumeConfig
	deps Factory
}

func (a *volume) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	vol, err := column(in, model.ColVolume)
	if err != nil {
		return nil, err
	}
	avg, err := runColumn(ctx, a.deps, EMAConfig{Period: a.cfg.Period, Field: model.ColVolume}, symbol, in, "EMA")
	if err != nil {
		return nil, err
	}

	res := model.NewResult(in.Index)
	res.Set("Volume", append([]float64(nil), vol...))
	res.Set("EMA", append([]float64(nil), avg...))
	directions(res,
		func(i int) bool { return vol[i] > avg[i] && at(vol, i-1) < at(avg, i-1) },
		func(i int) bool { return vol[i] < avg[i] && at(vol, i-1) > at(avg, i-1) },
	)
	return roundAll(res), nil
}
