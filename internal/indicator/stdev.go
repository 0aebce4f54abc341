package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// STDEVConfig configures a rolling sample standard deviation over Field.
type STDEVConfig struct {
	Period int    `mapstructure:"period"`
	Field  string `mapstructure:"field"`
	Source string `mapstructure:"source"`
}

func (c STDEVConfig) Type() string { return TypeSTDEV }

func (c STDEVConfig) UniqueName() string {
	return "stdev_" + fieldKey(c.Source, c.Field) + "_" + itoa(c.Period)
}

func (c STDEVConfig) Validate() error {
	if c.Period < 2 {
		return invalid("STDEV period=%d: sample deviation needs >= 2", c.Period)
	}
	if c.Field == "" {
		return invalid("STDEV field is empty")
	}
	return nil
}

func (c STDEVConfig) newAlgorithm(Factory) algorithm { return &stdev{cfg: c} }

type stdev struct {
	cfg STDEVConfig
}

func (a *stdev) compute(_ context.Context, _ string, in *model.Frame) (*model.Result, error) {
	x, err := column(in, a.cfg.Field)
	if err != nil {
		return nil, err
	}
	sd := rollingStd(x, a.cfg.Period)

	res := model.NewResult(in.Index)
	res.Set("STDEV", sd)
	directions(res,
		func(i int) bool { return x[i] > sd[i] },
		func(i int) bool { return x[i] < sd[i] },
	)
	return roundAll(res), nil
}
