package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// SMAConfig configures a Simple Moving Average over Field.
//
// Source names the configuration that produced the input frame when the
// input is not a quote frame (for example the MACD line). It is part of the
// unique name so that series derived from different parents never share an
// entry.
type SMAConfig struct {
	Period int    `mapstructure:"period"`
	Field  string `mapstructure:"field"`
	Source string `mapstructure:"source"`
}

func (c SMAConfig) Type() string { return TypeSMA }

func (c SMAConfig) UniqueName() string {
	return "sma_" + fieldKey(c.Source, c.Field) + "_" + itoa(c.Period)
}

func (c SMAConfig) Validate() error {
	if c.Period < 1 {
		return invalid("SMA period=%d: must be >= 1", c.Period)
	}
	if c.Field == "" {
		return invalid("SMA field is empty")
	}
	return nil
}

func (c SMAConfig) newAlgorithm(Factory) algorithm { return &sma{cfg: c} }

// sma is the rolling arithmetic mean of the trailing Period values.
type sma struct {
	cfg SMAConfig
}

func (a *sma) compute(_ context.Context, _ string, in *model.Frame) (*model.Result, error) {
	x, err := column(in, a.cfg.Field)
	if err != nil {
		return nil, err
	}
	avg := rollingMean(x, a.cfg.Period)

	res := model.NewResult(in.Index)
	res.Set("SMA", avg)
	directions(res,
		func(i int) bool { return x[i] > avg[i] },
		func(i int) bool { return x[i] < avg[i] },
	)
	return roundAll(res), nil
}

func fieldKey(source, field string) string {
	if source == "" {
		return field
	}
	return source + "." + field
}
