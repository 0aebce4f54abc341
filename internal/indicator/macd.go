package indicator

import (
	"context"

	"screening-systemv1/internal/model"
)

// MACDConfig configures Moving Average Convergence/Divergence.
type MACDConfig struct {
	Fast   int `mapstructure:"fast"`
	Slow   int `mapstructure:"slow"`
	Signal int `mapstructure:"signal"`
}

func (c MACDConfig) Type() string { return TypeMACD }

func (c MACDConfig) UniqueName() string {
	return "macd_" + itoa(c.Fast) + "_" + itoa(c.Slow) + "_" + itoa(c.Signal)
}

func (c MACDConfig) Validate() error {
	if c.Fast < 1 || c.Slow < 1 || c.Signal < 1 {
		return invalid("MACD fast=%d slow=%d signal=%d: periods must be >= 1", c.Fast, c.Slow, c.Signal)
	}
	if c.Fast >= c.Slow {
		return invalid("MACD fast=%d must be < slow=%d", c.Fast, c.Slow)
	}
	return nil
}

func (c MACDConfig) newAlgorithm(deps Factory) algorithm { return &macd{cfg: c, deps: deps} }

type macd struct {
	cfg  MACDConfig
	deps Factory
}

func (a *macd) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	fast, err := runColumn(ctx, a.deps, EMAConfig{Period: a.cfg.Fast, Field: model.ColClose}, symbol, in, "EMA")
	if err != nil {
		return nil, err
	}
	slow, err := runColumn(ctx, a.deps, EMAConfig{Period: a.cfg.Slow, Field: model.ColClose}, symbol, in, "EMA")
	if err != nil {
		return nil, err
	}

	n := in.Len()
	line := make([]float64, n)
	for i := range line {
		line[i] = fast[i] - slow[i]
	}

	// the signal line is an EMA of the MACD line itself
	derived := model.NewFrame(in.Index)
	derived.Set("MACD", line)
	signalCfg := EMAConfig{Period: a.cfg.Signal, Field: "MACD", Source: a.cfg.UniqueName()}
	signal, err := runColumn(ctx, a.deps, signalCfg, symbol, derived, "EMA")
	if err != nil {
		return nil, err
	}

	up := make([]float64, n)
	down := make([]float64, n)
	for i := 0; i < n; i++ {
		ok := defined(line[i], signal[i])
		up[i] = flag(ok, line[i] > signal[i] && at(line, i-1) <= at(signal, i-1))
		down[i] = flag(ok, line[i] < signal[i] && at(signal, i-1) <= at(line, i-1))
	}

	res := model.NewResult(in.Index)
	res.Set("MACD", line)
	res.Set("Signal", append([]float64(nil), signal...))
	res.Set("MACDCrossoverSignal", up)
	res.Set("SignalCrossoverMACD", down)
	directions(res,
		func(i int) bool { return up[i] == 1 },
		func(i int) bool { return down[i] == 1 },
	)
	return roundAll(res), nil
}
