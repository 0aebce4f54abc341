package indicator

import (
	"context"
	"math"

	"screening-systemv1/internal/model"
)

// RSIConfig configures the Relative Strength Index over Field.
type RSIConfig struct {
	Period int    `mapstructure:"period"`
	Field  string `mapstructure:"field"`
	Source string `mapstructure:"source"`
}

func (c RSIConfig) Type() string { return TypeRSI }

func (c RSIConfig) UniqueName() string {
	return "rsi_" + fieldKey(c.Source, c.Field) + "_" + itoa(c.Period)
}

func (c RSIConfig) Validate() error {
	if c.Period < 1 {
		return invalid("RSI period=%d: must be >= 1", c.Period)
	}
	if c.Field == "" {
		return invalid("RSI field is empty")
	}
	return nil
}

func (c RSIConfig) newAlgorithm(Factory) algorithm { return &rsi{cfg: c} }

// rsi smooths gains and losses with a bias-corrected exponential mean
// (alpha = 1/period, weights decaying across missing changes).
// RS = gain/loss; RSI = 100 - 100/(1+RS). A flat window is NaN; a window
// without losses has RS=+Inf and RSI=100.
type rsi struct {
	cfg RSIConfig
}

func (a *rsi) compute(_ context.Context, _ string, in *model.Frame) (*model.Result, error) {
	x, err := column(in, a.cfg.Field)
	if err != nil {
		return nil, err
	}

	n := len(x)
	rs := model.NaNs(n)
	idx := model.NaNs(n)
	decay := 1 - 1/float64(a.cfg.Period)

	// The shared normalising weight cancels in gain/loss, so only the
	// weighted sums are tracked.
	var gain, loss float64
	started := false
	for i := 1; i < n; i++ {
		d := x[i] - x[i-1]
		if started {
			gain *= decay
			loss *= decay
		}
		if !math.IsNaN(d) {
			gain += math.Max(d, 0)
			loss += math.Max(-d, 0)
			started = true
		}
		if !started {
			continue
		}
		rs[i] = gain / loss
		idx[i] = 100 - 100/(1+rs[i])
	}

	res := model.NewResult(in.Index)
	res.Set("RS", rs)
	res.Set("RSI", idx)
	directions(res, never, never)
	return roundAll(res), nil
}
