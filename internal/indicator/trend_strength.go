package indicator

import (
	"context"
	"math"

	"screening-systemv1/internal/model"
)

// TrendStrengthConfig scores Close against a fan of SMAs with periods
// Start, Start+Step, ... below End, plus End itself.
type TrendStrengthConfig struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
	Step  int `mapstructure:"step"`
}

func (c TrendStrengthConfig) Type() string { return TypeTrendStrength }

func (c TrendStrengthConfig) UniqueName() string {
	return "trend_strength_" + itoa(c.Start) + "_" + itoa(c.End) + "_" + itoa(c.Step)
}

func (c TrendStrengthConfig) Validate() error {
	if c.Start < 1 || c.Step < 1 {
		return invalid("TrendStrength start=%d step=%d: must be >= 1", c.Start, c.Step)
	}
	if c.Start > c.End {
		return invalid("TrendStrength start=%d must be <= end=%d", c.Start, c.End)
	}
	return nil
}

// Periods returns the SMA periods of the fan.
func (c TrendStrengthConfig) Periods() []int {
	var out []int
	for p := c.Start; p < c.End; p += c.Step {
		out = append(out, p)
	}
	return append(out, c.End)
}

// Columns returns the output columns: one SMA<p> per period, then TrendStrength.
func (c TrendStrengthConfig) Columns() []string {
	var out []string
	for _, p := range c.Periods() {
		out = append(out, "SMA"+itoa(p))
	}
	return append(out, "TrendStrength")
}

func (c TrendStrengthConfig) newAlgorithm(deps Factory) algorithm {
	return &trendStrength{cfg: c, deps: deps}
}

type trendStrength struct {
	cfg  TrendStrengthConfig
	deps Factory
}

func (a *trendStrength) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	cls, err := column(in, model.ColClose)
	if err != nil {
		return nil, err
	}
	high, err := column(in, model.ColHigh)
	if err != nil {
		return nil, err
	}

	res := model.NewResult(in.Index)
	periods := a.cfg.Periods()
	fan := make([][]float64, len(periods))
	for j, p := range periods {
		avg, err := runColumn(ctx, a.deps, SMAConfig{Period: p, Field: model.ColClose}, symbol, in, "SMA")
		if err != nil {
			return nil, err
		}
		fan[j] = avg
		res.Set("SMA"+itoa(p), append([]float64(nil), avg...))
	}

	n := in.Len()
	size := float64(len(periods))
	strength := model.NaNs(n)
	lowest := model.NaNs(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(cls[i]) {
			continue
		}
		below, ok := 0, true
		low := math.Inf(1)
		for _, avg := range fan {
			if math.IsNaN(avg[i]) {
				ok = false
				break
			}
			if avg[i] < cls[i] {
				below++
			}
			low = math.Min(low, avg[i])
		}
		if !ok {
			continue
		}
		above := len(periods) - below
		strength[i] = math.RoundToEven(100*float64(below)/size) - math.RoundToEven(100*float64(above)/size)
		lowest[i] = low
	}

	res.Set("TrendStrength", strength)
	directions(res,
		func(i int) bool { return strength[i] >= 100 && at(strength, i-1) < 100 },
		func(i int) bool { return strength[i] <= -100 && high[i] < lowest[i] },
	)
	return roundAll(res), nil
}
