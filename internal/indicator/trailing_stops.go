package indicator

import (
	"context"
	"math"

	"screening-systemv1/internal/model"
)

// TrailingStopsConfig configures the ATR ratchet stops.
type TrailingStopsConfig struct {
	Multiplier float64 `mapstructure:"multiplier"`
	Period     int     `mapstructure:"period"`
}

func (c TrailingStopsConfig) Type() string { return TypeTrailingStops }

func (c TrailingStopsConfig) UniqueName() string {
	return "trailing_stops_" + ftoa(c.Multiplier) + "_" + itoa(c.Period)
}

func (c TrailingStopsConfig) Validate() error {
	if c.Period < 1 {
		return invalid("TrailingStops period=%d: must be >= 1", c.Period)
	}
	if !(c.Multiplier > 0) || math.IsInf(c.Multiplier, 0) {
		return invalid("TrailingStops multiplier=%v: must be a positive number", c.Multiplier)
	}
	return nil
}

func (c TrailingStopsConfig) newAlgorithm(deps Factory) algorithm {
	return &trailingStops{cfg: c, deps: deps}
}

// trailingStops walks a two-state ratchet starting bearish.
//
// Bearish: the stop placed on bar i+1 is max(highest close of the trailing
// Period bars ending at i - m*ATR[i], SellStops[i]); the regime flips when
// Close[i+1] <= that stop. Bullish mirrors it with the lowest close + m*ATR
// and min against BuyStops[i], flipping when Close[i+1] >= the stop. Only
// the active side's column is written per bar, so a flip restarts the
// ratchet from the fresh candidate.
type trailingStops struct {
	cfg  TrailingStopsConfig
	deps Factory
}

func (a *trailingStops) compute(ctx context.Context, symbol string, in *model.Frame) (*model.Result, error) {
	cls, err := column(in, model.ColClose)
	if err != nil {
		return nil, err
	}
	rng, err := runColumn(ctx, a.deps, ATRConfig{Period: a.cfg.Period}, symbol, in, "ATR")
	if err != nil {
		return nil, err
	}

	n := len(cls)
	buy := model.NaNs(n)
	sell := model.NaNs(n)
	bearish := true
	for i := 0; i < n-1; i++ {
		if math.IsNaN(rng[i]) {
			continue
		}
		lo := i - a.cfg.Period + 1
		if lo < 0 {
			lo = 0
		}
		window := cls[lo : i+1]
		offset := a.cfg.Multiplier * rng[i]

		if bearish {
			stop := maxDefined(maxOf(window)-offset, sell[i])
			sell[i+1] = stop
			if cls[i+1] <= stop {
				bearish = false
			}
			continue
		}
		stop := minDefined(minOf(window)+offset, buy[i])
		buy[i+1] = stop
		if cls[i+1] >= stop {
			bearish = true
		}
	}

	res := model.NewResult(in.Index)
	res.Set("BuyStops", buy)
	res.Set("SellStops", sell)
	directions(res,
		func(i int) bool { return cls[i] >= buy[i] },
		func(i int) bool { return cls[i] <= sell[i] },
	)
	return roundAll(res), nil
}
