package indicator

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"screening-systemv1/internal/model"
)

// Precision is the number of decimal places every output is rounded to.
const Precision = 4

// round rounds x half away from zero to Precision places. NaN and ±Inf pass through.
func round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(Precision).Float64()
	return f
}

// roundAll rounds every column of res in place.
func roundAll(res *model.Result) *model.Result {
	for _, col := range res.Values {
		for i, v := range col {
			col[i] = round(v)
		}
	}
	return res
}

// rolling applies fn to every full trailing window of x. Windows containing
// NaN yield NaN, as do the first period-1 rows.
func rolling(x []float64, period int, fn func(w []float64) float64) []float64 {
	out := model.NaNs(len(x))
	for i := period - 1; i < len(x); i++ {
		w := x[i-period+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(x []float64, period int) []float64 { return rolling(x, period, mean) }

// rollingStd is the sample standard deviation (n-1 denominator).
func rollingStd(x []float64, period int) []float64 {
	return rolling(x, period, func(w []float64) float64 {
		m := mean(w)
		var ss float64
		for _, v := range w {
			ss += (v - m) * (v - m)
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

func rollingMax(x []float64, period int) []float64 { return rolling(x, period, maxOf) }
func rollingMin(x []float64, period int) []float64 { return rolling(x, period, minOf) }

func mean(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s / float64(len(w))
}

func maxOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func hasNaN(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// firstDefined returns the index of the first non-NaN value, or -1.
func firstDefined(x []float64) int {
	for i, v := range x {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// maxDefined is the larger of the defined values among a and b; NaN when both are NaN.
func maxDefined(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}

// minDefined is the smaller of the defined values among a and b; NaN when both are NaN.
func minDefined(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Min(a, b)
}

// directions sets LONG where long(i) holds, else SHORT where short(i) holds.
func directions(res *model.Result, long, short func(i int) bool) {
	for i := range res.Direction {
		switch {
		case long(i):
			res.Direction[i] = model.DirectionLong
		case short(i):
			res.Direction[i] = model.DirectionShort
		default:
			res.Direction[i] = model.DirectionNone
		}
	}
}

// never is the condition of indicators that emit no direction.
func never(int) bool { return false }

// flag returns 1 when cond holds and 0 otherwise; NaN when the row is undefined.
func flag(defined, cond bool) float64 {
	switch {
	case !defined:
		return math.NaN()
	case cond:
		return 1
	}
	return 0
}

func defined(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// at returns x[i], or NaN when i is before the first row.
func at(x []float64, i int) float64 {
	if i < 0 {
		return math.NaN()
	}
	return x[i]
}

func itoa(n int) string { return strconv.Itoa(n) }

// ftoa renders f in its shortest exact decimal form: 4 → "4", 2.5 → "2.5".
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
