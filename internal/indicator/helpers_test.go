package indicator

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"screening-systemv1/internal/metrics"
	"screening-systemv1/internal/model"
)

var day0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// bar is one explicit High/Low/Close row.
type bar struct{ high, low, close float64 }

// series builds a daily series where High/Low sit one point around Close.
func series(symbol string, closes []float64) *model.QuoteSeries {
	s := &model.QuoteSeries{Symbol: symbol, Quotes: make([]model.Quote, len(closes))}
	for i, c := range closes {
		s.Quotes[i] = model.Quote{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64((i*37)%11)*100,
		}
	}
	return s
}

func frame(closes ...float64) *model.Frame {
	return series("TEST", closes).Frame()
}

func barFrame(bars ...bar) *model.Frame {
	s := &model.QuoteSeries{Symbol: "TEST", Quotes: make([]model.Quote, len(bars))}
	for i, b := range bars {
		s.Quotes[i] = model.Quote{Date: day0.AddDate(0, 0, i), Open: b.close, High: b.high, Low: b.low, Close: b.close, Volume: 1}
	}
	return s.Frame()
}

// randomWalk is a deterministic positive price path.
func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p += rng.NormFloat64()
		if p < 1 {
			p = 1
		}
		out[i] = math.Round(p*100) / 100
	}
	return out
}

func newMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

// runPlain computes cfg with an uncached factory.
func runPlain(t *testing.T, cfg Config, in *model.Frame) *model.Result {
	t.Helper()
	r, err := NewFactory().Create(cfg)
	require.NoError(t, err)
	res, err := r.Run(ctxb, "TEST", in, nil)
	require.NoError(t, err)
	return res
}

func col(t *testing.T, res *model.Result, name string) []float64 {
	t.Helper()
	out, ok := res.Column(name)
	require.True(t, ok, "column %q missing, have %v", name, res.Columns)
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(want) {
		if !math.IsNaN(got) {
			t.Errorf("%s: got %.6f, want NaN", label, got)
		}
		return
	}
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertSeries(t *testing.T, label string, got, want []float64, tol float64) {
	t.Helper()
	require.Len(t, got, len(want), label)
	for i := range want {
		assertClose(t, label+"["+itoa(i)+"]", got[i], want[i], tol)
	}
}

var (
	ctxb = context.Background()
	nan  = math.NaN()
)
