package model

import (
	"fmt"
	"time"
)

// Quote is one daily OHLCV bar for a single symbol.
type Quote struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// QuoteSeries is the date-ordered history of one symbol.
type QuoteSeries struct {
	Symbol string  `json:"symbol"`
	Quotes []Quote `json:"quotes"`
}

// Quote column names as they appear in a Frame.
const (
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColClose  = "Close"
	ColVolume = "Volume"
)

// Len returns the number of bars.
func (s *QuoteSeries) Len() int { return len(s.Quotes) }

// Validate checks that dates are strictly increasing.
func (s *QuoteSeries) Validate() error {
	for i := 1; i < len(s.Quotes); i++ {
		if !s.Quotes[i].Date.After(s.Quotes[i-1].Date) {
			return fmt.Errorf("%s: date %s at row %d does not follow %s",
				s.Symbol, s.Quotes[i].Date.Format(time.DateOnly), i, s.Quotes[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}

// Frame converts the series into a Frame with Open/High/Low/Close/Volume columns.
func (s *QuoteSeries) Frame() *Frame {
	n := len(s.Quotes)
	index := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, q := range s.Quotes {
		index[i] = q.Date
		open[i] = q.Open
		high[i] = q.High
		low[i] = q.Low
		cls[i] = q.Close
		vol[i] = q.Volume
	}

	f := NewFrame(index)
	f.Set(ColOpen, open)
	f.Set(ColHigh, high)
	f.Set(ColLow, low)
	f.Set(ColClose, cls)
	f.Set(ColVolume, vol)
	return f
}
