package model

import (
	"fmt"
	"math"
	"time"
)

// Frame is a date index with ordered, named float64 columns.
// math.NaN() marks "no value"; it is never replaced with zero.
type Frame struct {
	Index   []time.Time
	Columns []string
	Values  [][]float64 // Values[j] holds column Columns[j]
}

// NewFrame returns an empty frame over index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{Index: index}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Index) }

// Column returns the values of the named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	for j, c := range f.Columns {
		if c == name {
			return f.Values[j], true
		}
	}
	return nil, false
}

// Set adds or replaces a column. values must have one entry per index row.
func (f *Frame) Set(name string, values []float64) {
	if len(values) != len(f.Index) {
		panic(fmt.Sprintf("frame: column %q has %d rows, index has %d", name, len(values), len(f.Index)))
	}
	for j, c := range f.Columns {
		if c == name {
			f.Values[j] = values
			return
		}
	}
	f.Columns = append(f.Columns, name)
	f.Values = append(f.Values, values)
}

// IndexEqual reports whether index matches the frame's index exactly:
// same length, same instants, same order.
func (f *Frame) IndexEqual(index []time.Time) bool {
	if len(f.Index) != len(index) {
		return false
	}
	for i := range index {
		if !f.Index[i].Equal(index[i]) {
			return false
		}
	}
	return true
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
