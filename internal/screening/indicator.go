// Package screening runs one configured indicator across every symbol of a
// quote source and folds the per-symbol results into date × symbol tables.
package screening

import (
	"math"
	"sort"
	"time"

	"screening-systemv1/internal/model"
)

// Attribute is a sparse date × symbol table of one output column. A symbol
// holds exactly the dates of its own series; nothing is aligned across
// symbols.
type Attribute struct {
	name    string
	symbols []string
	series  map[string]*column
}

type column struct {
	index  []time.Time
	values []float64
	byDate map[int64]int
}

func newAttribute(name string) *Attribute {
	return &Attribute{name: name, series: map[string]*column{}}
}

func (a *Attribute) insert(symbol string, index []time.Time, values []float64) {
	c := &column{index: index, values: values, byDate: make(map[int64]int, len(index))}
	for i, d := range index {
		c.byDate[d.UnixNano()] = i
	}
	if _, ok := a.series[symbol]; !ok {
		a.symbols = append(a.symbols, symbol)
	}
	a.series[symbol] = c
}

// Name returns the output column name.
func (a *Attribute) Name() string { return a.name }

// Value returns the cell at (date, symbol). ok is false when the symbol has
// no row at date; a present row may still hold NaN.
func (a *Attribute) Value(date time.Time, symbol string) (v float64, ok bool) {
	c, ok := a.series[symbol]
	if !ok {
		return math.NaN(), false
	}
	i, ok := c.byDate[date.UnixNano()]
	if !ok {
		return math.NaN(), false
	}
	return c.values[i], true
}

// Series returns the dates and values of symbol. The slices are shared and
// must not be modified.
func (a *Attribute) Series(symbol string) ([]time.Time, []float64, bool) {
	c, ok := a.series[symbol]
	if !ok {
		return nil, nil, false
	}
	return c.index, c.values, true
}

// Symbols returns the symbols in build order.
func (a *Attribute) Symbols() []string {
	return append([]string(nil), a.symbols...)
}

// Dates returns the sorted union of every symbol's dates.
func (a *Attribute) Dates() []time.Time {
	seen := map[int64]time.Time{}
	for _, c := range a.series {
		for _, d := range c.index {
			seen[d.UnixNano()] = d
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Indicator is the cross-symbol aggregate of one configured indicator.
type Indicator struct {
	Name string

	keys       []string
	attributes map[string]*Attribute
}

func newIndicator(name string) *Indicator {
	return &Indicator{Name: name, attributes: map[string]*Attribute{}}
}

// add folds every column of res, plus its Direction, into the attributes.
func (ind *Indicator) add(symbol string, res *model.Result) {
	if res.Len() == 0 {
		return
	}
	for j, name := range res.Columns {
		ind.attribute(name).insert(symbol, res.Index, res.Values[j])
	}
	dirs := make([]float64, len(res.Direction))
	for i, d := range res.Direction {
		dirs[i] = float64(d)
	}
	ind.attribute(model.DirectionColumn).insert(symbol, res.Index, dirs)
}

func (ind *Indicator) attribute(name string) *Attribute {
	a, ok := ind.attributes[name]
	if !ok {
		a = newAttribute(name)
		ind.attributes[name] = a
		ind.keys = append(ind.keys, name)
	}
	return a
}

// Attribute returns the table of the named output column.
func (ind *Indicator) Attribute(name string) (*Attribute, bool) {
	a, ok := ind.attributes[name]
	return a, ok
}

// AttributeNames lists the output columns in the order they were produced,
// Direction last.
func (ind *Indicator) AttributeNames() []string {
	out := make([]string, 0, len(ind.keys))
	for _, k := range ind.keys {
		if k != model.DirectionColumn {
			out = append(out, k)
		}
	}
	if _, ok := ind.attributes[model.DirectionColumn]; ok {
		out = append(out, model.DirectionColumn)
	}
	return out
}

// Direction returns the signal of symbol at date.
func (ind *Indicator) Direction(date time.Time, symbol string) (model.Direction, bool) {
	a, ok := ind.attributes[model.DirectionColumn]
	if !ok {
		return model.DirectionNone, false
	}
	v, ok := a.Value(date, symbol)
	if !ok {
		return model.DirectionNone, false
	}
	return model.Direction(v), true
}
