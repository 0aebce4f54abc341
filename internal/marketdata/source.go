// Package marketdata provides QuoteSource implementations that hold their
// history in memory: loaded from CSV or constructed directly.
package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"screening-systemv1/internal/model"
)

// ErrUnknownSymbol is returned by Quotes for symbols the source does not hold.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Memory is a QuoteSource over in-memory series.
type Memory struct {
	symbols []string
	series  map[string]*model.QuoteSeries
}

// NewMemory builds a source from validated series. Symbols keep the order given.
func NewMemory(series ...*model.QuoteSeries) (*Memory, error) {
	m := &Memory{series: make(map[string]*model.QuoteSeries, len(series))}
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.series[s.Symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %q", s.Symbol)
		}
		m.symbols = append(m.symbols, s.Symbol)
		m.series[s.Symbol] = s
	}
	return m, nil
}

// Symbols returns the symbols in insertion order.
func (m *Memory) Symbols(context.Context) ([]string, error) {
	return append([]string(nil), m.symbols...), nil
}

// Quotes returns the series of symbol.
func (m *Memory) Quotes(_ context.Context, symbol string) (*model.QuoteSeries, error) {
	s, ok := m.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSymbol, symbol)
	}
	return s, nil
}

// All returns every series in symbol order.
func (m *Memory) All() []*model.QuoteSeries {
	out := make([]*model.QuoteSeries, 0, len(m.symbols))
	for _, sym := range m.symbols {
		out = append(out, m.series[sym])
	}
	return out
}

// csvColumns are the required header names, matched case-insensitively.
var csvColumns = []string{"date", "symbol", "open", "high", "low", "close", "volume"}

// dateLayouts are tried in order for the Date column.
var dateLayouts = []string{time.DateOnly, "2006/01/02", "01/02/2006", time.RFC3339}

// LoadCSVFile reads a quote CSV from path.
func LoadCSVFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quotes csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV parses rows of Date,Symbol,Open,High,Low,Close,Volume (any column
// order, header required). Rows are grouped per symbol and sorted by date;
// symbols are returned sorted.
func LoadCSV(r io.Reader) (*Memory, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", c)
		}
	}

	bySymbol := map[string]*model.QuoteSeries{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		q, symbol, err := parseRow(rec, pos)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		s, ok := bySymbol[symbol]
		if !ok {
			s = &model.QuoteSeries{Symbol: symbol}
			bySymbol[symbol] = s
		}
		s.Quotes = append(s.Quotes, q)
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	series := make([]*model.QuoteSeries, 0, len(symbols))
	for _, sym := range symbols {
		s := bySymbol[sym]
		sort.SliceStable(s.Quotes, func(i, j int) bool { return s.Quotes[i].Date.Before(s.Quotes[j].Date) })
		series = append(series, s)
	}
	return NewMemory(series...)
}

func parseRow(rec []string, pos map[string]int) (model.Quote, string, error) {
	var q model.Quote
	symbol := strings.TrimSpace(rec[pos["symbol"]])
	if symbol == "" {
		return q, "", errors.New("empty symbol")
	}

	date, err := parseDate(strings.TrimSpace(rec[pos["date"]]))
	if err != nil {
		return q, "", err
	}
	q.Date = date

	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &q.Open}, {"high", &q.High}, {"low", &q.Low}, {"close", &q.Close}, {"volume", &q.Volume},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(rec[pos[f.name]])
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return q, "", fmt.Errorf("%s %q: %w", f.name, raw, err)
		}
		*f.dst = v
	}
	return q, symbol, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
