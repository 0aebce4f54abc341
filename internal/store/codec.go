// Package store holds what the result store backends share: the entry codec
// and key validation.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"screening-systemv1/internal/model"
)

// codecVersion is bumped whenever the entry layout changes.
const codecVersion = 1

var (
	// ErrCorrupt is returned for entries that exist but cannot be decoded.
	ErrCorrupt = errors.New("corrupt result entry")

	// ErrInvalidKey is returned for names or symbols that cannot address an entry.
	ErrInvalidKey = errors.New("invalid result key")
)

// entry is the persisted form of a model.Result.
type entry struct {
	Version   int         `msgpack:"v"`
	Index     []int64     `msgpack:"index"` // unix nanoseconds
	Columns   []string    `msgpack:"columns"`
	Values    [][]float64 `msgpack:"values"`
	Direction []int8      `msgpack:"direction"`
}

// Encode serializes res.
func Encode(res *model.Result) ([]byte, error) {
	e := entry{
		Version:   codecVersion,
		Index:     make([]int64, len(res.Index)),
		Columns:   res.Columns,
		Values:    res.Values,
		Direction: make([]int8, len(res.Direction)),
	}
	for i, t := range res.Index {
		e.Index[i] = t.UnixNano()
	}
	for i, d := range res.Direction {
		e.Direction[i] = int8(d)
	}
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode. Malformed input wraps ErrCorrupt.
func Decode(data []byte) (*model.Result, error) {
	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Version != codecVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, e.Version)
	}
	n := len(e.Index)
	if len(e.Columns) != len(e.Values) || len(e.Direction) != n {
		return nil, fmt.Errorf("%w: shape mismatch", ErrCorrupt)
	}
	for j, col := range e.Values {
		if len(col) != n {
			return nil, fmt.Errorf("%w: column %q has %d rows, index has %d", ErrCorrupt, e.Columns[j], len(col), n)
		}
	}

	res := &model.Result{
		Frame: model.Frame{
			Index:   make([]time.Time, n),
			Columns: e.Columns,
			Values:  e.Values,
		},
		Direction: make([]model.Direction, n),
	}
	for i, ns := range e.Index {
		res.Index[i] = time.Unix(0, ns).UTC()
	}
	for i, d := range e.Direction {
		res.Direction[i] = model.Direction(d)
	}
	return res, nil
}

// ValidateKey rejects names and symbols that are empty or could escape
// their directory when used as path components.
func ValidateKey(name, symbol string) error {
	for _, part := range []string{name, symbol} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0) {
			return fmt.Errorf("%w: %q/%q", ErrInvalidKey, name, symbol)
		}
	}
	return nil
}
