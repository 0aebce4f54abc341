package model

import "time"

// Direction is the categorical signal derived for each row of a Result.
type Direction int8

const (
	DirectionNone  Direction = 0
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

// DirectionColumn is the attribute name under which directions are exposed.
const DirectionColumn = "Direction"

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Result is the output of one indicator run for one symbol: named numeric
// columns over the input index plus one Direction per row.
//
// Results may be shared between callers through the cache and must be
// treated as read-only once returned.
type Result struct {
	Frame
	Direction []Direction
}

// NewResult returns an empty result over index with every direction NONE.
func NewResult(index []time.Time) *Result {
	return &Result{
		Frame:     Frame{Index: index},
		Direction: make([]Direction, len(index)),
	}
}
