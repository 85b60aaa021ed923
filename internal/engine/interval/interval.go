package interval

import "fmt"

// Interval is a half-open range of line coordinates: [Start, End).
// Start == End is a zero-width interval marking a position.
type Interval struct {
	Start int64 // Inclusive start line
	End   int64 // Exclusive end line
}

// New creates an Interval from start and end coordinates.
func New(start, end int64) Interval {
	return Interval{Start: start, End: end}
}

// Point returns the zero-width interval at pos.
func Point(pos int64) Interval {
	return Interval{Start: pos, End: pos}
}

// Line returns the single-line interval [line, line+1).
func Line(line int64) Interval {
	return Interval{Start: line, End: line + 1}
}

// String returns a human-readable representation of the interval.
func (iv Interval) String() string {
	return fmt.Sprintf("[%d:%d)", iv.Start, iv.End)
}

// Len returns the number of lines covered.
func (iv Interval) Len() int64 {
	return iv.End - iv.Start
}

// IsEmpty returns true for zero-width intervals.
func (iv Interval) IsEmpty() bool {
	return iv.Start == iv.End
}

// IsValid returns true if the interval is well formed: 0 <= Start <= End.
func (iv Interval) IsValid() bool {
	return iv.Start >= 0 && iv.Start <= iv.End
}

// Contains returns true if pos lies within the interval.
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos < iv.End
}

// Overlaps reports whether two intervals intersect under the half-open rule
// a.Start < b.End && a.End > b.Start.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && iv.End > other.Start
}

// Direction selects the side searched by nearest-neighbour queries.
type Direction int

const (
	// Before searches for entries starting at or before a position.
	Before Direction = iota
	// After searches for entries starting at or after a position.
	After
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

// ParseDirection parses "before" or "after".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "before", "prev", "previous":
		return Before, true
	case "after", "next":
		return After, true
	default:
		return Before, false
	}
}
