// Package score models collection log totals from the hiscore source.
//
// The source hides players below a visibility floor: a lookup for such a
// player reports -1. That is a valid, displayable state ("fewer than 500
// entries logged"), not an error, so the total is carried as a tagged value
// rather than a raw magic integer.
package score

import "strconv"

// VisibilityFloor is the smallest total the hiscore source reports.
// Totals below it come back as the raw sentinel.
const VisibilityFloor = 500

// rawBelowFloor is the wire/database encoding of a below-floor total.
const rawBelowFloor = -1

// Total is a collection log total: either a known count or "below the
// visibility floor, exact value unknown".
type Total struct {
	known bool
	value int
}

// Known builds a Total with a known count.
func Known(v int) Total {
	return Total{known: true, value: v}
}

// BelowFloor builds the below-visibility-floor Total.
func BelowFloor() Total {
	return Total{}
}

// FromRaw decodes the wire/database encoding: negative means below floor.
func FromRaw(v int) Total {
	if v < 0 {
		return BelowFloor()
	}
	return Known(v)
}

// Value returns the count and whether it is known.
func (t Total) Value() (int, bool) {
	return t.value, t.known
}

// IsKnown reports whether the total carries a known count.
func (t Total) IsKnown() bool {
	return t.known
}

// Raw encodes the total for the wire/database: -1 when below floor.
func (t Total) Raw() int {
	if !t.known {
		return rawBelowFloor
	}
	return t.value
}

// String renders the total for display: the count, or "<500".
func (t Total) String() string {
	if !t.known {
		return "<" + strconv.Itoa(VisibilityFloor)
	}
	return strconv.Itoa(t.value)
}

// Result is one hiscore lookup outcome: the total plus the source's own
// rank ordinal. SourceRank <= 0 means the rank is unknown.
type Result struct {
	Total      Total
	SourceRank int
}

// Resolve applies the carry-forward policy when a lookup reports a
// below-floor total. A previously stored count is trusted only when it is
// itself a plausible below-floor value, i.e. within [0, VisibilityFloor-1];
// that keeps moderator overrides alive across passes without resurrecting
// stale counts that the live source should own.
func Resolve(fetched Total, previous Total, hasPrevious bool) Total {
	if fetched.IsKnown() {
		return fetched
	}
	if !hasPrevious {
		return fetched
	}
	if v, ok := previous.Value(); ok && v >= 0 && v < VisibilityFloor {
		return previous
	}
	return fetched
}
