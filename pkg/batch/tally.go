package batch

import (
	"slices"
	"strconv"
	"strings"
)

// Tally counts occurrences of each successfully echoed value.
type Tally map[uint32]int

// NewTally folds values into a Tally.
func NewTally(values []uint32) Tally {
	t := make(Tally, len(values))
	for _, v := range values {
		t[v]++
	}
	return t
}

// Duplicates returns the values seen more than once, ascending.
func (t Tally) Duplicates() []uint32 {
	dups := make([]uint32, 0)
	for v, count := range t {
		if count > 1 {
			dups = append(dups, v)
		}
	}
	slices.Sort(dups)
	return dups
}

// Successes drops failed outcomes and returns the values of the rest.
func Successes(outcomes []Outcome) []uint32 {
	values := make([]uint32, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			values = append(values, o.Value)
		}
	}
	return values
}

// Render formats values as "[a, b, c]"; an empty slice renders as "[]".
func Render(values []uint32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	sb.WriteByte(']')
	return sb.String()
}
