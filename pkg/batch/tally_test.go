package batch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
)

func TestNewTally(t *testing.T) {
	tally := NewTally([]uint32{3, 7, 3, 2, 7, 3})

	expected := Tally{3: 3, 7: 2, 2: 1}
	if len(tally) != len(expected) {
		t.Fatalf("Expected %d distinct values, got %d (%v)", len(expected), len(tally), tally)
	}
	for value, count := range expected {
		if tally[value] != count {
			t.Errorf("Value %d: expected count %d, got %d", value, count, tally[value])
		}
	}
}

func TestDuplicatesOf(t *testing.T) {
	failed := failure(Query{Value: 9}, ErrTransport)

	testCases := []struct {
		name     string
		outcomes []Outcome
		expected []uint32
		rendered string
	}{
		{
			name:     "no outcomes",
			outcomes: nil,
			expected: []uint32{},
			rendered: "[]",
		},
		{
			name:     "all failed",
			outcomes: []Outcome{failed, failed, failed},
			expected: []uint32{},
			rendered: "[]",
		},
		{
			name:     "duplicates sorted",
			outcomes: successes(3, 7, 3, 2, 7, 3),
			expected: []uint32{3, 7},
			rendered: "[3, 7]",
		},
		{
			name:     "distinct values with failures",
			outcomes: append(successes(1, 2, 3), failed, failed),
			expected: []uint32{},
			rendered: "[]",
		},
		{
			name:     "failed value not counted",
			outcomes: append(successes(9, 4, 4), failed),
			expected: []uint32{4},
			rendered: "[4]",
		},
		{
			name:     "range bounds",
			outcomes: successes(10, 0, 10, 0, 5),
			expected: []uint32{0, 10},
			rendered: "[0, 10]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dups := duplicatesOf(tc.outcomes)
			if !slices.Equal(dups, tc.expected) {
				t.Errorf("Expected duplicates %v, got %v", tc.expected, dups)
			}
			if got := Render(dups); got != tc.rendered {
				t.Errorf("Expected rendering %q, got %q", tc.rendered, got)
			}
		})
	}
}

func TestDuplicatesOf_OrderInsensitive(t *testing.T) {
	outcomes := successes(5, 1, 5, 8, 8, 8, 0, 2, 1)
	outcomes = append(outcomes, failure(Query{Value: 5}, &StatusError{Code: 502}))
	expected := duplicatesOf(outcomes)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		shuffled := slices.Clone(outcomes)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := duplicatesOf(shuffled); !slices.Equal(got, expected) {
			t.Fatalf("Shuffle %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestDuplicates_SortedAndUnique(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 100; i++ {
		values := make([]uint32, rng.IntN(40))
		for j := range values {
			values[j] = rng.Uint32N(MaxValue + 1)
		}
		tally := NewTally(values)
		dups := tally.Duplicates()

		if !slices.IsSorted(dups) {
			t.Fatalf("Duplicates not sorted: %v", dups)
		}
		for j := 1; j < len(dups); j++ {
			if dups[j] == dups[j-1] {
				t.Fatalf("Duplicates contain repeated value %d: %v", dups[j], dups)
			}
		}
		for value, count := range tally {
			if slices.Contains(dups, value) != (count > 1) {
				t.Fatalf("Value %d with count %d misclassified in %v", value, count, dups)
			}
		}
	}
}

func TestOutcomeKind(t *testing.T) {
	testCases := []struct {
		outcome  Outcome
		expected string
	}{
		{success(Query{}, 1), "success"},
		{failure(Query{}, &StatusError{Code: 500}), "status_error"},
		{failure(Query{}, errors.Join(ErrParse, errors.New("bad json"))), "parse_error"},
		{failure(Query{}, ErrTransport), "transport_error"},
	}

	for _, tc := range testCases {
		if got := tc.outcome.kind(); got != tc.expected {
			t.Errorf("Expected kind %s for %v, got %s", tc.expected, tc.outcome.Err, got)
		}
	}
}

func successes(values ...uint32) []Outcome {
	outcomes := make([]Outcome, 0, len(values))
	for _, v := range values {
		outcomes = append(outcomes, success(Query{Value: v}, v))
	}
	return outcomes
}

func duplicatesOf(outcomes []Outcome) []uint32 {
	return NewTally(Successes(outcomes)).Duplicates()
}

func TestStatusError_IncludesCode(t *testing.T) {
	err := &StatusError{Code: 503}
	if msg := err.Error(); !strings.Contains(msg, "503") {
		t.Errorf("Expected status code in %q", msg)
	}

	wrapped := fmt.Errorf("request: %w", err)
	var statusErr *StatusError
	if !errors.As(wrapped, &statusErr) || statusErr.Code != 503 {
		t.Errorf("Expected wrapped StatusError with code 503, got %v", wrapped)
	}
}
