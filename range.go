package autofilter

import "github.com/hugr-lab/autofilter-go/predicate"

// RangeFilter bounds an entity property. Use it as a filter field type:
//
//	type OrderFilter struct {
//	    Total autofilter.RangeFilter[float64]
//	}
type RangeFilter[T any] = predicate.Range[T]

// NewRange returns a range with optional bounds; nil leaves a side open.
func NewRange[T any](lo, hi *T) RangeFilter[T] {
	return RangeFilter[T]{MinValue: lo, MaxValue: hi}
}

// Between returns the closed range [lo, hi].
func Between[T any](lo, hi T) RangeFilter[T] {
	return RangeFilter[T]{MinValue: &lo, MaxValue: &hi}
}

// Exact returns a range matching v only.
func Exact[T any](v T) RangeFilter[T] {
	return RangeFilter[T]{ExactValue: &v}
}
