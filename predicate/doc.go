// Package predicate synthesizes comparison predicates between a filter value
// type and an entity value type.
//
// A predicate is a two parameter lambda (f, e) => bool where f is the filter
// value and e the entity value. Comparisons are oriented filter first, so
// GreaterThan builds f > e. The default ExpressionProvider supports:
//
//   - scalars of identical type, lifted to *V when either side is nullable
//   - slice filters, tested for containment of the entity value
//   - Range shaped filters, expanded into exact, upper and lower bounds
//   - enumerable entity values, quantified with Any
//
// Booleans, strings, enums and registered identity types (uuid.UUID) support
// Equal only. Numbers, time.Time, time.Duration and decimal types with a
// Cmp method support every Comparison.
package predicate
