package predicate

import (
	"strconv"
	"strings"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
)

// Comparison selects the relational operator of a predicate.
// The filter value is always the left operand: GreaterThan means
// filterValue > entityValue.
type Comparison int

const (
	Equal Comparison = iota
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
)

var comparisonNames = [...]string{
	Equal:              "Equal",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
}

// Valid reports whether c is one of the defined comparisons.
func (c Comparison) Valid() bool {
	return c >= Equal && c <= LessThanOrEqual
}

func (c Comparison) String() string {
	if !c.Valid() {
		return "Comparison(" + strconv.Itoa(int(c)) + ")"
	}
	return comparisonNames[c]
}

// NodeType returns the expression operator for c.
func (c Comparison) NodeType() expr.NodeType {
	switch c {
	case GreaterThan:
		return expr.NodeGreaterThan
	case GreaterThanOrEqual:
		return expr.NodeGreaterThanOrEqual
	case LessThan:
		return expr.NodeLessThan
	case LessThanOrEqual:
		return expr.NodeLessThanOrEqual
	}
	return expr.NodeEqual
}

// ParseComparison accepts the short forms eq, gt, gte, lt, lte and the full
// names, case-insensitively.
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eq", "equal", "==":
		return Equal, nil
	case "gt", "greaterthan", ">":
		return GreaterThan, nil
	case "gte", "ge", "greaterthanorequal", ">=":
		return GreaterThanOrEqual, nil
	case "lt", "lessthan", "<":
		return LessThan, nil
	case "lte", "le", "lessthanorequal", "<=":
		return LessThanOrEqual, nil
	}
	return Equal, errs.Invalid(pkg, "unknown comparison %q", s)
}
