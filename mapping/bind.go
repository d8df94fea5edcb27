package mapping

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

var (
	boolType = reflect.TypeFor[bool]()
	timeType = reflect.TypeFor[time.Time]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

var relational = map[string]expr.NodeType{
	"==": expr.NodeEqual,
	"!=": expr.NodeNotEqual,
	"<":  expr.NodeLessThan,
	"<=": expr.NodeLessThanOrEqual,
	">":  expr.NodeGreaterThan,
	">=": expr.NodeGreaterThanOrEqual,
}

// ParsePredicate parses text into a predicate template (f, e) => bool where
// f has type filterType and e has type entityType.
//
// Operands are f, e and their member paths, and the literals null, true,
// false, integers, floats and double quoted strings. A literal takes the
// type of the property it is compared with; strings convert to time.Time
// (RFC 3339) and uuid.UUID. Comparing with null tests for null. Operands
// whose types differ only in nullability are both lifted to the nullable
// type.
func ParsePredicate(text string, filterType, entityType reflect.Type) (*expr.LambdaExpression, error) {
	if filterType == nil {
		return nil, errs.Missing(pkg, "filter type")
	}
	if entityType == nil {
		return nil, errs.Missing(pkg, "entity type")
	}
	ast, err := parse(text)
	if err != nil {
		return nil, err
	}
	f, err := expr.Parameter(filterType, "f")
	if err != nil {
		return nil, err
	}
	e, err := expr.Parameter(entityType, "e")
	if err != nil {
		return nil, err
	}
	b := &binder{params: map[string]*expr.ParameterExpression{"f": f, "e": e}}
	body, err := b.or(ast)
	if err != nil {
		return nil, fmt.Errorf("mapping: predicate %q: %w", text, err)
	}
	return expr.Lambda(body, f, e)
}

type binder struct {
	params map[string]*expr.ParameterExpression
}

// bound is either a typed expression or a literal waiting for the type of
// the operand it is compared with.
type bound struct {
	e    expr.Expression
	lit  any
	null bool
}

func (b *binder) or(n *orExpr) (expr.Expression, error) {
	var out expr.Expression
	for _, t := range n.Terms {
		x, err := b.and(t)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = x
			continue
		}
		if out, err = expr.OrElse(out, x); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *binder) and(n *andExpr) (expr.Expression, error) {
	var out expr.Expression
	for _, f := range n.Factors {
		x, err := b.unary(f)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = x
			continue
		}
		if out, err = expr.AndAlso(out, x); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *binder) unary(n *unaryExpr) (expr.Expression, error) {
	if n.Not != nil {
		x, err := b.unary(n.Not)
		if err != nil {
			return nil, err
		}
		return expr.Not(x)
	}
	return b.comparison(n.Compare)
}

func (b *binder) comparison(n *comparison) (expr.Expression, error) {
	left, err := b.operand(n.Left)
	if err != nil {
		return nil, err
	}
	if n.Rest == nil {
		x, err := b.standalone(left)
		if err != nil {
			return nil, err
		}
		if x.Type() != boolType {
			return nil, errs.Invalid(pkg, "%s is not a condition", x)
		}
		return x, nil
	}
	right, err := b.operand(n.Rest.Right)
	if err != nil {
		return nil, err
	}
	op := relational[n.Rest.Op]

	switch {
	case left.null && right.null:
		return nil, errs.Invalid(pkg, "null compared with null")
	case left.null || right.null:
		x := left.e
		if left.null {
			x = right.e
		}
		if x == nil {
			return nil, errs.Invalid(pkg, "null compared with a literal")
		}
		return nullTest(op, x)
	case left.e == nil && right.e == nil:
		return nil, errs.Invalid(pkg, "comparison needs a property operand")
	case left.e == nil:
		if left.e, err = literalLike(left.lit, right.e.Type()); err != nil {
			return nil, err
		}
	case right.e == nil:
		if right.e, err = literalLike(right.lit, left.e.Type()); err != nil {
			return nil, err
		}
	}

	l, r, err := unify(left.e, right.e)
	if err != nil {
		return nil, err
	}
	return expr.MakeBinary(op, l, r)
}

func nullTest(op expr.NodeType, x expr.Expression) (expr.Expression, error) {
	isNull, err := expr.IsNull(x)
	if err != nil {
		return nil, err
	}
	switch op {
	case expr.NodeEqual:
		return isNull, nil
	case expr.NodeNotEqual:
		return expr.Not(isNull)
	}
	return nil, errs.Invalid(pkg, "null supports only == and !=")
}

// standalone binds an operand that is not compared with anything.
func (b *binder) standalone(v bound) (expr.Expression, error) {
	switch {
	case v.e != nil:
		return v.e, nil
	case v.null:
		return nil, errs.Invalid(pkg, "null is not a condition")
	}
	return expr.Constant(v.lit)
}

func (b *binder) operand(n *operand) (bound, error) {
	switch {
	case n.Group != nil:
		x, err := b.or(n.Group)
		return bound{e: x}, err
	case n.Null:
		return bound{null: true}, nil
	case n.Bool != nil:
		return bound{lit: *n.Bool == "true"}, nil
	case n.Float != nil:
		return bound{lit: *n.Float}, nil
	case n.Int != nil:
		return bound{lit: *n.Int}, nil
	case n.String != nil:
		return bound{lit: *n.String}, nil
	}
	x, err := b.path(n.Path)
	return bound{e: x}, err
}

func (b *binder) path(p *path) (expr.Expression, error) {
	param, ok := b.params[p.Root]
	if !ok {
		return nil, errs.Invalid(pkg, "unknown operand %q, expected f or e", p.Root)
	}
	var cur expr.Expression = param
	for _, name := range p.Members {
		m, err := expr.Field(cur, name)
		if err != nil {
			return nil, err
		}
		cur = m
	}
	return cur, nil
}

// literalLike converts lit to the value type of t, lifted to t when t is
// nullable.
func literalLike(lit any, t reflect.Type) (expr.Expression, error) {
	base, err := typeutil.StripNullable(t)
	if err != nil {
		return nil, err
	}
	v, err := convertLiteral(lit, base)
	if err != nil {
		return nil, err
	}
	c, err := expr.TypedConstant(v, base)
	if err != nil {
		return nil, err
	}
	if base == t {
		return c, nil
	}
	return expr.Convert(c, t)
}

func convertLiteral(lit any, t reflect.Type) (any, error) {
	rv := reflect.ValueOf(lit)
	switch x := lit.(type) {
	case string:
		switch {
		case t == timeType:
			ts, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, errs.Invalid(pkg, "%q is not an RFC 3339 time", x)
			}
			return ts, nil
		case t == uuidType:
			id, err := uuid.Parse(x)
			if err != nil {
				return nil, errs.Invalid(pkg, "%q is not a UUID", x)
			}
			return id, nil
		case t.Kind() == reflect.String:
			return rv.Convert(t).Interface(), nil
		}
	case int64:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Float32, reflect.Float64:
			return rv.Convert(t).Interface(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if x < 0 {
				return nil, errs.Invalid(pkg, "%d is not a valid %s", x, t)
			}
			return rv.Convert(t).Interface(), nil
		}
	case float64:
		switch t.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Convert(t).Interface(), nil
		}
	case bool:
		if t.Kind() == reflect.Bool {
			return rv.Convert(t).Interface(), nil
		}
	}
	return nil, errs.Invalid(pkg, "literal %v cannot be compared with %s", lit, t)
}

// unify lifts both operands to *V when their types differ only in
// nullability.
func unify(l, r expr.Expression) (expr.Expression, expr.Expression, error) {
	if l.Type() == r.Type() {
		return l, r, nil
	}
	lb, _ := typeutil.StripNullable(l.Type())
	rb, _ := typeutil.StripNullable(r.Type())
	if lb != rb {
		return nil, nil, errs.Invalid(pkg, "cannot compare %s with %s", l.Type(), r.Type())
	}
	lifted, err := typeutil.WrapNullable(lb)
	if err != nil {
		return nil, nil, err
	}
	if l.Type() != lifted {
		if l, err = expr.Convert(l, lifted); err != nil {
			return nil, nil, err
		}
	}
	if r.Type() != lifted {
		if r, err = expr.Convert(r, lifted); err != nil {
			return nil, nil, err
		}
	}
	return l, r, nil
}
