package predicate

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

const pkg = "predicate"

// Provider decides whether a predicate can be synthesized for a filter
// value type and an entity value type, and builds it.
//
// Build returns a two-parameter lambda (filterValue, entityValue) => bool
// whose parameter types are exactly the requested types. Build fails with
// errs.ErrInvalidOperation whenever CanBuild reports false for the same
// arguments.
type Provider interface {
	CanBuild(filterType, entityType reflect.Type, c Comparison) (bool, error)
	Build(filterType, entityType reflect.Type, c Comparison) (*expr.LambdaExpression, error)
}

// CanBuildFor is CanBuild for static types.
func CanBuildFor[F, E any](p Provider, c Comparison) (bool, error) {
	return p.CanBuild(reflect.TypeFor[F](), reflect.TypeFor[E](), c)
}

// BuildFor is Build for static types.
func BuildFor[F, E any](p Provider, c Comparison) (*expr.LambdaExpression, error) {
	return p.Build(reflect.TypeFor[F](), reflect.TypeFor[E](), c)
}

// Option configures an ExpressionProvider.
type Option func(*ExpressionProvider)

// WithComparableType admits t as a scalar. ordered enables the relational
// comparisons in addition to Equal; ordered types need a Cmp(T) int method
// or a numeric, string or time kind to be evaluated in memory.
func WithComparableType(t reflect.Type, ordered bool) Option {
	return func(p *ExpressionProvider) {
		if t != nil {
			p.extra[t] = ordered
		}
	}
}

// ExpressionProvider is the default Provider. It compares scalars directly,
// tests containment for slice filters, expands range filters and
// quantifies over enumerable entity values.
type ExpressionProvider struct {
	extra map[reflect.Type]bool
}

var _ Provider = (*ExpressionProvider)(nil)

// NewProvider creates an ExpressionProvider. uuid.UUID is admitted as an
// equality-only scalar.
func NewProvider(opts ...Option) *ExpressionProvider {
	p := &ExpressionProvider{extra: map[reflect.Type]bool{
		reflect.TypeFor[uuid.UUID](): false,
	}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanBuild reports whether Build would succeed.
func (p *ExpressionProvider) CanBuild(filterType, entityType reflect.Type, c Comparison) (bool, error) {
	if filterType == nil {
		return false, errs.Missing(pkg, "filter type")
	}
	if entityType == nil {
		return false, errs.Missing(pkg, "entity type")
	}
	if !c.Valid() {
		return false, errs.Invalid(pkg, "unsupported comparison %s", c)
	}

	entityItem, _ := typeutil.ItemTypeIfEnumerable(entityType)
	if entityItem == nil {
		entityItem = entityType
	}

	filterItem, _ := typeutil.ItemTypeIfCollection(filterType)
	if filterItem != nil {
		if c != Equal {
			return false, nil
		}
		return p.canCompareDirectly(filterItem, entityItem, c), nil
	}

	if _, bound, _ := RangeType(filterType); bound != nil {
		// every kind expands to the same compound, which needs ordering
		return p.canCompareDirectly(bound, entityItem, GreaterThanOrEqual), nil
	}
	return p.canCompareDirectly(filterType, entityItem, c), nil
}

// Build synthesizes the predicate lambda (f, e) => bool.
func (p *ExpressionProvider) Build(filterType, entityType reflect.Type, c Comparison) (*expr.LambdaExpression, error) {
	ok, err := p.CanBuild(filterType, entityType, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Operation(pkg, "cannot build %s predicate between %s and %s", c, filterType, entityType)
	}

	f, err := expr.Parameter(filterType, "f")
	if err != nil {
		return nil, err
	}
	e, err := expr.Parameter(entityType, "e")
	if err != nil {
		return nil, err
	}
	body, err := p.buildBody(f, e, c)
	if err != nil {
		return nil, fmt.Errorf("predicate: build %s between %s and %s: %w", c, filterType, entityType, err)
	}
	return expr.Lambda(body, f, e)
}

func (p *ExpressionProvider) buildBody(f, e expr.Expression, c Comparison) (expr.Expression, error) {
	item, _ := typeutil.ItemTypeIfEnumerable(e.Type())
	if item == nil {
		return p.buildItem(f, e, c)
	}

	x, err := expr.Parameter(item, "x")
	if err != nil {
		return nil, err
	}
	inner, err := p.buildItem(f, x, c)
	if err != nil {
		return nil, err
	}
	pred, err := expr.Lambda(inner, x)
	if err != nil {
		return nil, err
	}
	anyMethod, err := expr.Any.Instantiate(e.Type())
	if err != nil {
		return nil, err
	}
	return expr.Call(nil, anyMethod, e, pred)
}

func (p *ExpressionProvider) buildItem(f, e expr.Expression, c Comparison) (expr.Expression, error) {
	if elem, _ := typeutil.ItemTypeIfCollection(f.Type()); elem != nil {
		return p.buildContains(f, e, elem)
	}
	if rt, _, _ := RangeType(f.Type()); rt != nil {
		return p.buildRange(f, e)
	}
	return p.buildScalar(f, e, c)
}

// buildScalar compares two scalars, lifting both to *V when either is
// nullable.
func (p *ExpressionProvider) buildScalar(f, e expr.Expression, c Comparison) (expr.Expression, error) {
	if f.Type() == e.Type() {
		return expr.MakeBinary(c.NodeType(), f, e)
	}
	base, err := typeutil.StripNullable(f.Type())
	if err != nil {
		return nil, err
	}
	lifted, err := typeutil.WrapNullable(base)
	if err != nil {
		return nil, err
	}
	lf, err := liftTo(f, lifted)
	if err != nil {
		return nil, err
	}
	le, err := liftTo(e, lifted)
	if err != nil {
		return nil, err
	}
	return expr.MakeBinary(c.NodeType(), lf, le)
}

func liftTo(e expr.Expression, t reflect.Type) (expr.Expression, error) {
	if e.Type() == t {
		return e, nil
	}
	return expr.Convert(e, t)
}

// buildContains tests membership of the entity value in the filter slice.
// A nullable entity value is checked for null before it is unwrapped.
func (p *ExpressionProvider) buildContains(f, e expr.Expression, elem reflect.Type) (expr.Expression, error) {
	contains, err := expr.Contains.Instantiate(f.Type())
	if err != nil {
		return nil, err
	}
	switch {
	case e.Type() == elem:
		return expr.Call(f, contains, e)
	case typeutil.IsNullable(e.Type()) && e.Type().Elem() == elem:
		isNull, err := expr.IsNull(e)
		if err != nil {
			return nil, err
		}
		notNull, err := expr.Not(isNull)
		if err != nil {
			return nil, err
		}
		value, err := expr.Convert(e, elem)
		if err != nil {
			return nil, err
		}
		call, err := expr.Call(f, contains, value)
		if err != nil {
			return nil, err
		}
		return expr.AndAlso(notNull, call)
	}
	value, err := liftTo(e, elem)
	if err != nil {
		return nil, err
	}
	return expr.Call(f, contains, value)
}

// buildRange expands a range filter into
// (Exact unset || Exact == v) && (Max unset || Max >= v) && (Min unset || Min <= v).
func (p *ExpressionProvider) buildRange(f, e expr.Expression) (expr.Expression, error) {
	exact, err := p.rangeTerm(f, e, RangeExact, Equal)
	if err != nil {
		return nil, err
	}
	upper, err := p.rangeTerm(f, e, RangeMax, GreaterThanOrEqual)
	if err != nil {
		return nil, err
	}
	lower, err := p.rangeTerm(f, e, RangeMin, LessThanOrEqual)
	if err != nil {
		return nil, err
	}
	bounds, err := expr.AndAlso(upper, lower)
	if err != nil {
		return nil, err
	}
	return expr.AndAlso(exact, bounds)
}

func (p *ExpressionProvider) rangeTerm(f, e expr.Expression, m RangeMember, c Comparison) (expr.Expression, error) {
	bound, err := expr.Field(f, m.FieldName())
	if err != nil {
		return nil, err
	}
	if !p.canCompareDirectly(bound.Type(), e.Type(), c) {
		return nil, errs.Operation(pkg, "cannot compare %s with %s", bound.Type(), e.Type())
	}
	cmp, err := p.buildScalar(bound, e, c)
	if err != nil {
		return nil, err
	}
	unset, err := expr.IsNull(bound)
	if err != nil {
		return nil, err
	}
	return expr.OrElse(unset, cmp)
}

type scalarClass int

const (
	unsupported scalarClass = iota
	equality
	ordered
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

// canCompareDirectly checks the scalar rules: identical nullable-stripped
// types of a supported class, with ordering restricted to ordered classes.
func (p *ExpressionProvider) canCompareDirectly(a, b reflect.Type, c Comparison) bool {
	a, _ = typeutil.StripNullable(a)
	b, _ = typeutil.StripNullable(b)
	if a != b {
		return false
	}
	switch p.classify(a) {
	case ordered:
		return true
	case equality:
		return c == Equal
	}
	return false
}

func (p *ExpressionProvider) classify(t reflect.Type) scalarClass {
	if isOrdered, ok := p.extra[t]; ok {
		if isOrdered {
			return ordered
		}
		return equality
	}
	if t == timeType || t == durationType {
		return ordered
	}
	if IsEnum(t) {
		return equality
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String:
		return equality
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return ordered
	case reflect.Struct, reflect.Array:
		if IsDecimal(t) {
			return ordered
		}
	}
	return unsupported
}

// IsEnum reports whether t is an enumeration: a named integer or string type
// with a String method.
func IsEnum(t reflect.Type) bool {
	if t == nil || t.PkgPath() == "" || t == durationType {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String:
		return t.Implements(stringerType)
	}
	return false
}

// IsDecimal reports whether t is a value type with a method Cmp(t) int, the
// shape of arbitrary precision decimal types.
func IsDecimal(t reflect.Type) bool {
	if t == nil || t.Kind() == reflect.Pointer {
		return false
	}
	m, ok := t.MethodByName("Cmp")
	if !ok {
		return false
	}
	// method type includes the receiver
	mt := m.Type
	if mt.NumIn() != 2 || mt.In(1) != t || mt.NumOut() != 1 {
		return false
	}
	switch mt.Out(0).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}
