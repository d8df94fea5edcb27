package autofilter

import (
	"reflect"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/internal/recovery"
	"github.com/hugr-lab/autofilter-go/predicate"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

// PropertyMap links one filter property to one entity property through a
// predicate template (filterValue, entityValue) => bool.
//
// A map with a nil predicate contributes nothing to built expressions.
// Null or empty filter values are skipped unless WhenNull().FilterByNull()
// is set, in which case they match entities whose property is null.
type PropertyMap[F, E any] struct {
	owner *Builder[F, E]
	key   string

	filterAccessor *expr.LambdaExpression
	entityAccessor *expr.LambdaExpression
	read           expr.Func

	pred             *expr.LambdaExpression
	comparison       predicate.Comparison
	ignoreNullValues bool
}

func newPropertyMap[F, E any](owner *Builder[F, E], key string, f, e *expr.LambdaExpression) (*PropertyMap[F, E], error) {
	m := &PropertyMap[F, E]{owner: owner, key: key, ignoreNullValues: true}
	if err := m.SetFilterAccessor(f); err != nil {
		return nil, err
	}
	if err := m.SetEntityAccessor(e); err != nil {
		return nil, err
	}
	return m, nil
}

// Key returns the canonical filter property path, e.g. "Address.City".
func (m *PropertyMap[F, E]) Key() string { return m.key }

// FilterAccessor returns the lambda reading the filter property.
func (m *PropertyMap[F, E]) FilterAccessor() *expr.LambdaExpression { return m.filterAccessor }

// EntityAccessor returns the lambda reading the entity property.
func (m *PropertyMap[F, E]) EntityAccessor() *expr.LambdaExpression { return m.entityAccessor }

// Predicate returns the predicate template, or nil.
func (m *PropertyMap[F, E]) Predicate() *expr.LambdaExpression { return m.pred }

// Comparison returns the comparison the predicate was synthesized with.
func (m *PropertyMap[F, E]) Comparison() predicate.Comparison { return m.comparison }

// IgnoresNullValues reports whether null or empty filter values are skipped.
func (m *PropertyMap[F, E]) IgnoresNullValues() bool { return m.ignoreNullValues }

// SetFilterAccessor replaces the filter accessor. It must be a direct
// member access over F.
func (m *PropertyMap[F, E]) SetFilterAccessor(l *expr.LambdaExpression) error {
	if err := validateAccessor[F](l, "filter accessor"); err != nil {
		return err
	}
	read, err := expr.Compile(l)
	if err != nil {
		return err
	}
	m.filterAccessor, m.read = l, read
	return nil
}

// SetEntityAccessor replaces the entity accessor. It must be a direct
// member access over E.
func (m *PropertyMap[F, E]) SetEntityAccessor(l *expr.LambdaExpression) error {
	if err := validateAccessor[E](l, "entity accessor"); err != nil {
		return err
	}
	m.entityAccessor = l
	return nil
}

func validateAccessor[T any](l *expr.LambdaExpression, name string) error {
	if l == nil {
		return errs.Missing(pkg, name)
	}
	if l.NumParameters() != 1 || l.Parameter(0).Type() != reflect.TypeFor[T]() {
		return errs.Invalid(pkg, "%s must take a single %s: %s", name, reflect.TypeFor[T](), l)
	}
	if !expr.IsMemberAccess(l) {
		return errs.Invalid(pkg, "%s must be a direct member access: %s", name, l)
	}
	return nil
}

// UsePredicate sets the predicate template. It must take the filter
// property type and the entity property type, in that order, and return
// bool. A nil template disables the map.
func (m *PropertyMap[F, E]) UsePredicate(l *expr.LambdaExpression) error {
	if l == nil {
		m.pred = nil
		return nil
	}
	ft, et := m.filterAccessor.Body().Type(), m.entityAccessor.Body().Type()
	if l.NumParameters() != 2 {
		return errs.Invalid(pkg, "predicate must take 2 parameters, got %d", l.NumParameters())
	}
	if l.Parameter(0).Type() != ft || l.Parameter(1).Type() != et {
		return errs.Invalid(pkg, "predicate must take (%s, %s), got (%s, %s)",
			ft, et, l.Parameter(0).Type(), l.Parameter(1).Type())
	}
	if l.Body().Type() != reflect.TypeFor[bool]() {
		return errs.Invalid(pkg, "predicate must return bool, got %s", l.Body().Type())
	}
	m.pred = l
	return nil
}

// Ignore clears the predicate so the property never contributes.
func (m *PropertyMap[F, E]) Ignore() {
	m.pred = nil
}

// WhenNull selects what a null or empty filter value means.
func (m *PropertyMap[F, E]) WhenNull() *NullPolicy[F, E] {
	return &NullPolicy[F, E]{m: m}
}

// Map delegates to the owning builder.
func (m *PropertyMap[F, E]) Map(f, e *expr.LambdaExpression) (*PropertyMap[F, E], error) {
	return m.owner.Map(f, e)
}

// MapComparison delegates to the owning builder.
func (m *PropertyMap[F, E]) MapComparison(f, e *expr.LambdaExpression, c predicate.Comparison) (*PropertyMap[F, E], error) {
	return m.owner.MapComparison(f, e, c)
}

// IgnoreFilter delegates to the owning builder, ignoring another filter
// property.
func (m *PropertyMap[F, E]) IgnoreFilter(f *expr.LambdaExpression) error {
	return m.owner.Ignore(f)
}

// Builder returns the owning builder.
func (m *PropertyMap[F, E]) Builder() *Builder[F, E] { return m.owner }

// CanBuildConditionExpression reports whether BuildConditionExpression would
// produce a condition for filter.
func (m *PropertyMap[F, E]) CanBuildConditionExpression(filter *F) bool {
	v, err := m.readValue(filter)
	return err == nil && m.canBuild(v)
}

// BuildConditionExpression binds the filter property value into the
// predicate and closes it over the entity accessor, giving e => bool.
func (m *PropertyMap[F, E]) BuildConditionExpression(filter *F) (*expr.LambdaExpression, error) {
	if filter == nil {
		return nil, errs.Missing(pkg, "filter")
	}
	v, err := m.readValue(filter)
	if err != nil {
		return nil, err
	}
	if !m.canBuild(v) {
		return nil, errs.Operation(pkg, "cannot build a condition for %s", m.key)
	}
	return m.buildCondition(v)
}

func (m *PropertyMap[F, E]) canBuild(v filterValue) bool {
	if !v.valid || m.pred == nil {
		return false
	}
	return !(m.ignoreNullValues && v.empty)
}

type filterValue struct {
	value any
	empty bool
	valid bool
}

// readValue reads the filter property once and snapshots it, so later
// changes to the filter do not reach built conditions. Nil pointers on the
// accessor path read as null.
func (m *PropertyMap[F, E]) readValue(filter *F) (filterValue, error) {
	if filter == nil {
		return filterValue{}, nil
	}
	v, err := m.read(filter)
	if err != nil {
		return filterValue{}, err
	}
	// sequences are user code
	empty, err := recovery.RecoverToValue(m.owner.logger, "read "+m.key, func() (bool, error) {
		return isEmptyValue(v), nil
	})
	if err != nil {
		return filterValue{}, errs.Operation(pkg, "%v", err)
	}
	return filterValue{value: typeutil.Clone(v), empty: empty, valid: true}, nil
}

func (m *PropertyMap[F, E]) buildCondition(v filterValue) (*expr.LambdaExpression, error) {
	entity := m.entityAccessor.Parameter(0)
	if v.empty {
		isNull, err := expr.IsNull(m.entityAccessor.Body())
		if err != nil {
			return nil, err
		}
		return expr.Lambda(isNull, entity)
	}

	value, err := expr.TypedConstant(v.value, m.filterAccessor.Body().Type())
	if err != nil {
		return nil, err
	}
	body, err := expr.Replace(m.pred.Body(), m.pred.Parameter(0), value)
	if err != nil {
		return nil, err
	}
	body, err = expr.Replace(body, m.pred.Parameter(1), m.entityAccessor.Body())
	if err != nil {
		return nil, err
	}
	return expr.Lambda(body, entity)
}

// isEmptyValue reports null, empty slices, maps and sequences, and the empty
// string.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		if rv.Elem().Kind() == reflect.String {
			return rv.Elem().Len() == 0
		}
	case reflect.Slice, reflect.Map, reflect.String:
		return rv.Len() == 0
	case reflect.Func:
		return rv.IsNil() || isEmptySeq(rv)
	}
	return false
}

func isEmptySeq(rv reflect.Value) bool {
	t := rv.Type()
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	empty := true
	yield := reflect.MakeFunc(t.In(0), func([]reflect.Value) []reflect.Value {
		empty = false
		return []reflect.Value{reflect.ValueOf(false)}
	})
	rv.Call([]reflect.Value{yield})
	return empty
}

// NullPolicy configures how a PropertyMap treats null or empty filter
// values.
type NullPolicy[F, E any] struct {
	m *PropertyMap[F, E]
}

// IgnoreProperty skips the property when its filter value is null or
// empty. This is the default.
func (p *NullPolicy[F, E]) IgnoreProperty() *Builder[F, E] {
	p.m.ignoreNullValues = true
	return p.m.owner
}

// FilterByNull matches entities whose property is null when the filter
// value is null or empty. An entity property that cannot hold nil, such as
// a plain string, never matches.
func (p *NullPolicy[F, E]) FilterByNull() *Builder[F, E] {
	p.m.ignoreNullValues = false
	if et := p.m.entityAccessor.Body().Type(); !typeutil.IsNillable(et) {
		p.m.owner.logger.Warn("Null filter on a property that is never null matches nothing",
			"property", p.m.key, "entity_type", et.String())
	}
	return p.m.owner
}
