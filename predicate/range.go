package predicate

import (
	"reflect"
	"time"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

// Range is a filter value bounding a scalar: an entity value v matches when
// (ExactValue is unset or v == ExactValue) and (MaxValue is unset or
// v <= MaxValue) and (MinValue is unset or v >= MinValue).
type Range[T any] struct {
	MinValue   *T `json:"min,omitempty" yaml:"min,omitempty" msgpack:"min,omitempty"`
	MaxValue   *T `json:"max,omitempty" yaml:"max,omitempty" msgpack:"max,omitempty"`
	ExactValue *T `json:"exact,omitempty" yaml:"exact,omitempty" msgpack:"exact,omitempty"`
}

// IsEmpty reports whether no bound is set.
func (r Range[T]) IsEmpty() bool {
	return r.MinValue == nil && r.MaxValue == nil && r.ExactValue == nil
}

// RangeMember names a field of the range shape.
type RangeMember int

const (
	RangeMin RangeMember = iota
	RangeMax
	RangeExact
)

// FieldName returns the Go field name of m.
func (m RangeMember) FieldName() string {
	switch m {
	case RangeMin:
		return "MinValue"
	case RangeMax:
		return "MaxValue"
	default:
		return "ExactValue"
	}
}

func (m RangeMember) String() string { return m.FieldName() }

// RangeForm matches any struct declaring exported MinValue, MaxValue and
// ExactValue fields of one type *V. Range[T] and user-defined structs of the
// same shape qualify; structs embedding one are resolved to it by RangeType.
// Instantiate returns registered Range[T] types only.
var RangeForm = &rangeForm{registry: typeutil.NewGenericForm("Range", 1)}

type rangeForm struct {
	registry *typeutil.GenericForm
}

func (f *rangeForm) Name() string { return "Range" }
func (f *rangeForm) Arity() int   { return 1 }

func (f *rangeForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, nil, false
	}
	var bound reflect.Type
	for _, m := range []RangeMember{RangeMin, RangeMax, RangeExact} {
		sf, ok := t.FieldByName(m.FieldName())
		if !ok || len(sf.Index) != 1 || !sf.IsExported() || !typeutil.IsNullable(sf.Type) {
			return nil, nil, false
		}
		if bound == nil {
			bound = sf.Type
		} else if bound != sf.Type {
			return nil, nil, false
		}
	}
	return t, []reflect.Type{bound.Elem()}, true
}

func (f *rangeForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	return f.registry.Instantiate(args...)
}

// RegisterRange makes Range[T] available through RangeForm.Instantiate.
func RegisterRange[T any]() error {
	return RangeForm.registry.Register(reflect.TypeFor[Range[T]](), reflect.TypeFor[T]())
}

func init() {
	_ = RegisterRange[int]()
	_ = RegisterRange[int8]()
	_ = RegisterRange[int16]()
	_ = RegisterRange[int32]()
	_ = RegisterRange[int64]()
	_ = RegisterRange[uint]()
	_ = RegisterRange[uint8]()
	_ = RegisterRange[uint16]()
	_ = RegisterRange[uint32]()
	_ = RegisterRange[uint64]()
	_ = RegisterRange[float32]()
	_ = RegisterRange[float64]()
	_ = RegisterRange[time.Time]()
	_ = RegisterRange[time.Duration]()
}

// RangeType returns the range shaped type t is or embeds, looking through a
// pointer, and the bound type V. It returns nil when t is not range shaped.
func RangeType(t reflect.Type) (rt reflect.Type, bound reflect.Type, err error) {
	if t == nil {
		return nil, nil, errs.Missing(pkg, "type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	found, err := typeutil.ClosestInheritedForm(t, RangeForm)
	if err != nil || found == nil {
		return nil, nil, err
	}
	_, args, _ := RangeForm.Match(found)
	return found, args[0], nil
}

// RangeField returns the field of range type t for member m.
func RangeField(t reflect.Type, m RangeMember) (reflect.StructField, error) {
	rt, _, err := RangeType(t)
	if err != nil {
		return reflect.StructField{}, err
	}
	if rt == nil {
		return reflect.StructField{}, errs.Invalid(pkg, "%s is not a range", t)
	}
	sf, _ := rt.FieldByName(m.FieldName())
	return sf, nil
}
