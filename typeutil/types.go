// Package typeutil provides reflection helpers used while pairing filter and
// entity types: enumerable/collection detection, nullable normalization and
// form (open generic shape) matching.
//
// Go has no runtime nullable wrapper, so the nullable form of a value type V
// is *V. Value types are booleans, numbers, strings, structs and arrays.
package typeutil

import (
	"reflect"

	"github.com/hugr-lab/autofilter-go/errs"
)

const pkg = "typeutil"

// ItemTypeIfEnumerable returns the element type of t when t can be iterated
// item by item: a slice or an iter.Seq shaped function.
// It returns nil for any other type. Strings and []byte are treated as
// scalars, and arrays are values (uuid.UUID stays a scalar).
func ItemTypeIfEnumerable(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if item := sliceItem(t); item != nil {
		return item, nil
	}
	return seqItem(t), nil
}

// ItemTypeIfCollection is like ItemTypeIfEnumerable but only accepts types
// that can also be tested for containment (slices).
func ItemTypeIfCollection(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	return sliceItem(t), nil
}

func sliceItem(t reflect.Type) reflect.Type {
	if t.Kind() != reflect.Slice || t.Elem().Kind() == reflect.Uint8 {
		return nil
	}
	return t.Elem()
}

// seqItem matches func(yield func(T) bool).
func seqItem(t reflect.Type) reflect.Type {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 || t.IsVariadic() {
		return nil
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 {
		return nil
	}
	if yield.Out(0).Kind() != reflect.Bool {
		return nil
	}
	return yield.In(0)
}

// SeqOf returns the iter.Seq[T] function type for item.
func SeqOf(item reflect.Type) reflect.Type {
	yield := reflect.FuncOf([]reflect.Type{item}, []reflect.Type{reflect.TypeFor[bool]()}, false)
	return reflect.FuncOf([]reflect.Type{yield}, nil, false)
}

// IsValueType reports whether values of t are copied on assignment and have
// no nil state.
func IsValueType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.Struct, reflect.Array:
		return true
	}
	return false
}

// IsNullable reports whether t is the nullable form (*V) of a value type.
func IsNullable(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && IsValueType(t.Elem())
}

// StripNullable returns V for *V. Any other type is returned unchanged.
func StripNullable(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if IsNullable(t) {
		return t.Elem(), nil
	}
	return t, nil
}

// WrapNullable returns *V for a value type V. Types that are already
// nullable are returned unchanged.
func WrapNullable(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if IsNullable(t) {
		return t, nil
	}
	if !IsValueType(t) {
		return nil, errs.Invalid(pkg, "%s is not a value type", t)
	}
	return reflect.PointerTo(t), nil
}

// IsNillable reports whether a value of type t can be nil.
func IsNillable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
