// Package rowscan assigns driver values to entity fields by reflection. It
// is shared by the handlers whose drivers return loosely typed values, such
// as DuckDB lists and Arrow arrays.
package rowscan

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/hugr-lab/autofilter-go/encode"
)

// Assign stores v into dst, allocating pointers and converting between
// numeric kinds and named types. A nil v stores the zero value.
func Assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := Assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	src := reflect.ValueOf(v)
	if src.Type() != dst.Type() && dst.CanAddr() {
		if sc, ok := dst.Addr().Interface().(sql.Scanner); ok {
			return sc.Scan(v)
		}
	}
	if dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() != reflect.Uint8 {
		return assignSlice(dst, src)
	}
	if !convertible(src.Type(), dst.Type()) {
		return fmt.Errorf("rowscan: cannot assign %s to %s", src.Type(), dst.Type())
	}
	dst.Set(src.Convert(dst.Type()))
	return nil
}

func assignSlice(dst, src reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return fmt.Errorf("rowscan: cannot assign %s to %s", src.Type(), dst.Type())
	}
	out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := range src.Len() {
		item := src.Index(i)
		var v any
		if item.Kind() != reflect.Interface || !item.IsNil() {
			v = item.Interface()
		}
		if err := Assign(out.Index(i), v); err != nil {
			return fmt.Errorf("rowscan: item %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

// convertible allows conversions that keep the value's meaning: within
// the numeric kinds, between string kinds and to identical underlying
// types. Integer to string conversion is rejected.
func convertible(from, to reflect.Type) bool {
	if from == to {
		return true
	}
	switch {
	case isNumeric(from.Kind()) && isNumeric(to.Kind()):
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.String:
		return true
	case from.Kind() == reflect.String:
		return isBytes(to)
	case to.Kind() == reflect.String:
		return isBytes(from)
	}
	return from.ConvertibleTo(to) && from.Kind() != reflect.Struct
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Scanner adapts Assign to sql.Scanner for one destination field.
type Scanner struct {
	Dst reflect.Value
}

func (s Scanner) Scan(src any) error {
	return Assign(s.Dst, src)
}

// Targets returns Scan destinations for the columns of row, which must be
// a pointer to the entity the columns were derived from. Fields whose type
// the driver cannot fill directly are wrapped in a Scanner.
func Targets(row reflect.Value, cols []encode.Column, direct func(reflect.Type) bool) []any {
	v := row.Elem()
	out := make([]any, len(cols))
	for i, c := range cols {
		f := v.FieldByIndex(c.Field.Index)
		if direct != nil && direct(f.Type()) {
			out[i] = f.Addr().Interface()
			continue
		}
		out[i] = Scanner{Dst: f}
	}
	return out
}
