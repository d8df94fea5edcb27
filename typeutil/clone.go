package typeutil

import "reflect"

// Clone returns a deep copy of v. Pointers, slices, arrays, map values,
// interfaces and the exported fields of structs are copied recursively.
// Functions, channels, map keys and unexported struct fields are shared with
// v. Pointers shared within v stay shared in the copy.
func Clone(v any) any {
	if v == nil {
		return nil
	}
	c := cloner{seen: make(map[pointerKey]reflect.Value)}
	return c.clone(reflect.ValueOf(v)).Interface()
}

type cloner struct {
	seen map[pointerKey]reflect.Value
}

// pointerKey includes the type since a struct and its first field share an
// address.
type pointerKey struct {
	addr uintptr
	typ  reflect.Type
}

func (c *cloner) clone(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		key := pointerKey{addr: v.Pointer(), typ: v.Type()}
		if p, ok := c.seen[key]; ok {
			return p
		}
		p := reflect.New(v.Type().Elem())
		c.seen[key] = p
		p.Elem().Set(c.clone(v.Elem()))
		return p
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(c.clone(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(c.clone(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			out.Index(i).Set(c.clone(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if out.Field(i).CanSet() {
				out.Field(i).Set(c.clone(v.Field(i)))
			}
		}
		return out
	}
	return v
}
