package typeutil

import (
	"reflect"
	"strings"
	"sync"

	"github.com/hugr-lab/autofilter-go/errs"
)

// Form describes a family of types, the runtime counterpart of an open
// generic definition. A closed type is a form of arity 0.
type Form interface {
	// Name returns a display name, e.g. "Nullable" or "Range".
	Name() string

	// Arity returns the number of type arguments of the form.
	Arity() int

	// Match reports whether t belongs to the form. matched is the type that
	// satisfied the form (t itself, or an interface t implements) and args
	// are its type arguments.
	Match(t reflect.Type) (matched reflect.Type, args []reflect.Type, ok bool)

	// Instantiate returns the member of the form for the given arguments.
	Instantiate(args ...reflect.Type) (reflect.Type, error)
}

// Built-in forms.
var (
	// NullableForm matches *V for value types V.
	NullableForm Form = nullableForm{}

	// EnumerableForm matches slices and iter.Seq functions.
	EnumerableForm Form = enumerableForm{}

	// CollectionForm matches slices.
	CollectionForm Form = collectionForm{}
)

type nullableForm struct{}

func (nullableForm) Name() string { return "Nullable" }
func (nullableForm) Arity() int   { return 1 }

func (nullableForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	if !IsNullable(t) {
		return nil, nil, false
	}
	return t, []reflect.Type{t.Elem()}, true
}

func (f nullableForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	if err := checkArgs(f, args); err != nil {
		return nil, err
	}
	if IsNullable(args[0]) {
		return nil, errs.Invalid(pkg, "%s is already nullable", args[0])
	}
	return WrapNullable(args[0])
}

type enumerableForm struct{}

func (enumerableForm) Name() string { return "Enumerable" }
func (enumerableForm) Arity() int   { return 1 }

func (enumerableForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	if t == nil {
		return nil, nil, false
	}
	item, _ := ItemTypeIfEnumerable(t)
	if item == nil {
		return nil, nil, false
	}
	return t, []reflect.Type{item}, true
}

func (f enumerableForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	if err := checkArgs(f, args); err != nil {
		return nil, err
	}
	return SeqOf(args[0]), nil
}

type collectionForm struct{}

func (collectionForm) Name() string { return "Collection" }
func (collectionForm) Arity() int   { return 1 }

func (collectionForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	if t == nil {
		return nil, nil, false
	}
	item, _ := ItemTypeIfCollection(t)
	if item == nil {
		return nil, nil, false
	}
	return t, []reflect.Type{item}, true
}

func (f collectionForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	if err := checkArgs(f, args); err != nil {
		return nil, err
	}
	return reflect.SliceOf(args[0]), nil
}

// Closed returns the arity-0 form made of t alone. When t is an interface
// type, every type implementing it matches and the interface is reported as
// the matched type.
func Closed(t reflect.Type) Form {
	return closedForm{t: t}
}

type closedForm struct {
	t reflect.Type
}

func (f closedForm) Name() string { return f.t.String() }
func (f closedForm) Arity() int   { return 0 }

func (f closedForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	if t == nil {
		return nil, nil, false
	}
	if t == f.t {
		return t, nil, true
	}
	if f.t.Kind() == reflect.Interface && t.Implements(f.t) {
		return f.t, nil, true
	}
	return nil, nil, false
}

func (f closedForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	if len(args) != 0 {
		return nil, errs.Invalid(pkg, "%s is not generic", f.t)
	}
	return f.t, nil
}

// GenericForm is a form whose members are registered explicitly, one per
// instantiation. Go generic types cannot be enumerated through reflection,
// so each instantiation used at runtime has to be registered.
type GenericForm struct {
	name  string
	arity int

	mu        sync.RWMutex
	instances []instance
}

type instance struct {
	t    reflect.Type
	args []reflect.Type
}

// NewGenericForm creates an empty registry-backed form.
func NewGenericForm(name string, arity int) *GenericForm {
	return &GenericForm{name: name, arity: arity}
}

func (f *GenericForm) Name() string { return f.name }
func (f *GenericForm) Arity() int   { return f.arity }

// Register records t as the instantiation of the form for args.
// Registering the same instantiation twice is a no-op.
func (f *GenericForm) Register(t reflect.Type, args ...reflect.Type) error {
	if t == nil {
		return errs.Missing(pkg, "type")
	}
	if err := checkArgs(f, args); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.instances {
		if in.t == t {
			return nil
		}
		if sameTypes(in.args, args) {
			return errs.Invalid(pkg, "%s[%s] is already registered as %s", f.name, typeList(args), in.t)
		}
	}
	f.instances = append(f.instances, instance{t: t, args: append([]reflect.Type(nil), args...)})
	return nil
}

func (f *GenericForm) Match(t reflect.Type) (reflect.Type, []reflect.Type, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, in := range f.instances {
		if in.t == t {
			return t, append([]reflect.Type(nil), in.args...), true
		}
	}
	return nil, nil, false
}

func (f *GenericForm) Instantiate(args ...reflect.Type) (reflect.Type, error) {
	if err := checkArgs(f, args); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, in := range f.instances {
		if sameTypes(in.args, args) {
			return in.t, nil
		}
	}
	return nil, errs.Invalid(pkg, "%s[%s] is not registered", f.name, typeList(args))
}

// ClosestInheritedForm finds the closest type related to t that belongs to
// base. The search order is t itself, the interfaces t implements (for
// interface forms), then embedded fields depth-first in declaration order.
// It returns nil when nothing matches.
func ClosestInheritedForm(t reflect.Type, base Form) (reflect.Type, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if base == nil {
		return nil, errs.Missing(pkg, "base form")
	}
	seen := make(map[reflect.Type]bool)
	return closest(t, base, seen), nil
}

func closest(t reflect.Type, base Form, seen map[reflect.Type]bool) reflect.Type {
	if seen[t] {
		return nil
	}
	seen[t] = true

	if matched, _, ok := base.Match(t); ok {
		return matched
	}

	s := t
	if s.Kind() == reflect.Pointer {
		s = s.Elem()
	}
	if s.Kind() != reflect.Struct {
		return nil
	}
	for i := range s.NumField() {
		f := s.Field(i)
		if !f.Anonymous {
			continue
		}
		if found := closest(f.Type, base, seen); found != nil {
			return found
		}
	}
	return nil
}

// IsSubtypeOf reports whether ClosestInheritedForm finds a match.
func IsSubtypeOf(t reflect.Type, base Form) (bool, error) {
	found, err := ClosestInheritedForm(t, base)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// FormArgs returns the type arguments of the closest member of base related to t.
func FormArgs(t reflect.Type, base Form) ([]reflect.Type, error) {
	found, err := ClosestInheritedForm(t, base)
	if err != nil || found == nil {
		return nil, err
	}
	_, args, _ := base.Match(found)
	return args, nil
}

func checkArgs(f Form, args []reflect.Type) error {
	if f.Arity() == 0 && len(args) > 0 {
		return errs.Invalid(pkg, "%s is not generic", f.Name())
	}
	if len(args) != f.Arity() {
		return errs.Invalid(pkg, "%s expects %d type arguments, got %d", f.Name(), f.Arity(), len(args))
	}
	for _, a := range args {
		if a == nil {
			return errs.Missing(pkg, "type argument")
		}
	}
	return nil
}

func sameTypes(a, b []reflect.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeList(args []reflect.Type) string {
	names := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			names[i] = "<nil>"
			continue
		}
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}
