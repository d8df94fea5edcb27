package wire

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/predicate"
)

// TypeRegistry resolves the type names carried in encoded expressions.
// Pointer and slice types are named by prefixing their element's name with
// "*" or "[]" and need no registration.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

// DefaultRegistry knows the predeclared scalar types, time.Time,
// time.Duration, uuid.UUID and the predicate ranges over them.
var DefaultRegistry = NewTypeRegistry()

// NewTypeRegistry returns a registry preloaded with the default types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{byName: make(map[string]reflect.Type)}
	for _, t := range builtinTypes {
		r.byName[TypeName(t)] = t
	}
	return r
}

var builtinTypes = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[int](),
	reflect.TypeFor[int8](),
	reflect.TypeFor[int16](),
	reflect.TypeFor[int32](),
	reflect.TypeFor[int64](),
	reflect.TypeFor[uint](),
	reflect.TypeFor[uint8](),
	reflect.TypeFor[uint16](),
	reflect.TypeFor[uint32](),
	reflect.TypeFor[uint64](),
	reflect.TypeFor[float32](),
	reflect.TypeFor[float64](),
	reflect.TypeFor[string](),
	reflect.TypeFor[time.Time](),
	reflect.TypeFor[time.Duration](),
	reflect.TypeFor[uuid.UUID](),
	reflect.TypeFor[predicate.Range[int]](),
	reflect.TypeFor[predicate.Range[int32]](),
	reflect.TypeFor[predicate.Range[int64]](),
	reflect.TypeFor[predicate.Range[float32]](),
	reflect.TypeFor[predicate.Range[float64]](),
	reflect.TypeFor[predicate.Range[time.Time]](),
	reflect.TypeFor[predicate.Range[time.Duration]](),
}

// Register adds t under TypeName(t).
func (r *TypeRegistry) Register(t reflect.Type) error {
	if t == nil {
		return errs.Missing(pkg, "type")
	}
	return r.RegisterName(TypeName(t), t)
}

// RegisterName adds t under name. Registering a name twice is allowed only
// for the same type.
func (r *TypeRegistry) RegisterName(name string, t reflect.Type) error {
	if t == nil {
		return errs.Missing(pkg, "type")
	}
	if name == "" || strings.HasPrefix(name, "*") || strings.HasPrefix(name, "[]") {
		return errs.Invalid(pkg, "invalid type name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok && existing != t {
		return errs.Invalid(pkg, "type name %s is already registered for %s", name, existing)
	}
	r.byName[name] = t
	return nil
}

// Register adds T to r.
func Register[T any](r *TypeRegistry) error {
	return r.Register(reflect.TypeFor[T]())
}

// Type resolves name.
func (r *TypeRegistry) Type(name string) (reflect.Type, error) {
	switch {
	case strings.HasPrefix(name, "*"):
		elem, err := r.Type(name[1:])
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(elem), nil
	case strings.HasPrefix(name, "[]"):
		elem, err := r.Type(name[2:])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	if !ok {
		return nil, errs.Invalid(pkg, "unknown type %s", name)
	}
	return t, nil
}

// TypeName returns the name t is encoded under: the element name prefixed
// with "*" or "[]" for pointers and slices, t.String() otherwise.
func TypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		if t.Name() == "" {
			return "[]" + TypeName(t.Elem())
		}
	}
	return t.String()
}
