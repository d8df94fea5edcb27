package expr

import (
	"reflect"
	"sort"
	"sync"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

// Method is a callable that may appear in a MethodCallExpression.
// Methods are registered values rather than Go methods so that every backend
// (evaluator, SQL encoders, wire codec) can recognize them by name.
type Method struct {
	// Name identifies the method, e.g. "Contains".
	Name string

	// Static is true for methods without a receiver.
	Static bool

	// Receiver is the receiver type of instance methods.
	Receiver reflect.Type

	// In lists the argument types.
	In []reflect.Type

	// Out is the result type.
	Out reflect.Type

	// Invoke evaluates the method. recv is the zero Value for static methods.
	Invoke func(recv reflect.Value, args []reflect.Value) (reflect.Value, error)

	generic  *GenericMethod
	typeArgs []reflect.Type
}

// Generic returns the definition m was instantiated from, or nil.
func (m *Method) Generic() *GenericMethod { return m.generic }

// TypeArgs returns the type arguments m was instantiated with.
func (m *Method) TypeArgs() []reflect.Type { return append([]reflect.Type(nil), m.typeArgs...) }

// GenericMethod is a method definition instantiated per type argument list.
// Instantiations are cached, so the same arguments always yield the same
// *Method.
type GenericMethod struct {
	Name   string
	Arity  int
	Static bool

	build func(args []reflect.Type) (*Method, error)

	mu    sync.Mutex
	cache map[[maxTypeArgs]reflect.Type]*Method
}

const maxTypeArgs = 4

// NewGenericMethod defines a generic method. build receives exactly arity
// type arguments and returns the instantiated method.
func NewGenericMethod(name string, arity int, static bool, build func(args []reflect.Type) (*Method, error)) *GenericMethod {
	return &GenericMethod{
		Name:   name,
		Arity:  arity,
		Static: static,
		build:  build,
		cache:  make(map[[maxTypeArgs]reflect.Type]*Method),
	}
}

// Instantiate returns the method for args.
func (g *GenericMethod) Instantiate(args ...reflect.Type) (*Method, error) {
	if len(args) != g.Arity || g.Arity > maxTypeArgs {
		return nil, errs.Invalid(pkg, "%s expects %d type arguments, got %d", g.Name, g.Arity, len(args))
	}
	var key [maxTypeArgs]reflect.Type
	for i, a := range args {
		if a == nil {
			return nil, errs.Missing(pkg, "type argument of "+g.Name)
		}
		key[i] = a
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.cache[key]; ok {
		return m, nil
	}
	m, err := g.build(args)
	if err != nil {
		return nil, err
	}
	m.generic = g
	m.typeArgs = append([]reflect.Type(nil), args...)
	m.Static = g.Static
	if m.Name == "" {
		m.Name = g.Name
	}
	g.cache[key] = m
	return m, nil
}

var (
	methodsMu sync.RWMutex
	methods   = make(map[string]*GenericMethod)
)

// RegisterMethod makes g discoverable by name, e.g. for decoding.
func RegisterMethod(g *GenericMethod) error {
	if g == nil {
		return errs.Missing(pkg, "method")
	}
	methodsMu.Lock()
	defer methodsMu.Unlock()
	if existing, ok := methods[g.Name]; ok && existing != g {
		return errs.Invalid(pkg, "method %s is already registered", g.Name)
	}
	methods[g.Name] = g
	return nil
}

// LookupMethod returns the registered generic method with the given name.
func LookupMethod(name string) (*GenericMethod, bool) {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	g, ok := methods[name]
	return g, ok
}

// MethodNames lists registered method names in sorted order.
func MethodNames() []string {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Built-in methods.
var (
	// Contains is the instance method coll.Contains(item) for a slice type
	// coll. It is instantiated with the slice type.
	Contains = NewGenericMethod("Contains", 1, false, buildContains)

	// Any is the static quantifier Any(source, pred) for an enumerable
	// source. It is instantiated with the source type.
	Any = NewGenericMethod("Any", 1, true, buildAny)
)

func init() {
	_ = RegisterMethod(Contains)
	_ = RegisterMethod(Any)
}

func buildContains(args []reflect.Type) (*Method, error) {
	coll := args[0]
	item, _ := typeutil.ItemTypeIfCollection(coll)
	if item == nil {
		return nil, errs.Invalid(pkg, "Contains requires a slice type, got %s", coll)
	}
	return &Method{
		Receiver: coll,
		In:       []reflect.Type{item},
		Out:      boolType,
		Invoke: func(recv reflect.Value, args []reflect.Value) (reflect.Value, error) {
			if isNullValue(recv) {
				return reflect.ValueOf(false), nil
			}
			for i := range recv.Len() {
				eq, err := valuesEqual(recv.Index(i), args[0])
				if err != nil {
					return reflect.Value{}, err
				}
				if eq {
					return reflect.ValueOf(true), nil
				}
			}
			return reflect.ValueOf(false), nil
		},
	}, nil
}

func buildAny(args []reflect.Type) (*Method, error) {
	source := args[0]
	item, _ := typeutil.ItemTypeIfEnumerable(source)
	if item == nil {
		return nil, errs.Invalid(pkg, "Any requires an enumerable type, got %s", source)
	}
	pred := reflect.FuncOf([]reflect.Type{item}, []reflect.Type{boolType}, false)
	return &Method{
		In:  []reflect.Type{source, pred},
		Out: boolType,
		Invoke: func(_ reflect.Value, args []reflect.Value) (reflect.Value, error) {
			fn, ok := args[1].Interface().(Closure)
			if !ok {
				return reflect.Value{}, errs.Invalid(pkg, "Any expects a lambda predicate")
			}
			found := false
			err := each(args[0], func(v reflect.Value) (bool, error) {
				res, err := fn(v)
				if err != nil {
					return false, err
				}
				if truthy(res) {
					found = true
					return false, nil
				}
				return true, nil
			})
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(found), nil
		},
	}, nil
}

// each iterates a slice or iter.Seq value until fn returns false.
func each(source reflect.Value, fn func(reflect.Value) (bool, error)) error {
	if isNullValue(source) {
		return nil
	}
	if source.Kind() == reflect.Slice {
		for i := range source.Len() {
			cont, err := fn(source.Index(i))
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	}

	var inner error
	yieldType := source.Type().In(0)
	yield := reflect.MakeFunc(yieldType, func(in []reflect.Value) []reflect.Value {
		cont, err := fn(in[0])
		if err != nil {
			inner = err
			cont = false
		}
		return []reflect.Value{reflect.ValueOf(cont)}
	})
	source.Call([]reflect.Value{yield})
	return inner
}
