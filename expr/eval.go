package expr

import (
	"cmp"
	"reflect"
	"strings"
	"time"

	"github.com/hugr-lab/autofilter-go/errs"
)

// Func is a compiled lambda. It returns nil for a null result.
type Func func(args ...any) (any, error)

// Closure is the runtime value of a lambda nested inside a tree, e.g. the
// predicate argument of Any.
type Closure func(args ...reflect.Value) (reflect.Value, error)

type evalFunc func(fr *frame) (reflect.Value, error)

type frame struct {
	params []*ParameterExpression
	values []reflect.Value
	parent *frame
}

func (f *frame) lookup(p *ParameterExpression) (reflect.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		for i, q := range fr.params {
			if q == p {
				return fr.values[i], true
			}
		}
	}
	return reflect.Value{}, false
}

// Compile turns l into a function evaluated against Go values.
func Compile(l *LambdaExpression) (Func, error) {
	if l == nil {
		return nil, errs.Missing(pkg, "lambda")
	}
	body, err := compile(l.body)
	if err != nil {
		return nil, err
	}
	params := l.Parameters()
	return func(args ...any) (any, error) {
		if len(args) != len(params) {
			return nil, errs.Invalid(pkg, "lambda expects %d arguments, got %d", len(params), len(args))
		}
		values := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := argValue(a, params[i].Type())
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		res, err := body(&frame{params: params, values: values})
		if err != nil || isNullValue(res) {
			return nil, err
		}
		return res.Interface(), nil
	}, nil
}

// CompilePredicate compiles a single-parameter bool lambda into a typed
// predicate. T must be the parameter type or a pointer to it.
func CompilePredicate[T any](l *LambdaExpression) (func(T) (bool, error), error) {
	if l == nil {
		return nil, errs.Missing(pkg, "lambda")
	}
	if len(l.params) != 1 || l.body.Type() != boolType {
		return nil, errs.Invalid(pkg, "predicate must take one parameter and return bool: %s", l)
	}
	param := l.params[0]
	t := reflect.TypeFor[T]()
	deref := false
	switch {
	case t == param.Type():
	case t.Kind() == reflect.Pointer && t.Elem() == param.Type():
		deref = true
	default:
		return nil, errs.Invalid(pkg, "predicate over %s cannot accept %s", param.Type(), t)
	}
	body, err := compile(l.body)
	if err != nil {
		return nil, err
	}
	params := []*ParameterExpression{param}
	return func(v T) (bool, error) {
		rv := reflect.ValueOf(&v).Elem()
		if deref {
			if rv.IsNil() {
				return false, errs.Missing(pkg, "predicate argument")
			}
			rv = rv.Elem()
		}
		res, err := body(&frame{params: params, values: []reflect.Value{rv}})
		if err != nil {
			return false, err
		}
		return truthy(res), nil
	}, nil
}

// Evaluate computes the value of a tree that references no unbound
// parameters. It returns nil for a null result.
func Evaluate(e Expression) (any, error) {
	v, err := EvaluateValue(e)
	if err != nil || isNullValue(v) {
		return nil, err
	}
	return v.Interface(), nil
}

// EvaluateValue is Evaluate returning the reflect.Value; the zero Value
// stands for null.
func EvaluateValue(e Expression) (reflect.Value, error) {
	if isNil(e) {
		return reflect.Value{}, errs.Missing(pkg, "expression")
	}
	fn, err := compile(e)
	if err != nil {
		return reflect.Value{}, err
	}
	return fn(&frame{})
}

func argValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type() == t:
		return v, nil
	case v.Type().AssignableTo(t):
		nv := reflect.New(t).Elem()
		nv.Set(v)
		return nv, nil
	case v.Kind() == reflect.Pointer && v.Type().Elem() == t:
		if v.IsNil() {
			return reflect.Value{}, nil
		}
		return v.Elem(), nil
	}
	return reflect.Value{}, errs.Invalid(pkg, "argument of type %s is not a %s", v.Type(), t)
}

func compile(e Expression) (evalFunc, error) {
	switch n := e.(type) {
	case *ConstantExpression:
		v := n.value
		return func(*frame) (reflect.Value, error) { return v, nil }, nil
	case *ParameterExpression:
		return func(fr *frame) (reflect.Value, error) {
			v, ok := fr.lookup(n)
			if !ok {
				return reflect.Value{}, errs.Invalid(pkg, "parameter %s is not bound", n)
			}
			return v, nil
		}, nil
	case *MemberExpression:
		return compileMember(n)
	case *UnaryExpression:
		return compileUnary(n)
	case *BinaryExpression:
		return compileBinary(n)
	case *MethodCallExpression:
		return compileCall(n)
	case *LambdaExpression:
		return compileLambda(n)
	case *ConditionalExpression:
		return compileConditional(n)
	case *InvocationExpression:
		return compileInvoke(n)
	case nil:
		return nil, errs.Missing(pkg, "expression")
	}
	return nil, errs.Invalid(pkg, "unsupported node %T", e)
}

func compileMember(n *MemberExpression) (evalFunc, error) {
	operand, err := compile(n.operand)
	if err != nil {
		return nil, err
	}
	index := n.field.Index
	return func(fr *frame) (reflect.Value, error) {
		v, err := operand(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		v, ok := deref(v)
		if !ok {
			return reflect.Value{}, nil
		}
		fv, err := v.FieldByIndexErr(index)
		if err != nil {
			// nil embedded pointer on the path
			return reflect.Value{}, nil
		}
		return fv, nil
	}, nil
}

func compileUnary(n *UnaryExpression) (evalFunc, error) {
	operand, err := compile(n.operand)
	if err != nil {
		return nil, err
	}
	switch n.nodeType {
	case NodeNot:
		return func(fr *frame) (reflect.Value, error) {
			v, err := operand(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(!truthy(v)), nil
		}, nil
	case NodeIsNull:
		return func(fr *frame) (reflect.Value, error) {
			v, err := operand(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(isNullValue(v)), nil
		}, nil
	}
	target := n.typ
	return func(fr *frame) (reflect.Value, error) {
		v, err := operand(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		return convertValue(v, target)
	}, nil
}

func convertValue(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if isNullValue(v) {
		if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
			return reflect.Value{}, nil
		}
		return reflect.Value{}, errs.Operation(pkg, "null cannot be converted to %s", t)
	}
	src := v.Type()
	switch {
	case src == t:
		return v, nil
	case t.Kind() == reflect.Pointer && t.Elem() == src:
		p := reflect.New(src)
		p.Elem().Set(v)
		return p, nil
	case src.Kind() == reflect.Pointer && src.Elem() == t:
		return v.Elem(), nil
	case src.ConvertibleTo(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, errs.Invalid(pkg, "cannot convert %s to %s", src, t)
}

func compileBinary(n *BinaryExpression) (evalFunc, error) {
	left, err := compile(n.left)
	if err != nil {
		return nil, err
	}
	right, err := compile(n.right)
	if err != nil {
		return nil, err
	}

	switch n.nodeType {
	case NodeAndAlso, NodeOrElse:
		or := n.nodeType == NodeOrElse
		return func(fr *frame) (reflect.Value, error) {
			l, err := left(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			if truthy(l) == or {
				return reflect.ValueOf(or), nil
			}
			r, err := right(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(truthy(r)), nil
		}, nil
	}

	op := n.nodeType
	return func(fr *frame) (reflect.Value, error) {
		l, err := left(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		r, err := right(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		res, err := compareOp(op, l, r)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(res), nil
	}, nil
}

func compareOp(op NodeType, l, r reflect.Value) (bool, error) {
	switch op {
	case NodeEqual:
		return valuesEqual(l, r)
	case NodeNotEqual:
		eq, err := valuesEqual(l, r)
		return !eq, err
	}

	a, okA := deref(l)
	b, okB := deref(r)
	if !okA || !okB {
		return false, nil
	}
	c, err := compareValues(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case NodeGreaterThan:
		return c > 0, nil
	case NodeGreaterThanOrEqual:
		return c >= 0, nil
	case NodeLessThan:
		return c < 0, nil
	case NodeLessThanOrEqual:
		return c <= 0, nil
	}
	return false, errs.Invalid(pkg, "%s is not a comparison", op)
}

func compileCall(n *MethodCallExpression) (evalFunc, error) {
	var object evalFunc
	if n.object != nil {
		var err error
		if object, err = compile(n.object); err != nil {
			return nil, err
		}
	}
	args := make([]evalFunc, len(n.args))
	for i, a := range n.args {
		fn, err := compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = fn
	}
	method := n.method
	return func(fr *frame) (reflect.Value, error) {
		var recv reflect.Value
		if object != nil {
			v, err := object(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			recv = v
		}
		values := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := a(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			values[i] = v
		}
		return method.Invoke(recv, values)
	}, nil
}

func compileLambda(n *LambdaExpression) (evalFunc, error) {
	body, err := compile(n.body)
	if err != nil {
		return nil, err
	}
	params := n.params
	return func(fr *frame) (reflect.Value, error) {
		closure := Closure(func(args ...reflect.Value) (reflect.Value, error) {
			if len(args) != len(params) {
				return reflect.Value{}, errs.Invalid(pkg, "lambda expects %d arguments, got %d", len(params), len(args))
			}
			return body(&frame{params: params, values: args, parent: fr})
		})
		return reflect.ValueOf(closure), nil
	}, nil
}

func compileConditional(n *ConditionalExpression) (evalFunc, error) {
	test, err := compile(n.test)
	if err != nil {
		return nil, err
	}
	ifTrue, err := compile(n.ifTrue)
	if err != nil {
		return nil, err
	}
	ifFalse, err := compile(n.ifFalse)
	if err != nil {
		return nil, err
	}
	return func(fr *frame) (reflect.Value, error) {
		t, err := test(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		if truthy(t) {
			return ifTrue(fr)
		}
		return ifFalse(fr)
	}, nil
}

func compileInvoke(n *InvocationExpression) (evalFunc, error) {
	fn, err := compile(n.fn)
	if err != nil {
		return nil, err
	}
	args := make([]evalFunc, len(n.args))
	for i, a := range n.args {
		if args[i], err = compile(a); err != nil {
			return nil, err
		}
	}
	return func(fr *frame) (reflect.Value, error) {
		f, err := fn(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		closure, ok := f.Interface().(Closure)
		if !ok {
			return reflect.Value{}, errs.Invalid(pkg, "invoked value is not a lambda")
		}
		values := make([]reflect.Value, len(args))
		for i, a := range args {
			if values[i], err = a(fr); err != nil {
				return reflect.Value{}, err
			}
		}
		return closure(values...)
	}, nil
}

// isNullValue reports whether v is absent or a nil pointer, slice, map,
// interface, func or chan.
func isNullValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// deref follows pointers and interfaces; ok is false for null.
func deref(v reflect.Value) (reflect.Value, bool) {
	for {
		if isNullValue(v) {
			return reflect.Value{}, false
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
			return v, true
		}
		v = v.Elem()
	}
}

func truthy(v reflect.Value) bool {
	v, ok := deref(v)
	return ok && v.Kind() == reflect.Bool && v.Bool()
}

var timeType = reflect.TypeFor[time.Time]()

// valuesEqual implements lifted equality: null equals null only.
func valuesEqual(l, r reflect.Value) (bool, error) {
	a, okA := deref(l)
	b, okB := deref(r)
	if !okA || !okB {
		return okA == okB, nil
	}
	if a.Type() != b.Type() {
		if !b.Type().ConvertibleTo(a.Type()) {
			return false, nil
		}
		b = b.Convert(a.Type())
	}
	if a.Type() == timeType {
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time)), nil
	}
	if c, ok := cmpMethod(a); ok {
		return c(b) == 0, nil
	}
	if a.Comparable() && b.Comparable() {
		return a.Equal(b), nil
	}
	return reflect.DeepEqual(a.Interface(), b.Interface()), nil
}

// compareValues orders two non-null values of the same type.
func compareValues(a, b reflect.Value) (int, error) {
	if a.Type() != b.Type() {
		if !b.Type().ConvertibleTo(a.Type()) {
			return 0, errs.Invalid(pkg, "cannot compare %s with %s", a.Type(), b.Type())
		}
		b = b.Convert(a.Type())
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float()), nil
	case reflect.String:
		return strings.Compare(a.String(), b.String()), nil
	}
	if a.Type() == timeType {
		return a.Interface().(time.Time).Compare(b.Interface().(time.Time)), nil
	}
	if c, ok := cmpMethod(a); ok {
		return c(b), nil
	}
	return 0, errs.Invalid(pkg, "values of type %s are not ordered", a.Type())
}

// cmpMethod returns v.Cmp when v's type has a method Cmp(T) int, the shape
// used by decimal types.
func cmpMethod(v reflect.Value) (func(reflect.Value) int, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	m := v.MethodByName("Cmp")
	if !m.IsValid() {
		return nil, false
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.In(0) != v.Type() || mt.NumOut() != 1 {
		return nil, false
	}
	switch mt.Out(0).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return nil, false
	}
	return func(other reflect.Value) int {
		return int(m.Call([]reflect.Value{other})[0].Int())
	}, true
}
