package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

// Property builds the accessor lambda x => x.A.B for the dotted path on t.
func Property(t reflect.Type, path string) (*LambdaExpression, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if path == "" {
		return nil, errs.Missing(pkg, "property path")
	}
	x, err := Parameter(t, "x")
	if err != nil {
		return nil, err
	}
	var cur Expression = x
	for name := range strings.SplitSeq(path, ".") {
		m, err := Field(cur, name)
		if err != nil {
			return nil, err
		}
		cur = m
	}
	return Lambda(cur, x)
}

// PropertyOf is Property for the type parameter T.
func PropertyOf[T any](path string) (*LambdaExpression, error) {
	return Property(reflect.TypeFor[T](), path)
}

// FieldOf builds the accessor lambda for the field that sel addresses, e.g.
//
//	expr.FieldOf(func(u *User) *int { return &u.Age })
//
// sel is called once on a zero T and must return the address of a field
// reached without following pointers.
func FieldOf[T, V any](sel func(*T) *V) (l *LambdaExpression, err error) {
	if sel == nil {
		return nil, errs.Missing(pkg, "field selector")
	}
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, errs.Invalid(pkg, "field selector panicked: %v", r)
		}
	}()

	var zero T
	root := reflect.ValueOf(&zero).Elem()
	if root.Kind() != reflect.Struct {
		return nil, errs.Invalid(pkg, "%s is not a struct", root.Type())
	}
	p := sel(&zero)
	if p == nil {
		return nil, errs.Invalid(pkg, "field selector returned nil")
	}
	names, ok := locateField(root, reflect.ValueOf(p).Pointer(), reflect.TypeFor[V]())
	if !ok {
		return nil, errs.Invalid(pkg, "field selector does not address a field of %s", root.Type())
	}
	return Property(root.Type(), strings.Join(names, "."))
}

func locateField(v reflect.Value, target uintptr, vt reflect.Type) ([]string, bool) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}
		fv := v.Field(i)
		addr := fv.UnsafeAddr()
		if addr == target && f.Type == vt && f.IsExported() {
			return []string{f.Name}, true
		}
		if f.Type.Kind() == reflect.Struct && target >= addr && target < addr+f.Type.Size() {
			sub, ok := locateField(fv, target, vt)
			if !ok {
				continue
			}
			// embedded structs are crossed through field promotion
			if f.Anonymous {
				return sub, true
			}
			return append([]string{f.Name}, sub...), true
		}
	}
	return nil, false
}

// MemberPath returns the field names of a direct member access lambda, from
// its parameter to the accessed field. Promoted fields contribute the names
// of the structs they are embedded through, so x.Page and x.Paging.Page
// yield the same path. Any other lambda shape is an invalid argument.
func MemberPath(l *LambdaExpression) ([]string, error) {
	if l == nil {
		return nil, errs.Missing(pkg, "accessor")
	}
	if len(l.params) != 1 {
		return nil, errs.Invalid(pkg, "accessor must take one parameter: %s", l)
	}
	var segments [][]string
	cur := l.body
	for {
		m, ok := cur.(*MemberExpression)
		if !ok {
			break
		}
		segments = append(segments, m.path)
		cur = m.operand
	}
	if len(segments) == 0 || cur != Expression(l.params[0]) {
		return nil, errs.Invalid(pkg, "accessor must be a direct member access: %s", l)
	}
	var path []string
	for i := len(segments) - 1; i >= 0; i-- {
		path = append(path, segments[i]...)
	}
	return path, nil
}

// IsMemberAccess reports whether l is a direct member access lambda.
func IsMemberAccess(l *LambdaExpression) bool {
	_, err := MemberPath(l)
	return err == nil
}

// MemberInfo returns the field accessed by a sample lambda such as
// x => x.MaxValue. The sample is inspected, never evaluated.
func MemberInfo(sample *LambdaExpression) (reflect.StructField, error) {
	if sample == nil {
		return reflect.StructField{}, errs.Missing(pkg, "sample")
	}
	m, ok := sample.body.(*MemberExpression)
	if !ok {
		return reflect.StructField{}, errs.Invalid(pkg, "sample is not a member access: %s", sample)
	}
	return m.field, nil
}

// GenericMemberInfo retargets the field accessed by sample onto another
// member of form. The sample's operand type must belong to form, which
// must be generic, and args must match its arity.
//
// For example a sample written against Range[int] with args [time.Time]
// yields the MaxValue field of Range[time.Time].
func GenericMemberInfo(sample *LambdaExpression, form typeutil.Form, args ...reflect.Type) (reflect.StructField, error) {
	if sample == nil {
		return reflect.StructField{}, errs.Missing(pkg, "sample")
	}
	if form == nil {
		return reflect.StructField{}, errs.Missing(pkg, "form")
	}
	m, ok := sample.body.(*MemberExpression)
	if !ok {
		return reflect.StructField{}, errs.Invalid(pkg, "sample is not a member access: %s", sample)
	}
	if form.Arity() == 0 {
		return reflect.StructField{}, errs.Invalid(pkg, "%s is not generic", form.Name())
	}
	if len(args) != form.Arity() {
		return reflect.StructField{}, errs.Invalid(pkg, "%s expects %d type arguments, got %d", form.Name(), form.Arity(), len(args))
	}
	operand := m.operand.Type()
	if operand.Kind() == reflect.Pointer {
		operand = operand.Elem()
	}
	if _, _, ok := form.Match(operand); !ok {
		return reflect.StructField{}, errs.Invalid(pkg, "%s is not a %s", operand, form.Name())
	}
	target, err := form.Instantiate(args...)
	if err != nil {
		return reflect.StructField{}, err
	}
	st := structType(target)
	if st == nil {
		return reflect.StructField{}, errs.Invalid(pkg, "%s is not a struct", target)
	}
	sf, ok := st.FieldByName(m.field.Name)
	if !ok {
		return reflect.StructField{}, errs.Invalid(pkg, "%s has no field %s", target, m.field.Name)
	}
	return sf, nil
}

// MethodInfo returns the method called by a sample lambda.
func MethodInfo(sample *LambdaExpression) (*Method, error) {
	if sample == nil {
		return nil, errs.Missing(pkg, "sample")
	}
	c, ok := sample.body.(*MethodCallExpression)
	if !ok {
		return nil, errs.Invalid(pkg, "sample is not a method call: %s", sample)
	}
	return c.method, nil
}

// GenericMethodInfo retargets the method called by sample onto another
// instantiation of the same generic method.
func GenericMethodInfo(sample *LambdaExpression, args ...reflect.Type) (*Method, error) {
	m, err := MethodInfo(sample)
	if err != nil {
		return nil, err
	}
	if m.generic == nil {
		return nil, errs.Invalid(pkg, "%s is not generic", m.Name)
	}
	if len(args) != m.generic.Arity {
		return nil, errs.Invalid(pkg, "%s expects %d type arguments, got %d", m.Name, m.generic.Arity, len(args))
	}
	return m.generic.Instantiate(args...)
}

// Walk visits e and its descendants depth-first. Children of a node are
// skipped when fn returns false for it.
func Walk(e Expression, fn func(Expression) bool) {
	if isNil(e) || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpression:
		Walk(n.left, fn)
		Walk(n.right, fn)
	case *UnaryExpression:
		Walk(n.operand, fn)
	case *MemberExpression:
		Walk(n.operand, fn)
	case *MethodCallExpression:
		Walk(n.object, fn)
		for _, a := range n.args {
			Walk(a, fn)
		}
	case *LambdaExpression:
		Walk(n.body, fn)
	case *ConditionalExpression:
		Walk(n.test, fn)
		Walk(n.ifTrue, fn)
		Walk(n.ifFalse, fn)
	case *InvocationExpression:
		Walk(n.fn, fn)
		for _, a := range n.args {
			Walk(a, fn)
		}
	}
}

// HasParameters reports whether e references any parameter.
func HasParameters(e Expression) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if _, ok := n.(*ParameterExpression); ok {
			found = true
		}
		return !found
	})
	return found
}

// PathString joins a member path with dots.
func PathString(path []string) string {
	return strings.Join(path, ".")
}

// MustLambda panics if err is non-nil. It is intended for package level
// variables built from constant inputs.
func MustLambda(l *LambdaExpression, err error) *LambdaExpression {
	if err != nil {
		panic(fmt.Sprintf("expr: %v", err))
	}
	return l
}
