package expr

import (
	"reflect"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/typeutil"
)

const pkg = "expr"

// NodeType identifies the specific operation of a node.
type NodeType string

const (
	// Comparison operators
	NodeEqual              NodeType = "Equal"
	NodeNotEqual           NodeType = "NotEqual"
	NodeGreaterThan        NodeType = "GreaterThan"
	NodeGreaterThanOrEqual NodeType = "GreaterThanOrEqual"
	NodeLessThan           NodeType = "LessThan"
	NodeLessThanOrEqual    NodeType = "LessThanOrEqual"

	// Logical operators
	NodeAndAlso NodeType = "AndAlso"
	NodeOrElse  NodeType = "OrElse"

	// Unary operators
	NodeNot     NodeType = "Not"
	NodeConvert NodeType = "Convert"
	NodeIsNull  NodeType = "IsNull"

	NodeConstant     NodeType = "Constant"
	NodeParameter    NodeType = "Parameter"
	NodeMemberAccess NodeType = "MemberAccess"
	NodeCall         NodeType = "Call"
	NodeLambda       NodeType = "Lambda"
	NodeConditional  NodeType = "Conditional"
	NodeInvoke       NodeType = "Invoke"
)

// IsComparison reports whether t is a relational operator.
func (t NodeType) IsComparison() bool {
	switch t {
	case NodeEqual, NodeNotEqual, NodeGreaterThan, NodeGreaterThanOrEqual, NodeLessThan, NodeLessThanOrEqual:
		return true
	}
	return false
}

// Expression is the interface implemented by all expression nodes.
// Nodes are immutable; rewriting a tree rebuilds the changed ancestors.
// Use type switches to access node specific data.
type Expression interface {
	// NodeType returns the operation of the node.
	NodeType() NodeType

	// Type returns the Go type the node evaluates to.
	Type() reflect.Type

	// String renders the node, e.g. "x => (x.Age >= 18)".
	String() string

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// baseExpression contains common fields for all node types.
type baseExpression struct {
	nodeType NodeType
	typ      reflect.Type
}

func (b *baseExpression) NodeType() NodeType { return b.nodeType }
func (b *baseExpression) Type() reflect.Type { return b.typ }
func (b *baseExpression) expressionMarker()  {}

var boolType = reflect.TypeFor[bool]()

// BinaryExpression is a relational or short-circuit logical operation.
type BinaryExpression struct {
	baseExpression
	left  Expression
	right Expression
}

func (b *BinaryExpression) Left() Expression  { return b.left }
func (b *BinaryExpression) Right() Expression { return b.right }

// Update returns b when both operands are unchanged, otherwise a new node.
func (b *BinaryExpression) Update(left, right Expression) (*BinaryExpression, error) {
	if left == b.left && right == b.right {
		return b, nil
	}
	return MakeBinary(b.nodeType, left, right)
}

// MakeBinary creates a binary node for a comparison or logical operator.
// Comparison operands must have identical types; logical operands must be bool.
func MakeBinary(op NodeType, left, right Expression) (*BinaryExpression, error) {
	if isNil(left) {
		return nil, errs.Missing(pkg, "left operand")
	}
	if isNil(right) {
		return nil, errs.Missing(pkg, "right operand")
	}
	switch {
	case op.IsComparison():
		if left.Type() != right.Type() {
			return nil, errs.Invalid(pkg, "%s operands differ in type: %s and %s", op, left.Type(), right.Type())
		}
	case op == NodeAndAlso || op == NodeOrElse:
		if left.Type() != boolType || right.Type() != boolType {
			return nil, errs.Invalid(pkg, "%s requires bool operands, got %s and %s", op, left.Type(), right.Type())
		}
	default:
		return nil, errs.Invalid(pkg, "%s is not a binary operator", op)
	}
	return &BinaryExpression{
		baseExpression: baseExpression{nodeType: op, typ: boolType},
		left:           left,
		right:          right,
	}, nil
}

func Equal(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeEqual, l, r)
}

func NotEqual(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeNotEqual, l, r)
}

func GreaterThan(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeGreaterThan, l, r)
}

func LessThan(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeLessThan, l, r)
}

func AndAlso(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeAndAlso, l, r)
}

func OrElse(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeOrElse, l, r)
}

func LessThanOrEqual(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeLessThanOrEqual, l, r)
}

func GreaterThanOrEqual(l, r Expression) (*BinaryExpression, error) {
	return MakeBinary(NodeGreaterThanOrEqual, l, r)
}

// UnaryExpression is a Not, Convert or IsNull operation.
type UnaryExpression struct {
	baseExpression
	operand Expression
}

func (u *UnaryExpression) Operand() Expression { return u.operand }

// Update returns u when the operand is unchanged, otherwise a new node.
func (u *UnaryExpression) Update(operand Expression) (*UnaryExpression, error) {
	if operand == u.operand {
		return u, nil
	}
	if u.nodeType == NodeConvert {
		return Convert(operand, u.typ)
	}
	return MakeUnary(u.nodeType, operand)
}

// MakeUnary creates a Not or IsNull node. Use Convert for conversions.
func MakeUnary(op NodeType, operand Expression) (*UnaryExpression, error) {
	switch op {
	case NodeNot:
		return Not(operand)
	case NodeIsNull:
		return IsNull(operand)
	case NodeConvert:
		return nil, errs.Invalid(pkg, "convert requires a target type")
	}
	return nil, errs.Invalid(pkg, "%s is not a unary operator", op)
}

// Not negates a bool operand.
func Not(operand Expression) (*UnaryExpression, error) {
	if isNil(operand) {
		return nil, errs.Missing(pkg, "operand")
	}
	if operand.Type() != boolType {
		return nil, errs.Invalid(pkg, "not requires a bool operand, got %s", operand.Type())
	}
	return &UnaryExpression{baseExpression: baseExpression{nodeType: NodeNot, typ: boolType}, operand: operand}, nil
}

// IsNull tests whether the operand is nil. Operands of a type that cannot be
// nil always test false in memory.
func IsNull(operand Expression) (*UnaryExpression, error) {
	if isNil(operand) {
		return nil, errs.Missing(pkg, "operand")
	}
	return &UnaryExpression{baseExpression: baseExpression{nodeType: NodeIsNull, typ: boolType}, operand: operand}, nil
}

// Convert changes the static type of operand to t. Supported conversions are
// V to *V (lifting), *V to V, and any conversion Go allows between the types.
func Convert(operand Expression, t reflect.Type) (*UnaryExpression, error) {
	if isNil(operand) {
		return nil, errs.Missing(pkg, "operand")
	}
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if !convertible(operand.Type(), t) {
		return nil, errs.Invalid(pkg, "cannot convert %s to %s", operand.Type(), t)
	}
	return &UnaryExpression{baseExpression: baseExpression{nodeType: NodeConvert, typ: t}, operand: operand}, nil
}

func convertible(from, to reflect.Type) bool {
	switch {
	case from == to:
		return true
	case to.Kind() == reflect.Pointer && to.Elem() == from:
		return true
	case from.Kind() == reflect.Pointer && from.Elem() == to:
		return true
	}
	return from.ConvertibleTo(to)
}

// ConstantExpression holds a literal value of a fixed type.
type ConstantExpression struct {
	baseExpression
	value reflect.Value
}

// Value returns the constant, or nil for a null constant.
func (c *ConstantExpression) Value() any {
	if isNullValue(c.value) {
		return nil
	}
	return c.value.Interface()
}

// IsNull reports whether the constant is a nil value.
func (c *ConstantExpression) IsNull() bool { return isNullValue(c.value) }

// Constant creates a constant typed by the dynamic type of v. A nil v has no
// type; use TypedConstant for typed nulls.
func Constant(v any) (*ConstantExpression, error) {
	if v == nil {
		return nil, errs.Missing(pkg, "constant type")
	}
	rv := reflect.ValueOf(v)
	return &ConstantExpression{baseExpression: baseExpression{nodeType: NodeConstant, typ: rv.Type()}, value: rv}, nil
}

// TypedConstant creates a constant of type t. v must be assignable or
// convertible to t; a nil v is allowed when t can be nil.
func TypedConstant(v any, t reflect.Type) (*ConstantExpression, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "type")
	}
	if v == nil {
		if !typeutil.IsNillable(t) {
			return nil, errs.Invalid(pkg, "null is not a valid %s", t)
		}
		return &ConstantExpression{baseExpression: baseExpression{nodeType: NodeConstant, typ: t}, value: reflect.Zero(t)}, nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type() == t:
	case rv.Type().AssignableTo(t):
		nv := reflect.New(t).Elem()
		nv.Set(rv)
		rv = nv
	case rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.Pointer:
		rv = rv.Convert(t)
	default:
		return nil, errs.Invalid(pkg, "constant of type %s is not a %s", rv.Type(), t)
	}
	return &ConstantExpression{baseExpression: baseExpression{nodeType: NodeConstant, typ: t}, value: rv}, nil
}

// ParameterExpression is a lambda parameter. Parameters are compared by
// identity, never by name.
type ParameterExpression struct {
	baseExpression
	name string
}

func (p *ParameterExpression) Name() string { return p.name }

// Parameter creates a parameter of type t.
func Parameter(t reflect.Type, name string) (*ParameterExpression, error) {
	if t == nil {
		return nil, errs.Missing(pkg, "parameter type")
	}
	return &ParameterExpression{baseExpression: baseExpression{nodeType: NodeParameter, typ: t}, name: name}, nil
}

// MemberExpression reads a struct field. A pointer-to-struct operand is
// dereferenced; reading through a nil pointer yields null.
type MemberExpression struct {
	baseExpression
	operand Expression
	field   reflect.StructField
	path    []string
}

func (m *MemberExpression) Operand() Expression        { return m.operand }
func (m *MemberExpression) Field() reflect.StructField { return m.field }

// Name returns the field name.
func (m *MemberExpression) Name() string { return m.field.Name }

// Path returns the field names from the operand to the field, including the
// embedded structs a promoted field is reached through.
func (m *MemberExpression) Path() []string { return append([]string(nil), m.path...) }

// Update returns m when the operand is unchanged, otherwise a new node.
func (m *MemberExpression) Update(operand Expression) (*MemberExpression, error) {
	if operand == m.operand {
		return m, nil
	}
	return Field(operand, m.field.Name)
}

// Field creates a member access for the exported field name of operand's
// struct type. Promoted fields are resolved through embedded structs.
func Field(operand Expression, name string) (*MemberExpression, error) {
	if isNil(operand) {
		return nil, errs.Missing(pkg, "member operand")
	}
	st := structType(operand.Type())
	if st == nil {
		return nil, errs.Invalid(pkg, "%s is not a struct", operand.Type())
	}
	sf, ok := st.FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, errs.Invalid(pkg, "%s has no exported field %q", st, name)
	}
	return &MemberExpression{
		baseExpression: baseExpression{nodeType: NodeMemberAccess, typ: sf.Type},
		operand:        operand,
		field:          sf,
		path:           fieldPath(st, sf.Index),
	}, nil
}

func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func fieldPath(st reflect.Type, index []int) []string {
	names := make([]string, 0, len(index))
	t := st
	for _, i := range index {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		f := t.Field(i)
		names = append(names, f.Name)
		t = f.Type
	}
	return names
}

// MethodCallExpression calls a registered Method. Object is nil for static
// methods.
type MethodCallExpression struct {
	baseExpression
	object Expression
	method *Method
	args   []Expression
}

func (c *MethodCallExpression) Object() Expression { return c.object }
func (c *MethodCallExpression) Method() *Method    { return c.method }

// Arguments returns a copy of the call arguments.
func (c *MethodCallExpression) Arguments() []Expression {
	return append([]Expression(nil), c.args...)
}

// Update returns c when object and arguments are unchanged, otherwise a new node.
func (c *MethodCallExpression) Update(object Expression, args []Expression) (*MethodCallExpression, error) {
	if object == c.object && sameExprs(args, c.args) {
		return c, nil
	}
	return Call(object, c.method, args...)
}

// Call creates a call of m. object must be nil for static methods and match
// the receiver type otherwise.
func Call(object Expression, m *Method, args ...Expression) (*MethodCallExpression, error) {
	if m == nil {
		return nil, errs.Missing(pkg, "method")
	}
	if m.Static {
		if !isNil(object) {
			return nil, errs.Invalid(pkg, "static method %s called with a receiver", m.Name)
		}
		object = nil
	} else {
		if isNil(object) {
			return nil, errs.Missing(pkg, "receiver of "+m.Name)
		}
		if object.Type() != m.Receiver {
			return nil, errs.Invalid(pkg, "%s expects receiver %s, got %s", m.Name, m.Receiver, object.Type())
		}
	}
	if len(args) != len(m.In) {
		return nil, errs.Invalid(pkg, "%s expects %d arguments, got %d", m.Name, len(m.In), len(args))
	}
	for i, a := range args {
		if isNil(a) {
			return nil, errs.Missing(pkg, "argument of "+m.Name)
		}
		if a.Type() != m.In[i] {
			return nil, errs.Invalid(pkg, "%s argument %d expects %s, got %s", m.Name, i, m.In[i], a.Type())
		}
	}
	return &MethodCallExpression{
		baseExpression: baseExpression{nodeType: NodeCall, typ: m.Out},
		object:         object,
		method:         m,
		args:           append([]Expression(nil), args...),
	}, nil
}

// LambdaExpression is a function literal. Its type is the Go func type
// taking the parameter types and returning the body type.
type LambdaExpression struct {
	baseExpression
	body   Expression
	params []*ParameterExpression
}

func (l *LambdaExpression) Body() Expression { return l.body }

// Parameters returns a copy of the parameter list.
func (l *LambdaExpression) Parameters() []*ParameterExpression {
	return append([]*ParameterExpression(nil), l.params...)
}

// Parameter returns the i-th parameter.
func (l *LambdaExpression) Parameter(i int) *ParameterExpression { return l.params[i] }

// NumParameters returns the parameter count.
func (l *LambdaExpression) NumParameters() int { return len(l.params) }

// Update returns l when body and parameters are unchanged, otherwise a new node.
func (l *LambdaExpression) Update(body Expression, params []*ParameterExpression) (*LambdaExpression, error) {
	if body == l.body && sameParams(params, l.params) {
		return l, nil
	}
	return Lambda(body, params...)
}

// Lambda creates a function literal over params.
func Lambda(body Expression, params ...*ParameterExpression) (*LambdaExpression, error) {
	if isNil(body) {
		return nil, errs.Missing(pkg, "lambda body")
	}
	in := make([]reflect.Type, len(params))
	for i, p := range params {
		if p == nil {
			return nil, errs.Missing(pkg, "lambda parameter")
		}
		in[i] = p.Type()
	}
	return &LambdaExpression{
		baseExpression: baseExpression{
			nodeType: NodeLambda,
			typ:      reflect.FuncOf(in, []reflect.Type{body.Type()}, false),
		},
		body:   body,
		params: append([]*ParameterExpression(nil), params...),
	}, nil
}

// ConditionalExpression is a ternary choice.
type ConditionalExpression struct {
	baseExpression
	test    Expression
	ifTrue  Expression
	ifFalse Expression
}

func (c *ConditionalExpression) Test() Expression    { return c.test }
func (c *ConditionalExpression) IfTrue() Expression  { return c.ifTrue }
func (c *ConditionalExpression) IfFalse() Expression { return c.ifFalse }

// Update returns c when no operand changed, otherwise a new node.
func (c *ConditionalExpression) Update(test, ifTrue, ifFalse Expression) (*ConditionalExpression, error) {
	if test == c.test && ifTrue == c.ifTrue && ifFalse == c.ifFalse {
		return c, nil
	}
	return Condition(test, ifTrue, ifFalse)
}

// Condition creates test ? ifTrue : ifFalse.
func Condition(test, ifTrue, ifFalse Expression) (*ConditionalExpression, error) {
	if isNil(test) || isNil(ifTrue) || isNil(ifFalse) {
		return nil, errs.Missing(pkg, "conditional operand")
	}
	if test.Type() != boolType {
		return nil, errs.Invalid(pkg, "condition test must be bool, got %s", test.Type())
	}
	if ifTrue.Type() != ifFalse.Type() {
		return nil, errs.Invalid(pkg, "condition branches differ in type: %s and %s", ifTrue.Type(), ifFalse.Type())
	}
	return &ConditionalExpression{
		baseExpression: baseExpression{nodeType: NodeConditional, typ: ifTrue.Type()},
		test:           test,
		ifTrue:         ifTrue,
		ifFalse:        ifFalse,
	}, nil
}

// InvocationExpression applies a function-typed expression to arguments.
type InvocationExpression struct {
	baseExpression
	fn   Expression
	args []Expression
}

func (i *InvocationExpression) Func() Expression { return i.fn }

// Arguments returns a copy of the invocation arguments.
func (i *InvocationExpression) Arguments() []Expression {
	return append([]Expression(nil), i.args...)
}

// Update returns i when nothing changed, otherwise a new node.
func (i *InvocationExpression) Update(fn Expression, args []Expression) (*InvocationExpression, error) {
	if fn == i.fn && sameExprs(args, i.args) {
		return i, nil
	}
	return Invoke(fn, args...)
}

// Invoke creates an application of fn, usually a lambda, to args.
func Invoke(fn Expression, args ...Expression) (*InvocationExpression, error) {
	if isNil(fn) {
		return nil, errs.Missing(pkg, "invoked function")
	}
	ft := fn.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() != 1 {
		return nil, errs.Invalid(pkg, "%s is not a single-result function", ft)
	}
	if ft.NumIn() != len(args) {
		return nil, errs.Invalid(pkg, "invoke expects %d arguments, got %d", ft.NumIn(), len(args))
	}
	for i, a := range args {
		if isNil(a) {
			return nil, errs.Missing(pkg, "invoke argument")
		}
		if a.Type() != ft.In(i) {
			return nil, errs.Invalid(pkg, "invoke argument %d expects %s, got %s", i, ft.In(i), a.Type())
		}
	}
	return &InvocationExpression{
		baseExpression: baseExpression{nodeType: NodeInvoke, typ: ft.Out(0)},
		fn:             fn,
		args:           append([]Expression(nil), args...),
	}, nil
}

// isNil reports whether e is a nil interface or a typed nil node pointer.
func isNil(e Expression) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func sameExprs(a, b []Expression) bool {
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

func sameParams(a, b []*ParameterExpression) bool {
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
