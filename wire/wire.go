// Package wire serializes condition lambdas into a compact, portable binary
// form so they can be stored or shipped to another process and evaluated or
// encoded as SQL there.
//
// The tree is written as MessagePack and compressed with ZStandard. Types
// travel by name and are resolved on decode through a TypeRegistry, so the
// receiving side must register its filter and entity types. Constants are
// stored in their native MessagePack form; parameters are stored as indices
// into the lambdas that declare them; methods are stored by their registered
// generic name and type arguments.
package wire

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
)

const (
	pkg     = "wire"
	version = 1
)

type envelope struct {
	Version int   `msgpack:"v"`
	Root    *node `msgpack:"r"`
}

type param struct {
	Name string `msgpack:"n,omitempty"`
	Type string `msgpack:"t"`
}

type node struct {
	Op       expr.NodeType      `msgpack:"op"`
	Type     string             `msgpack:"t,omitempty"`
	Null     bool               `msgpack:"null,omitempty"`
	Value    msgpack.RawMessage `msgpack:"v,omitempty"`
	Name     string             `msgpack:"n,omitempty"`
	Index    int                `msgpack:"i,omitempty"`
	TypeArgs []string           `msgpack:"ta,omitempty"`
	Params   []param            `msgpack:"ps,omitempty"`
	Object   *node              `msgpack:"o,omitempty"`
	Args     []*node            `msgpack:"a,omitempty"`
}

type encoder struct {
	params map[*expr.ParameterExpression]int
}

func encodeLambda(l *expr.LambdaExpression) (*node, error) {
	if l == nil {
		return nil, errs.Missing(pkg, "lambda")
	}
	enc := &encoder{params: make(map[*expr.ParameterExpression]int)}
	return enc.encode(l)
}

func (enc *encoder) encode(e expr.Expression) (*node, error) {
	n := &node{Op: e.NodeType()}
	switch x := e.(type) {
	case *expr.BinaryExpression:
		return enc.withArgs(n, x.Left(), x.Right())
	case *expr.UnaryExpression:
		if x.NodeType() == expr.NodeConvert {
			n.Type = TypeName(x.Type())
		}
		return enc.withArgs(n, x.Operand())
	case *expr.ConstantExpression:
		n.Type = TypeName(x.Type())
		if x.IsNull() {
			n.Null = true
			return n, nil
		}
		v, err := msgpack.Marshal(x.Value())
		if err != nil {
			return nil, errs.Invalid(pkg, "cannot encode constant of type %s: %v", x.Type(), err)
		}
		n.Value = v
		return n, nil
	case *expr.ParameterExpression:
		i, ok := enc.params[x]
		if !ok {
			return nil, errs.Invalid(pkg, "parameter %s is not declared by an enclosing lambda", x.Name())
		}
		n.Index = i
		return n, nil
	case *expr.MemberExpression:
		n.Name = x.Name()
		return enc.withArgs(n, x.Operand())
	case *expr.MethodCallExpression:
		return enc.encodeCall(n, x)
	case *expr.LambdaExpression:
		for _, p := range x.Parameters() {
			enc.params[p] = len(enc.params)
			n.Params = append(n.Params, param{Name: p.Name(), Type: TypeName(p.Type())})
		}
		return enc.withArgs(n, x.Body())
	case *expr.ConditionalExpression:
		return enc.withArgs(n, x.Test(), x.IfTrue(), x.IfFalse())
	case *expr.InvocationExpression:
		return enc.withArgs(n, append([]expr.Expression{x.Func()}, x.Arguments()...)...)
	}
	return nil, errs.Invalid(pkg, "unsupported node %s", e.NodeType())
}

func (enc *encoder) withArgs(n *node, args ...expr.Expression) (*node, error) {
	n.Args = make([]*node, len(args))
	for i, a := range args {
		c, err := enc.encode(a)
		if err != nil {
			return nil, err
		}
		n.Args[i] = c
	}
	return n, nil
}

func (enc *encoder) encodeCall(n *node, c *expr.MethodCallExpression) (*node, error) {
	g := c.Method().Generic()
	if g == nil {
		return nil, errs.Invalid(pkg, "method %s is not generic and cannot be encoded", c.Method().Name)
	}
	if registered, ok := expr.LookupMethod(g.Name); !ok || registered != g {
		return nil, errs.Invalid(pkg, "method %s is not registered", g.Name)
	}
	n.Name = g.Name
	for _, t := range c.Method().TypeArgs() {
		n.TypeArgs = append(n.TypeArgs, TypeName(t))
	}
	if obj := c.Object(); obj != nil {
		o, err := enc.encode(obj)
		if err != nil {
			return nil, err
		}
		n.Object = o
	}
	return enc.withArgs(n, c.Arguments()...)
}

type decoder struct {
	reg    *TypeRegistry
	params []*expr.ParameterExpression
}

func decodeLambda(root *node, reg *TypeRegistry) (*expr.LambdaExpression, error) {
	if root == nil || root.Op != expr.NodeLambda {
		return nil, errs.Invalid(pkg, "encoded expression is not a lambda")
	}
	dec := &decoder{reg: reg}
	e, err := dec.decode(root)
	if err != nil {
		return nil, err
	}
	return e.(*expr.LambdaExpression), nil
}

func (dec *decoder) decode(n *node) (expr.Expression, error) {
	if n == nil {
		return nil, errs.Invalid(pkg, "missing node")
	}
	switch n.Op {
	case expr.NodeConstant:
		return dec.decodeConstant(n)
	case expr.NodeParameter:
		if n.Index < 0 || n.Index >= len(dec.params) {
			return nil, errs.Invalid(pkg, "parameter index %d out of range", n.Index)
		}
		return dec.params[n.Index], nil
	case expr.NodeLambda:
		return dec.decodeLambdaNode(n)
	case expr.NodeCall:
		return dec.decodeCall(n)
	}

	args, err := dec.decodeArgs(n)
	if err != nil {
		return nil, err
	}
	switch {
	case n.Op.IsComparison(), n.Op == expr.NodeAndAlso, n.Op == expr.NodeOrElse:
		if len(args) != 2 {
			return nil, errs.Invalid(pkg, "%s expects 2 operands, got %d", n.Op, len(args))
		}
		return expr.MakeBinary(n.Op, args[0], args[1])
	case n.Op == expr.NodeConvert:
		if len(args) != 1 {
			return nil, errs.Invalid(pkg, "%s expects 1 operand, got %d", n.Op, len(args))
		}
		t, err := dec.reg.Type(n.Type)
		if err != nil {
			return nil, err
		}
		return expr.Convert(args[0], t)
	case n.Op == expr.NodeNot, n.Op == expr.NodeIsNull:
		if len(args) != 1 {
			return nil, errs.Invalid(pkg, "%s expects 1 operand, got %d", n.Op, len(args))
		}
		return expr.MakeUnary(n.Op, args[0])
	case n.Op == expr.NodeMemberAccess:
		if len(args) != 1 {
			return nil, errs.Invalid(pkg, "%s expects 1 operand, got %d", n.Op, len(args))
		}
		return expr.Field(args[0], n.Name)
	case n.Op == expr.NodeConditional:
		if len(args) != 3 {
			return nil, errs.Invalid(pkg, "%s expects 3 operands, got %d", n.Op, len(args))
		}
		return expr.Condition(args[0], args[1], args[2])
	case n.Op == expr.NodeInvoke:
		if len(args) == 0 {
			return nil, errs.Invalid(pkg, "%s expects a function", n.Op)
		}
		return expr.Invoke(args[0], args[1:]...)
	}
	return nil, errs.Invalid(pkg, "unknown node %s", n.Op)
}

func (dec *decoder) decodeArgs(n *node) ([]expr.Expression, error) {
	args := make([]expr.Expression, len(n.Args))
	for i, a := range n.Args {
		e, err := dec.decode(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return args, nil
}

func (dec *decoder) decodeConstant(n *node) (expr.Expression, error) {
	t, err := dec.reg.Type(n.Type)
	if err != nil {
		return nil, err
	}
	if n.Null {
		return expr.TypedConstant(nil, t)
	}
	v := reflect.New(t)
	if err := msgpack.Unmarshal(n.Value, v.Interface()); err != nil {
		return nil, errs.Invalid(pkg, "cannot decode constant of type %s: %v", t, err)
	}
	return expr.TypedConstant(v.Elem().Interface(), t)
}

func (dec *decoder) decodeLambdaNode(n *node) (expr.Expression, error) {
	params := make([]*expr.ParameterExpression, len(n.Params))
	for i, p := range n.Params {
		t, err := dec.reg.Type(p.Type)
		if err != nil {
			return nil, err
		}
		if params[i], err = expr.Parameter(t, p.Name); err != nil {
			return nil, err
		}
	}
	dec.params = append(dec.params, params...)
	if len(n.Args) != 1 {
		return nil, errs.Invalid(pkg, "lambda expects a body")
	}
	body, err := dec.decode(n.Args[0])
	if err != nil {
		return nil, err
	}
	return expr.Lambda(body, params...)
}

func (dec *decoder) decodeCall(n *node) (expr.Expression, error) {
	g, ok := expr.LookupMethod(n.Name)
	if !ok {
		return nil, errs.Invalid(pkg, "unknown method %s", n.Name)
	}
	typeArgs := make([]reflect.Type, len(n.TypeArgs))
	for i, name := range n.TypeArgs {
		t, err := dec.reg.Type(name)
		if err != nil {
			return nil, err
		}
		typeArgs[i] = t
	}
	m, err := g.Instantiate(typeArgs...)
	if err != nil {
		return nil, err
	}
	var obj expr.Expression
	if n.Object != nil {
		if obj, err = dec.decode(n.Object); err != nil {
			return nil, err
		}
	}
	args, err := dec.decodeArgs(n)
	if err != nil {
		return nil, err
	}
	return expr.Call(obj, m, args...)
}
