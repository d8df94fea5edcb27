package expr

import (
	"github.com/hugr-lab/autofilter-go/errs"
)

// Replace returns tree with every occurrence of old (by identity) replaced by
// replacement. Ancestors of a replaced node are rebuilt; every other node,
// including tree itself when old does not occur, is returned unchanged.
// A nil tree yields nil.
func Replace(tree, old, replacement Expression) (Expression, error) {
	if isNil(old) {
		return nil, errs.Missing(pkg, "node to replace")
	}
	if isNil(replacement) {
		return nil, errs.Missing(pkg, "replacement node")
	}
	r := replacer{old: old, replacement: replacement}
	return r.visit(tree)
}

// ReplaceTyped is Replace for a statically typed subtree. When the rewritten
// node no longer has type T, the original tree is returned.
func ReplaceTyped[T Expression](tree T, old, replacement Expression) (T, error) {
	res, err := Replace(tree, old, replacement)
	if err != nil {
		return tree, err
	}
	if typed, ok := res.(T); ok {
		return typed, nil
	}
	return tree, nil
}

// ReplaceAll applies Replace to each tree and always returns a new slice.
func ReplaceAll(trees []Expression, old, replacement Expression) ([]Expression, error) {
	out := make([]Expression, len(trees))
	for i, t := range trees {
		res, err := Replace(t, old, replacement)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

type replacer struct {
	old         Expression
	replacement Expression
}

func (r *replacer) visit(e Expression) (Expression, error) {
	if isNil(e) {
		return nil, nil
	}
	if e == r.old {
		return r.replacement, nil
	}

	switch n := e.(type) {
	case *BinaryExpression:
		left, err := r.visit(n.left)
		if err != nil {
			return nil, err
		}
		right, err := r.visit(n.right)
		if err != nil {
			return nil, err
		}
		return n.Update(left, right)
	case *UnaryExpression:
		operand, err := r.visit(n.operand)
		if err != nil {
			return nil, err
		}
		return n.Update(operand)
	case *MemberExpression:
		operand, err := r.visit(n.operand)
		if err != nil {
			return nil, err
		}
		return n.Update(operand)
	case *MethodCallExpression:
		object, err := r.visit(n.object)
		if err != nil {
			return nil, err
		}
		args, err := r.visitList(n.args)
		if err != nil {
			return nil, err
		}
		return n.Update(object, args)
	case *LambdaExpression:
		body, err := r.visit(n.body)
		if err != nil {
			return nil, err
		}
		params := n.params
		if p, ok := r.replacement.(*ParameterExpression); ok {
			params = r.visitParams(n.params, p)
		}
		return n.Update(body, params)
	case *ConditionalExpression:
		test, err := r.visit(n.test)
		if err != nil {
			return nil, err
		}
		ifTrue, err := r.visit(n.ifTrue)
		if err != nil {
			return nil, err
		}
		ifFalse, err := r.visit(n.ifFalse)
		if err != nil {
			return nil, err
		}
		return n.Update(test, ifTrue, ifFalse)
	case *InvocationExpression:
		fn, err := r.visit(n.fn)
		if err != nil {
			return nil, err
		}
		args, err := r.visitList(n.args)
		if err != nil {
			return nil, err
		}
		return n.Update(fn, args)
	}
	return e, nil
}

func (r *replacer) visitList(list []Expression) ([]Expression, error) {
	var out []Expression
	for i, e := range list {
		res, err := r.visit(e)
		if err != nil {
			return nil, err
		}
		if res != e && out == nil {
			out = make([]Expression, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = res
		}
	}
	if out == nil {
		return list, nil
	}
	return out, nil
}

// visitParams renames a lambda's own parameter when it is the replaced node,
// so the parameter list stays in sync with the rewritten body.
func (r *replacer) visitParams(params []*ParameterExpression, p *ParameterExpression) []*ParameterExpression {
	var out []*ParameterExpression
	for i, param := range params {
		if Expression(param) != r.old {
			continue
		}
		if out == nil {
			out = append([]*ParameterExpression(nil), params...)
		}
		out[i] = p
	}
	if out == nil {
		return params
	}
	return out
}
