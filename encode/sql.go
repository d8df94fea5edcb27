package encode

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/hugr-lab/autofilter-go/expr"
)

// dialect supplies the syntax that differs between SQL engines.
type dialect interface {
	// literal formats a non-null Go value, or returns "" when the value
	// has no SQL form.
	literal(v reflect.Value) string
	listLiteral(items []string) string
	// listContains tests whether list column holds item.
	listContains(list, item string) string
	// listHasAny tests whether list column shares an element with items.
	listHasAny(list string, items []string) string
	// listAny tests whether body holds for some element v of list.
	listAny(list, v, body string) string
	// fieldOf reads field of a struct element v.
	fieldOf(v, field string) string
}

// encoder is the dialect independent tree walker shared by the public
// encoders. It holds no per-call state.
type encoder struct {
	opts *EncoderOptions
	d    dialect
}

func (e *encoder) Encode(ex expr.Expression) string {
	s := e.session()
	return s.encode(ex)
}

func (e *encoder) EncodeCondition(l *expr.LambdaExpression) (string, bool) {
	if l == nil {
		return "", true
	}
	s := e.session()
	sql := s.encode(l.Body())
	switch sql {
	case "":
		return "", false
	case "TRUE":
		return "", !s.dropped
	}
	return sql, !s.dropped
}

func (e *encoder) session() *session {
	opts := e.opts
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &session{opts: opts, d: e.d, vars: make(map[*expr.ParameterExpression]string)}
}

type session struct {
	opts *EncoderOptions
	d    dialect
	vars map[*expr.ParameterExpression]string

	// strict disables dropping unsupported conjuncts, inside NOT and
	// CASE where a wider condition is not a superset.
	strict  int
	dropped bool
}

func (s *session) encode(n expr.Expression) string {
	if n == nil {
		return ""
	}
	if _, ok := n.(*expr.LambdaExpression); !ok && !expr.HasParameters(n) {
		return s.fold(n)
	}

	switch x := n.(type) {
	case *expr.BinaryExpression:
		return s.encodeBinary(x)
	case *expr.UnaryExpression:
		return s.encodeUnary(x)
	case *expr.MemberExpression:
		return s.encodeMember(x)
	case *expr.ParameterExpression:
		return s.vars[x]
	case *expr.MethodCallExpression:
		return s.encodeCall(x)
	case *expr.ConditionalExpression:
		return s.encodeConditional(x)
	default:
		// Invocations and bare lambdas have no SQL form
		return ""
	}
}

// fold evaluates a parameter free subtree into a literal.
func (s *session) fold(n expr.Expression) string {
	v, err := expr.EvaluateValue(n)
	if err != nil {
		return ""
	}
	return s.literal(v)
}

func (s *session) literal(v reflect.Value) string {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return "NULL"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "NULL"
	}
	return s.d.literal(v)
}

func (s *session) encodeBinary(b *expr.BinaryExpression) string {
	switch b.NodeType() {
	case expr.NodeAndAlso:
		return s.encodeAnd(b)
	case expr.NodeOrElse:
		return s.encodeOr(b)
	}

	left := s.encode(b.Left())
	right := s.encode(b.Right())
	if left == "" || right == "" {
		return ""
	}

	op := b.NodeType()
	if left == "NULL" || right == "NULL" {
		return encodeNullComparison(op, left, right)
	}
	nullable := b.Left().Type().Kind() == reflect.Pointer
	both := expr.HasParameters(b.Left()) && expr.HasParameters(b.Right())

	switch op {
	case expr.NodeEqual:
		if nullable && both {
			return left + " IS NOT DISTINCT FROM " + right
		}
		return left + " = " + right
	case expr.NodeNotEqual:
		if nullable && both {
			return left + " IS DISTINCT FROM " + right
		}
		return left + " <> " + right
	case expr.NodeLessThan:
		return left + " < " + right
	case expr.NodeGreaterThan:
		return left + " > " + right
	case expr.NodeLessThanOrEqual:
		return left + " <= " + right
	case expr.NodeGreaterThanOrEqual:
		return left + " >= " + right
	default:
		return ""
	}
}

// encodeNullComparison follows the in-memory rules: null equals null only,
// and orderings involving null are false.
func encodeNullComparison(op expr.NodeType, left, right string) string {
	other := left
	if left == "NULL" {
		other = right
	}
	switch op {
	case expr.NodeEqual:
		if other == "NULL" {
			return "TRUE"
		}
		return other + " IS NULL"
	case expr.NodeNotEqual:
		if other == "NULL" {
			return "FALSE"
		}
		return other + " IS NOT NULL"
	}
	return "FALSE"
}

func conjuncts(n expr.Expression, op expr.NodeType, out []expr.Expression) []expr.Expression {
	if b, ok := n.(*expr.BinaryExpression); ok && b.NodeType() == op {
		out = conjuncts(b.Left(), op, out)
		return conjuncts(b.Right(), op, out)
	}
	return append(out, n)
}

// encodeAnd handles unsupported children the way pushdown filters do:
// they are skipped and the result becomes a superset.
func (s *session) encodeAnd(b *expr.BinaryExpression) string {
	children := conjuncts(b, expr.NodeAndAlso, nil)
	var parts []string
	skipped := false
	for _, child := range children {
		encoded := s.encode(child)
		switch encoded {
		case "":
			if s.strict > 0 {
				return ""
			}
			skipped = true
			s.dropped = true
			continue
		case "FALSE":
			return "FALSE"
		case "TRUE":
			continue
		}
		parts = append(parts, encoded)
	}

	switch len(parts) {
	case 0:
		if skipped {
			return ""
		}
		return "TRUE"
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// encodeOr drops the whole disjunction if any child is unsupported.
func (s *session) encodeOr(b *expr.BinaryExpression) string {
	children := conjuncts(b, expr.NodeOrElse, nil)
	var parts []string
	for _, child := range children {
		encoded := s.encode(child)
		switch encoded {
		case "":
			return ""
		case "TRUE":
			return "TRUE"
		case "FALSE":
			continue
		}
		parts = append(parts, encoded)
	}

	switch len(parts) {
	case 0:
		return "FALSE"
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (s *session) encodeUnary(u *expr.UnaryExpression) string {
	switch u.NodeType() {
	case expr.NodeConvert:
		return s.encode(u.Operand())
	case expr.NodeIsNull:
		operand := s.encode(u.Operand())
		if operand == "" {
			return ""
		}
		return operand + " IS NULL"
	case expr.NodeNot:
		if inner, ok := u.Operand().(*expr.UnaryExpression); ok && inner.NodeType() == expr.NodeIsNull {
			operand := s.encode(inner.Operand())
			if operand == "" {
				return ""
			}
			return operand + " IS NOT NULL"
		}
		s.strict++
		child := s.encode(u.Operand())
		s.strict--
		switch child {
		case "":
			return ""
		case "TRUE":
			return "FALSE"
		case "FALSE":
			return "TRUE"
		}
		return "NOT (" + child + ")"
	}
	return ""
}

// encodeMember renders a column for member chains rooted at the entity and
// a field access for chains rooted at a list element variable.
func (s *session) encodeMember(m *expr.MemberExpression) string {
	var fields []reflect.StructField
	var cur expr.Expression = m
	for {
		mm, ok := cur.(*expr.MemberExpression)
		if !ok {
			break
		}
		fields = append(fields, mm.Field())
		cur = mm.Operand()
	}
	p, ok := cur.(*expr.ParameterExpression)
	if !ok {
		return ""
	}

	if v, ok := s.vars[p]; ok {
		out := v
		for i := len(fields) - 1; i >= 0; i-- {
			out = s.d.fieldOf(out, quoteIdentifier(ColumnName(fields[i])))
		}
		return out
	}

	names := make([]string, len(fields))
	for i := range fields {
		names[len(fields)-1-i] = ColumnName(fields[i])
	}
	return s.column(strings.Join(names, "_"))
}

func (s *session) column(name string) string {
	return s.opts.ColumnSQL(name)
}

func (s *session) encodeCall(c *expr.MethodCallExpression) string {
	switch c.Method().Generic() {
	case expr.Contains:
		return s.encodeContains(c)
	case expr.Any:
		return s.encodeAny(c)
	}
	return ""
}

func (s *session) encodeContains(c *expr.MethodCallExpression) string {
	item := s.encode(c.Arguments()[0])
	if item == "" {
		return ""
	}
	if expr.HasParameters(c.Object()) {
		list := s.encode(c.Object())
		if list == "" {
			return ""
		}
		return s.d.listContains(list, item)
	}

	values, hasNull, ok := s.constantList(c.Object())
	if !ok {
		return ""
	}
	var parts []string
	if len(values) > 0 {
		parts = append(parts, item+" IN ("+strings.Join(values, ", ")+")")
	}
	if hasNull {
		parts = append(parts, item+" IS NULL")
	}
	switch len(parts) {
	case 0:
		return "FALSE"
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// constantList evaluates a parameter free collection into literals. NULL
// items are reported separately.
func (s *session) constantList(n expr.Expression) (values []string, hasNull, ok bool) {
	v, err := expr.EvaluateValue(n)
	if err != nil {
		return nil, false, false
	}
	if !v.IsValid() || (v.Kind() == reflect.Slice && v.IsNil()) {
		return nil, false, true
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false, false
	}
	for i := range v.Len() {
		lit := s.literal(v.Index(i))
		switch lit {
		case "":
			return nil, false, false
		case "NULL":
			hasNull = true
			continue
		}
		values = append(values, lit)
	}
	return values, hasNull, true
}

func (s *session) encodeAny(c *expr.MethodCallExpression) string {
	args := c.Arguments()
	if len(args) != 2 {
		return ""
	}
	list := s.encode(args[0])
	if list == "" {
		return ""
	}
	pred, ok := args[1].(*expr.LambdaExpression)
	if !ok || pred.NumParameters() != 1 {
		return ""
	}
	x := pred.Parameter(0)

	switch body := pred.Body().(type) {
	case *expr.MethodCallExpression:
		// Any(list, x => items.Contains(x))
		if body.Method().Generic() == expr.Contains && !expr.HasParameters(body.Object()) && isVar(body.Arguments()[0], x) {
			values, _, ok := s.constantList(body.Object())
			if ok {
				if len(values) == 0 {
					return "FALSE"
				}
				return s.d.listHasAny(list, values)
			}
		}
	case *expr.BinaryExpression:
		// Any(list, x => v == x)
		if body.NodeType() == expr.NodeEqual {
			var value expr.Expression
			switch {
			case isVar(body.Right(), x) && !expr.HasParameters(body.Left()):
				value = body.Left()
			case isVar(body.Left(), x) && !expr.HasParameters(body.Right()):
				value = body.Right()
			}
			if value != nil {
				if lit := s.fold(value); lit != "" && lit != "NULL" {
					return s.d.listContains(list, lit)
				}
			}
		}
	}

	name := "x" + strconv.Itoa(len(s.vars)+1)
	s.vars[x] = name
	defer delete(s.vars, x)
	body := s.encode(pred.Body())
	switch body {
	case "":
		return ""
	case "FALSE":
		return "FALSE"
	}
	return s.d.listAny(list, name, body)
}

// isVar reports whether n is p, possibly behind conversions.
func isVar(n expr.Expression, p *expr.ParameterExpression) bool {
	for {
		u, ok := n.(*expr.UnaryExpression)
		if !ok || u.NodeType() != expr.NodeConvert {
			break
		}
		n = u.Operand()
	}
	q, ok := n.(*expr.ParameterExpression)
	return ok && q == p
}

func (s *session) encodeConditional(c *expr.ConditionalExpression) string {
	s.strict++
	defer func() { s.strict-- }()
	test := s.encode(c.Test())
	ifTrue := s.encode(c.IfTrue())
	ifFalse := s.encode(c.IfFalse())
	if test == "" || ifTrue == "" || ifFalse == "" {
		return ""
	}
	return "CASE WHEN " + test + " THEN " + ifTrue + " ELSE " + ifFalse + " END"
}
