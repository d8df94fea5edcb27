package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var binarySymbols = map[NodeType]string{
	NodeEqual:              "==",
	NodeNotEqual:           "!=",
	NodeGreaterThan:        ">",
	NodeGreaterThanOrEqual: ">=",
	NodeLessThan:           "<",
	NodeLessThanOrEqual:    "<=",
	NodeAndAlso:            "&&",
	NodeOrElse:             "||",
}

func (b *BinaryExpression) String() string {
	return "(" + b.left.String() + " " + binarySymbols[b.nodeType] + " " + b.right.String() + ")"
}

func (u *UnaryExpression) String() string {
	switch u.nodeType {
	case NodeNot:
		return "!" + u.operand.String()
	case NodeConvert:
		return "Convert(" + u.operand.String() + ", " + u.typ.String() + ")"
	default:
		return "IsNull(" + u.operand.String() + ")"
	}
}

func (c *ConstantExpression) String() string {
	return FormatValue(c.value)
}

func (p *ParameterExpression) String() string {
	if p.name == "" {
		return "_"
	}
	return p.name
}

func (m *MemberExpression) String() string {
	return m.operand.String() + "." + m.field.Name
}

func (c *MethodCallExpression) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	call := c.method.Name + "(" + strings.Join(args, ", ") + ")"
	if c.object == nil {
		return call
	}
	return c.object.String() + "." + call
}

func (l *LambdaExpression) String() string {
	body := l.body.String()
	if len(l.params) == 1 {
		return l.params[0].String() + " => " + body
	}
	names := make([]string, len(l.params))
	for i, p := range l.params {
		names[i] = p.String()
	}
	return "(" + strings.Join(names, ", ") + ") => " + body
}

func (c *ConditionalExpression) String() string {
	return "(" + c.test.String() + " ? " + c.ifTrue.String() + " : " + c.ifFalse.String() + ")"
}

func (i *InvocationExpression) String() string {
	parts := make([]string, 0, len(i.args)+1)
	parts = append(parts, i.fn.String())
	for _, a := range i.args {
		parts = append(parts, a.String())
	}
	return "Invoke(" + strings.Join(parts, ", ") + ")"
}

// FormatValue renders a value the way constants appear in String output.
// Pointers are followed, nil renders as null and structs list their
// exported fields.
func FormatValue(v reflect.Value) string {
	if isNullValue(v) {
		return "null"
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
		if isNullValue(v) {
			return "null"
		}
	}

	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case time.Time:
			return x.Format(time.RFC3339Nano)
		case time.Duration:
			return x.String()
		case fmt.Stringer:
			return x.String()
		}
	}

	switch v.Kind() {
	case reflect.String:
		return strconv.Quote(v.String())
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits())
	case reflect.Slice, reflect.Array:
		items := make([]string, v.Len())
		for i := range v.Len() {
			items[i] = FormatValue(v.Index(i))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case reflect.Struct:
		t := v.Type()
		var fields []string
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fields = append(fields, f.Name+": "+FormatValue(v.Field(i)))
		}
		return t.Name() + "{" + strings.Join(fields, ", ") + "}"
	case reflect.Func:
		return v.Type().String()
	}
	if v.CanInterface() {
		return fmt.Sprint(v.Interface())
	}
	return v.Type().String()
}
