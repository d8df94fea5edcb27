package mapping

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/hugr-lab/autofilter-go/errs"
)

// orExpr is the root of the grammar: && binds tighter than ||.
type orExpr struct {
	Terms []*andExpr `parser:"@@ ( '||' @@ )*"`
}

type andExpr struct {
	Factors []*unaryExpr `parser:"@@ ( '&&' @@ )*"`
}

type unaryExpr struct {
	Not     *unaryExpr  `parser:"  '!' @@"`
	Compare *comparison `parser:"| @@"`
}

// comparison is a single operand or two operands joined by a relational
// operator.
type comparison struct {
	Left *operand  `parser:"@@"`
	Rest *relation `parser:"@@?"`
}

type relation struct {
	Op    string   `parser:"@( '==' | '!=' | '<=' | '>=' | '<' | '>' )"`
	Right *operand `parser:"@@"`
}

type operand struct {
	Group  *orExpr  `parser:"  '(' @@ ')'"`
	Null   bool     `parser:"| @'null'"`
	Bool   *string  `parser:"| @( 'true' | 'false' )"`
	Float  *float64 `parser:"| @Float"`
	Int    *int64   `parser:"| @Int"`
	String *string  `parser:"| @String"`
	Path   *path    `parser:"| @@"`
}

// path is f or e followed by member names.
type path struct {
	Root    string   `parser:"@Ident"`
	Members []string `parser:"( '.' @Ident )*"`
}

func (p *path) String() string {
	return strings.Join(append([]string{p.Root}, p.Members...), ".")
}

var predicateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Float", Pattern: `-?\d+\.\d+`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Operator", Pattern: `==|!=|<=|>=|&&|\|\||[<>!().]`},
})

var predicateParser = participle.MustBuild[orExpr](
	participle.Lexer(predicateLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

func parse(text string) (*orExpr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Missing(pkg, "predicate text")
	}
	ast, err := predicateParser.ParseString("", text)
	if err != nil {
		return nil, errs.Invalid(pkg, "invalid predicate %q: %v", text, err)
	}
	return ast, nil
}
