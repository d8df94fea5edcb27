package encode

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/hugr-lab/autofilter-go/expr"
)

// Encoder converts expression trees over an entity type to SQL.
// Implementations handle dialect-specific syntax (DuckDB, PostgreSQL).
type Encoder interface {
	// Encode converts a single expression to SQL.
	// Returns empty string if expression is unsupported.
	Encode(e expr.Expression) string

	// EncodeCondition converts a predicate lambda e => bool to a WHERE
	// clause body, without the "WHERE" keyword. exact reports whether
	// the SQL selects exactly the rows the lambda accepts; when false
	// the SQL selects a superset and rows must be filtered again in
	// memory. An empty sql means no restriction.
	EncodeCondition(l *expr.LambdaExpression) (sql string, exact bool)
}

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps derived column names to target names.
	// Columns not in the map use their derived names.
	ColumnMapping map[string]string

	// ColumnExpressions maps derived column names to SQL expressions.
	// Takes precedence over ColumnMapping.
	// Use for computed columns or complex transformations.
	ColumnExpressions map[string]string
}

// ColumnName derives the column name of an entity field: the name in its
// `db` tag, or the field name in snake_case.
func ColumnName(sf reflect.StructField) string {
	if tag, _, _ := strings.Cut(sf.Tag.Get("db"), ","); tag != "" && tag != "-" {
		return tag
	}
	return SnakeCase(sf.Name)
}

// SnakeCase converts a Go identifier to snake_case, keeping acronyms
// together: UserID becomes user_id, HTTPServer becomes http_server.
func SnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' &&
				(unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
					(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// quoteLiteral renders s as a single quoted SQL string.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdentifier double quotes name unless it is a plain lower case
// identifier that is not a keyword. Both dialects fold unquoted names to
// lower case.
func quoteIdentifier(name string) string {
	if isPlainIdentifier(name) && !keywords[strings.ToUpper(name)] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdentifier(name string) bool {
	for i, c := range []byte(name) {
		switch {
		case c == '_', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}

// keywords that cannot appear unquoted as a column name in either dialect.
var keywords = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(`
		ALL ALTER AND ANY ARRAY AS ASC BETWEEN BY CASE CAST CHECK CONSTRAINT
		CREATE DATE DEFAULT DELETE DESC DISTINCT DROP ELSE END EXCEPT EXISTS
		FALSE FIRST FOREIGN FROM GROUP HAVING IN INDEX INNER INSERT INTERSECT
		INTERVAL INTO IS JOIN KEY LAST LEFT LIKE LIMIT NOT NULL NULLS OFFSET
		ON OR ORDER OUTER PRIMARY REFERENCES RIGHT SELECT SET TABLE THEN TIME
		TIMESTAMP TRUE UNION UNIQUE UPDATE USER VALUES WHEN WHERE`) {
		m[w] = true
	}
	return m
}()
