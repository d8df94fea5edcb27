package encode

import (
	"reflect"
	"strings"
	"time"
)

// DuckDBEncoder encodes expressions to DuckDB SQL syntax.
//
// Collections on the entity side are LIST columns: membership uses
// list_contains and list_has_any, other quantified predicates use
// list_filter with a lambda.
type DuckDBEncoder struct {
	encoder
}

var _ Encoder = (*DuckDBEncoder)(nil)

// NewDuckDBEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewDuckDBEncoder(opts *EncoderOptions) *DuckDBEncoder {
	e := &DuckDBEncoder{}
	e.encoder = encoder{opts: opts, d: duckdbDialect{}}
	return e
}

type duckdbDialect struct{}

var duckdbLiterals = literalFormat{
	timestamp: func(t time.Time) string {
		return "TIMESTAMP '" + t.UTC().Format("2006-01-02 15:04:05.999999") + "'"
	},
	blob: func(b []byte) string { return hexBytes(b) + "::BLOB" },
	list: func(items []string) string { return "[" + strings.Join(items, ", ") + "]" },
}

func (duckdbDialect) literal(v reflect.Value) string {
	return formatLiteral(v, duckdbLiterals)
}

func (duckdbDialect) listLiteral(items []string) string {
	return duckdbLiterals.list(items)
}

func (duckdbDialect) listContains(list, item string) string {
	return "list_contains(" + list + ", " + item + ")"
}

func (d duckdbDialect) listHasAny(list string, items []string) string {
	return "list_has_any(" + list + ", " + d.listLiteral(items) + ")"
}

func (duckdbDialect) listAny(list, v, body string) string {
	return "len(list_filter(" + list + ", " + v + " -> " + body + ")) > 0"
}

func (duckdbDialect) fieldOf(v, field string) string {
	return v + "." + field
}
