package encode

import (
	"reflect"
	"strings"
	"time"
)

// PostgresEncoder encodes expressions to PostgreSQL SQL syntax.
//
// Collections on the entity side are array columns: membership uses
// = ANY(...) and the && overlap operator, other quantified predicates use
// EXISTS over unnest.
type PostgresEncoder struct {
	encoder
}

var _ Encoder = (*PostgresEncoder)(nil)

// NewPostgresEncoder creates a new PostgreSQL encoder.
// If opts is nil, default options are used.
func NewPostgresEncoder(opts *EncoderOptions) *PostgresEncoder {
	e := &PostgresEncoder{}
	e.encoder = encoder{opts: opts, d: postgresDialect{}}
	return e
}

type postgresDialect struct{}

var postgresLiterals = literalFormat{
	timestamp: func(t time.Time) string {
		return "TIMESTAMPTZ '" + t.UTC().Format("2006-01-02 15:04:05.999999") + "+00'"
	},
	blob: func(b []byte) string { return hexBytes(b) + "::bytea" },
	list: func(items []string) string { return "ARRAY[" + strings.Join(items, ", ") + "]" },
}

func (postgresDialect) literal(v reflect.Value) string {
	return formatLiteral(v, postgresLiterals)
}

func (postgresDialect) listLiteral(items []string) string {
	return postgresLiterals.list(items)
}

func (postgresDialect) listContains(list, item string) string {
	return item + " = ANY(" + list + ")"
}

func (d postgresDialect) listHasAny(list string, items []string) string {
	return list + " && " + d.listLiteral(items)
}

func (postgresDialect) listAny(list, v, body string) string {
	return "EXISTS (SELECT 1 FROM unnest(" + list + ") AS " + v + " WHERE " + body + ")"
}

func (postgresDialect) fieldOf(v, field string) string {
	return "(" + v + ")." + field
}
