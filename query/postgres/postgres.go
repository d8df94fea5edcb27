// Package postgres executes conditions against a PostgreSQL table through
// pgx.
//
// Rows are collected with pgx.RowToStructByName, so every exported field of
// the entity must be selectable as a column: each field is read from the
// column derived by encode.ColumnName and aliased to the field's `db` tag or
// Go name. Embedded structs are flattened; other nested structs are not
// supported and must be tagged `db:"-"`.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/hugr-lab/autofilter-go/encode"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/query"
)

// Querier runs a query. *pgx.Conn, *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Querier = (*pgx.Conn)(nil)

// Config configures a Handler.
type Config struct {
	// Querier runs the generated statements.
	// REQUIRED.
	Querier Querier `validate:"required"`

	// Table is the table or view to select from, inserted verbatim.
	// REQUIRED.
	Table string `validate:"required"`

	// Logger receives query and partial encoding logs.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger

	// Columns maps derived column names to table columns or SQL
	// expressions.
	// OPTIONAL.
	Columns *encode.EncoderOptions
}

var validate = validator.New()

// Handler runs conditions over entities of type E stored in PostgreSQL.
type Handler[E any] struct {
	q      Querier
	table  string
	logger *slog.Logger
	enc    *encode.PostgresEncoder
	list   string
}

var _ query.Handler[struct{ ID int }] = (*Handler[struct{ ID int }])(nil)

// New validates cfg and creates a handler for E.
func New[E any](cfg Config) (*Handler[E], error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("postgres: invalid config: %w", err)
	}
	list, err := selectList(reflect.TypeFor[E](), cfg.Columns)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[E]{
		q:      cfg.Querier,
		table:  cfg.Table,
		logger: logger.With("table", cfg.Table),
		enc:    encode.NewPostgresEncoder(cfg.Columns),
		list:   list,
	}, nil
}

func selectList(t reflect.Type, opts *encode.EncoderOptions) (string, error) {
	if t.Kind() != reflect.Struct {
		return "", fmt.Errorf("postgres: %s is not a struct", t)
	}
	var parts []string
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || sf.Tag.Get("db") == "-" {
			continue
		}
		if encode.IsNested(sf.Type) {
			return "", fmt.Errorf("postgres: nested struct field %s.%s is not supported", t, sf.Name)
		}
		alias := sf.Name
		if tag, _, _ := strings.Cut(sf.Tag.Get("db"), ","); tag != "" {
			alias = tag
		}
		parts = append(parts, opts.ColumnSQL(encode.ColumnName(sf))+" AS "+pgx.Identifier{alias}.Sanitize())
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("postgres: %s has no columns", t)
	}
	return strings.Join(parts, ", "), nil
}

// SQL returns the statement Execute runs for cond and whether it selects
// exactly the matching rows.
func (h *Handler[E]) SQL(cond *expr.LambdaExpression) (string, bool) {
	where, exact := "", true
	if cond != nil {
		where, exact = h.enc.EncodeCondition(cond)
	}
	q := "SELECT " + h.list + " FROM " + h.table
	if where != "" {
		q += " WHERE " + where
	}
	return q, exact
}

// Execute selects the rows matching cond.
func (h *Handler[E]) Execute(ctx context.Context, cond *expr.LambdaExpression) ([]E, error) {
	q, exact := h.SQL(cond)
	h.logger.Debug("Executing query", "sql", q, "exact", exact)
	if !exact {
		h.logger.Warn("Condition partially encoded, filtering rows in memory", "condition", cond.String())
	}

	rows, err := h.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: query %s: %w", h.table, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[E])
	if err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", h.table, err)
	}

	if !exact {
		return query.Filter(ctx, h.logger, out, cond)
	}
	return out, nil
}
