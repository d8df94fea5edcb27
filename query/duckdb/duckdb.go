// Package duckdb executes conditions against a DuckDB table through
// database/sql and the duckdb-go driver.
//
// The condition is encoded as a WHERE clause. When part of it has no SQL
// form, the clause selects a superset and the scanned rows are filtered
// again in memory.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	// registers the "duckdb" database/sql driver
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/autofilter-go/encode"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/internal/rowscan"
	"github.com/hugr-lab/autofilter-go/query"
)

// Config configures a Handler.
type Config struct {
	// DB is the database to query.
	// REQUIRED.
	DB *sql.DB `validate:"required"`

	// Table is the table, view or table function to select from. It is
	// inserted verbatim, so schema qualified names are allowed.
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

// Handler runs conditions over entities of type E stored in a DuckDB
// table. It is safe for concurrent use.
type Handler[E any] struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
	enc    *encode.DuckDBEncoder
	cols   []encode.Column
	list   string
}

var _ query.Handler[struct{ ID int }] = (*Handler[struct{ ID int }])(nil)

// New validates cfg and creates a handler for E.
func New[E any](cfg Config) (*Handler[E], error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("duckdb: invalid config: %w", err)
	}
	cols := encode.Columns(reflect.TypeFor[E]())
	if len(cols) == 0 {
		return nil, fmt.Errorf("duckdb: %s has no columns", reflect.TypeFor[E]())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[E]{
		db:     cfg.DB,
		table:  cfg.Table,
		logger: logger.With("table", cfg.Table),
		enc:    encode.NewDuckDBEncoder(cfg.Columns),
		cols:   cols,
		list:   cfg.Columns.SelectList(cols),
	}, nil
}

// SQL returns the statement Execute runs for cond and whether it selects
// exactly the matching rows.
func (h *Handler[E]) SQL(cond *expr.LambdaExpression) (string, bool) {
	where, exact := "", true
	if cond != nil {
		where, exact = h.enc.EncodeCondition(cond)
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(h.list)
	sb.WriteString(" FROM ")
	sb.WriteString(h.table)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	return sb.String(), exact
}

// Execute selects the rows matching cond.
func (h *Handler[E]) Execute(ctx context.Context, cond *expr.LambdaExpression) ([]E, error) {
	q, exact := h.SQL(cond)
	h.logger.Debug("Executing query", "sql", q, "exact", exact)
	if !exact {
		h.logger.Warn("Condition partially encoded, filtering rows in memory", "condition", cond.String())
	}

	rows, err := h.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query %s: %w", h.table, err)
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		var e E
		if err := rows.Scan(rowscan.Targets(reflect.ValueOf(&e), h.cols, scansDirectly)...); err != nil {
			return nil, fmt.Errorf("duckdb: scan %s: %w", h.table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: read %s: %w", h.table, err)
	}

	if !exact {
		return query.Filter(ctx, h.logger, out, cond)
	}
	return out, nil
}

// scansDirectly reports whether database/sql can fill a field of type t.
// LIST columns arrive as []any and are converted by rowscan.
func scansDirectly(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() != reflect.Slice || t.Elem().Kind() == reflect.Uint8
}
