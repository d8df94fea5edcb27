// Package arrowscan evaluates conditions over Arrow record batches.
//
// Rows are decoded into the entity type by column name: each leaf field of
// E reads the column named by encode.Columns, optionally renamed through
// Config.ColumnMapping. FilterRecords keeps the matching rows as zero-copy
// slices of the input batches; Execute returns the decoded entities.
package arrowscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/go-playground/validator/v10"

	"github.com/hugr-lab/autofilter-go/encode"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/internal/recovery"
	"github.com/hugr-lab/autofilter-go/query"
)

// ScanFunc opens a reader over the rows to filter. The handler releases
// the reader when it is done.
type ScanFunc func(ctx context.Context) (array.RecordReader, error)

// Config configures a Handler.
type Config struct {
	// Scan produces the record batches Execute reads.
	// REQUIRED.
	Scan ScanFunc `validate:"required"`

	// ColumnMapping maps derived column names to schema field names.
	// OPTIONAL.
	ColumnMapping map[string]string

	// Logger receives recovered panics.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger
}

var validate = validator.New()

// Handler runs conditions over entities of type E read from Arrow batches.
type Handler[E any] struct {
	scan    ScanFunc
	mapping map[string]string
	logger  *slog.Logger
	cols    []encode.Column
}

var _ query.Handler[struct{ ID int }] = (*Handler[struct{ ID int }])(nil)

// New validates cfg and creates a handler for E.
func New[E any](cfg Config) (*Handler[E], error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("arrowscan: invalid config: %w", err)
	}
	cols := encode.Columns(reflect.TypeFor[E]())
	if len(cols) == 0 {
		return nil, fmt.Errorf("arrowscan: %s has no columns", reflect.TypeFor[E]())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[E]{scan: cfg.Scan, mapping: cfg.ColumnMapping, logger: logger, cols: cols}, nil
}

// Execute scans the source and returns the entities matching cond.
func (h *Handler[E]) Execute(ctx context.Context, cond *expr.LambdaExpression) ([]E, error) {
	rdr, err := h.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("arrowscan: scan: %w", err)
	}
	defer rdr.Release()

	var out []E
	for rdr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := h.Decode(rdr.RecordBatch())
		if err != nil {
			return nil, err
		}
		rows, err = query.Filter(ctx, h.logger, rows, cond)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("arrowscan: read: %w", err)
	}
	return out, nil
}

// FilterRecords reads rdr to the end and returns a reader over the rows
// matching cond, in input order. The returned batches are slices of the
// input batches. A nil cond keeps every row.
func (h *Handler[E]) FilterRecords(ctx context.Context, rdr array.RecordReader, cond *expr.LambdaExpression) (array.RecordReader, error) {
	var pred func(E) (bool, error)
	if cond != nil {
		var err error
		if pred, err = expr.CompilePredicate[E](cond); err != nil {
			return nil, err
		}
	}

	var kept []arrow.RecordBatch
	defer func() {
		for _, r := range kept {
			r.Release()
		}
	}()
	for rdr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := rdr.RecordBatch()
		if pred == nil {
			rec.Retain()
			kept = append(kept, rec)
			continue
		}
		rows, err := h.Decode(rec)
		if err != nil {
			return nil, err
		}
		runs, err := h.matchRuns(rows, pred)
		if err != nil {
			return nil, err
		}
		for _, r := range runs {
			kept = append(kept, rec.NewSlice(r[0], r[1]))
		}
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("arrowscan: read: %w", err)
	}
	return array.NewRecordReader(rdr.Schema(), kept)
}

// matchRuns returns the [start, end) row ranges for which pred holds.
func (h *Handler[E]) matchRuns(rows []E, pred func(E) (bool, error)) ([][2]int64, error) {
	var runs [][2]int64
	start := int64(-1)
	for i, row := range rows {
		ok, err := recovery.RecoverToValue(h.logger, "FilterRecords", func() (bool, error) {
			return pred(row)
		})
		if err != nil {
			return nil, err
		}
		switch {
		case ok && start < 0:
			start = int64(i)
		case !ok && start >= 0:
			runs = append(runs, [2]int64{start, int64(i)})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int64{start, int64(len(rows))})
	}
	return runs, nil
}

// Decode converts every row of rec into an E.
func (h *Handler[E]) Decode(rec arrow.RecordBatch) ([]E, error) {
	schema := rec.Schema()
	arrays := make([]arrow.Array, len(h.cols))
	for i, c := range h.cols {
		name := c.Name
		if mapped, ok := h.mapping[name]; ok {
			name = mapped
		}
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("arrowscan: column %s not found in schema", name)
		}
		arrays[i] = rec.Column(idx[0])
	}

	out := make([]E, rec.NumRows())
	for row := range out {
		v := reflect.ValueOf(&out[row]).Elem()
		for i, c := range h.cols {
			if err := assign(v.FieldByIndex(c.Field.Index), arrays[i], row); err != nil {
				return nil, fmt.Errorf("arrowscan: row %d column %s: %w", row, c.Name, err)
			}
		}
	}
	return out, nil
}
