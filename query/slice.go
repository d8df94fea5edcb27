package query

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hugr-lab/autofilter-go/expr"
)

// SliceHandler evaluates conditions over an in-memory slice.
type SliceHandler[E any] struct {
	rows   []E
	logger *slog.Logger
}

var _ Handler[struct{}] = (*SliceHandler[struct{}])(nil)

// NewSliceHandler returns a handler over rows. The slice is not copied;
// callers must not modify it while queries run.
func NewSliceHandler[E any](rows []E, logger *slog.Logger) *SliceHandler[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &SliceHandler[E]{rows: rows, logger: logger}
}

// Execute returns a new slice holding the matching rows.
func (h *SliceHandler[E]) Execute(ctx context.Context, cond *expr.LambdaExpression) ([]E, error) {
	if cond == nil {
		return slices.Clone(h.rows), nil
	}
	return Filter(ctx, h.logger, h.rows, cond)
}
