// Package query executes condition expressions against row sources.
//
// A Handler receives the entity predicate built by an autofilter Engine and
// returns the matching rows. The in-memory handler evaluates the predicate
// directly; the SQL handlers in the subpackages push it down as a WHERE
// clause and evaluate in memory only what could not be encoded.
package query

import (
	"context"
	"log/slog"

	"github.com/hugr-lab/autofilter-go"
	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/internal/recovery"
)

const pkg = "query"

// checkEvery is the number of rows evaluated between context checks.
const checkEvery = 1024

// Handler executes a condition over entities of type E.
type Handler[E any] interface {
	// Execute returns the rows for which cond holds. A nil cond selects
	// every row.
	Execute(ctx context.Context, cond *expr.LambdaExpression) ([]E, error)
}

// Find builds the condition for filter and executes it with h.
func Find[F, E any](ctx context.Context, eng *autofilter.Engine, h Handler[E], filter *F) ([]E, error) {
	if eng == nil {
		return nil, errs.Missing(pkg, "engine")
	}
	if h == nil {
		return nil, errs.Missing(pkg, "handler")
	}
	cond, err := autofilter.BuildExpression[F, E](eng, filter)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, cond)
}

// Filter returns the rows of in for which cond holds. A panic raised while
// evaluating a row is recovered and returned as an error.
func Filter[E any](ctx context.Context, logger *slog.Logger, in []E, cond *expr.LambdaExpression) ([]E, error) {
	if cond == nil {
		return in, nil
	}
	pred, err := expr.CompilePredicate[E](cond)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(in))
	for i, row := range in {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ok, err := recovery.RecoverToValue(logger, "Filter", func() (bool, error) {
			return pred(row)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}
