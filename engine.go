package autofilter

import (
	"reflect"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/internal/recovery"
)

// Engine builds expressions from filter instances using the builders of a
// Configuration.
type Engine struct {
	config *Configuration
}

// NewEngine creates an engine over c.
func NewEngine(c *Configuration) *Engine {
	return &Engine{config: c}
}

// Configuration returns the catalog the engine reads.
func (e *Engine) Configuration() *Configuration { return e.config }

// BuildExpression builds the predicate over E for filter. It fails with a
// *errs.FilterNotMappedError when no builder is registered for (F, E).
func BuildExpression[F, E any](eng *Engine, filter *F) (*expr.LambdaExpression, error) {
	if filter == nil {
		return nil, errs.Missing(pkg, "filter")
	}
	b, ok := GetFilter[F, E](eng.config)
	if !ok {
		return nil, &errs.FilterNotMappedError{FilterType: reflect.TypeFor[F](), EntityType: reflect.TypeFor[E]()}
	}
	return recovery.RecoverToValue(eng.config.logger, "BuildExpression", func() (*expr.LambdaExpression, error) {
		return b.BuildExpression(filter)
	})
}

// Build is the type-erased BuildExpression. filter is an F or *F value.
func (e *Engine) Build(filter any, entityType reflect.Type) (*expr.LambdaExpression, error) {
	if filter == nil {
		return nil, errs.Missing(pkg, "filter")
	}
	if entityType == nil {
		return nil, errs.Missing(pkg, "entity type")
	}
	ft := reflect.TypeOf(filter)
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	fb, ok := e.config.Lookup(ft, entityType)
	if !ok {
		return nil, &errs.FilterNotMappedError{FilterType: ft, EntityType: entityType}
	}
	return recovery.RecoverToValue(e.config.logger, "BuildExpression", func() (*expr.LambdaExpression, error) {
		return fb.Build(filter)
	})
}
