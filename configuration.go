package autofilter

import (
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/predicate"
)

// FilterBuilder is the type-erased view of a Builder[F, E].
type FilterBuilder interface {
	FilterType() reflect.Type
	EntityType() reflect.Type

	// Build accepts a filter as F or *F.
	Build(filter any) (*expr.LambdaExpression, error)
	AssertConfigurationIsValid() error
}

var _ FilterBuilder = (*Builder[struct{}, struct{}])(nil)

type pairKey struct {
	filter reflect.Type
	entity reflect.Type
}

// Configuration is the catalog of filter builders, one per (filter, entity)
// type pair. It is safe for concurrent use.
type Configuration struct {
	mu       sync.RWMutex
	provider predicate.Provider
	logger   *slog.Logger
	builders map[pairKey]FilterBuilder
	order    []FilterBuilder
}

// NewConfiguration creates an empty catalog.
func NewConfiguration(cfg Config) *Configuration {
	return &Configuration{
		provider: cfg.provider(),
		logger:   cfg.logger(),
		builders: make(map[pairKey]FilterBuilder),
	}
}

// Logger returns the configured logger.
func (c *Configuration) Logger() *slog.Logger { return c.logger }

// Provider returns the predicate provider shared by every builder.
func (c *Configuration) Provider() predicate.Provider { return c.provider }

// CreateFilter returns the builder for (F, E), creating it on first call.
// Repeated calls return the same builder.
func CreateFilter[F, E any](c *Configuration) (*Builder[F, E], error) {
	key := pairKey{reflect.TypeFor[F](), reflect.TypeFor[E]()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fb, ok := c.builders[key]; ok {
		return fb.(*Builder[F, E]), nil
	}
	if err := checkPair(key.filter, key.entity); err != nil {
		return nil, err
	}
	b := newBuilder[F, E](c.provider, c.logger)
	c.builders[key] = b
	c.order = append(c.order, b)
	c.logger.Debug("Filter registered", "filter", key.filter.String(), "entity", key.entity.String())
	return b, nil
}

// GetFilter returns the builder registered for (F, E).
func GetFilter[F, E any](c *Configuration) (*Builder[F, E], bool) {
	fb, ok := c.Lookup(reflect.TypeFor[F](), reflect.TypeFor[E]())
	if !ok {
		return nil, false
	}
	return fb.(*Builder[F, E]), true
}

// Lookup returns the builder registered for the filter and entity types.
func (c *Configuration) Lookup(filterType, entityType reflect.Type) (FilterBuilder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fb, ok := c.builders[pairKey{filterType, entityType}]
	return fb, ok
}

// Filters returns every builder in registration order.
func (c *Configuration) Filters() []FilterBuilder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FilterBuilder(nil), c.order...)
}

// AssertConfigurationIsValid validates every builder and joins the errors.
func (c *Configuration) AssertConfigurationIsValid() error {
	var errs []error
	for _, fb := range c.Filters() {
		if err := fb.AssertConfigurationIsValid(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
