package autofilter

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/hugr-lab/autofilter-go/internal/recovery"
)

// FilterInitializer registers and configures filters on a Configuration,
// typically one (filter, entity) pair per initializer:
//
//	type userFilters struct{}
//
//	func (userFilters) CreateFilter(c *autofilter.Configuration) error {
//	    b, err := autofilter.CreateFilter[UserFilter, User](c)
//	    if err != nil {
//	        return err
//	    }
//	    return autofilter.IgnoreField(b, func(f *UserFilter) *bool { return &f.Debug })
//	}
//
//	func init() { autofilter.Register(userFilters{}) }
type FilterInitializer interface {
	CreateFilter(c *Configuration) error
}

// InitializerFunc adapts a function to FilterInitializer.
type InitializerFunc func(c *Configuration) error

func (f InitializerFunc) CreateFilter(c *Configuration) error { return f(c) }

var registry struct {
	mu    sync.Mutex
	inits []FilterInitializer
}

// Register adds init to the package registry read by AddRegistered.
// Call it from an init function.
func Register(init FilterInitializer) {
	if init == nil {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.inits = append(registry.inits, init)
}

// Registered returns the registered initializers in registration order.
func Registered() []FilterInitializer {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return append([]FilterInitializer(nil), registry.inits...)
}

// Initialization collects initializers to run against a Configuration.
type Initialization struct {
	config   *Configuration
	inits    []FilterInitializer
	excluded map[reflect.Type]bool
}

// InitializeFilters starts an initialization for c.
func InitializeFilters(c *Configuration) *Initialization {
	return &Initialization{config: c, excluded: make(map[reflect.Type]bool)}
}

// Add appends initializers.
func (i *Initialization) Add(inits ...FilterInitializer) *Initialization {
	for _, init := range inits {
		if init != nil {
			i.inits = append(i.inits, init)
		}
	}
	return i
}

// AddRegistered appends every initializer passed to Register.
func (i *Initialization) AddRegistered() *Initialization {
	return i.Add(Registered()...)
}

// Exclude skips initializers with the same dynamic type as any of inits.
func (i *Initialization) Exclude(inits ...FilterInitializer) *Initialization {
	for _, init := range inits {
		if init != nil {
			i.excluded[reflect.TypeOf(init)] = true
		}
	}
	return i
}

// Apply runs the collected initializers once each, in order, and returns
// their joined errors. A panicking initializer is reported as an error.
func (i *Initialization) Apply() error {
	var errs []error
	seen := make(map[FilterInitializer]bool)
	for _, init := range i.inits {
		t := reflect.TypeOf(init)
		if i.excluded[t] || seenInit(seen, init) {
			continue
		}
		err := recovery.RecoverToError(i.config.logger, "CreateFilter", func() error {
			return init.CreateFilter(i.config)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: initializer %s: %w", pkg, t, err))
			continue
		}
		i.config.logger.Debug("Filter initializer applied", "initializer", t.String())
	}
	return errors.Join(errs...)
}

// seenInit deduplicates comparable initializers; others always run.
func seenInit(seen map[FilterInitializer]bool, init FilterInitializer) bool {
	if !reflect.TypeOf(init).Comparable() {
		return false
	}
	if seen[init] {
		return true
	}
	seen[init] = true
	return false
}
