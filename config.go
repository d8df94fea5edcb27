package autofilter

import (
	"log/slog"
	"os"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/predicate"
)

// Config contains configuration for a filter Configuration.
type Config struct {
	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// Valid values: slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// PredicateProvider synthesizes the comparison for every mapped property.
	// OPTIONAL: Uses predicate.NewProvider() if nil.
	PredicateProvider predicate.Provider
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *c.LogLevel}))
	}
	return slog.Default()
}

func (c Config) provider() predicate.Provider {
	if c.PredicateProvider != nil {
		return c.PredicateProvider
	}
	return predicate.NewProvider()
}

// Standard errors returned by autofilter packages. Match them with
// errors.Is.
var (
	// ErrArgumentMissing indicates a required argument was nil or empty.
	ErrArgumentMissing = errs.ErrArgumentMissing

	// ErrInvalidArgument indicates an argument of the wrong shape or type,
	// e.g. an accessor that is not a direct member access.
	ErrInvalidArgument = errs.ErrInvalidArgument

	// ErrInvalidOperation indicates an operation called in a state that
	// does not allow it, e.g. building a condition for a null filter value.
	ErrInvalidOperation = errs.ErrInvalidOperation

	// ErrFilterNotMapped indicates no builder is registered for a filter
	// and entity pair.
	ErrFilterNotMapped = errs.ErrFilterNotMapped

	// ErrFilterPropertyMissingMapping indicates filter properties that are
	// neither mapped nor ignored.
	ErrFilterPropertyMissingMapping = errs.ErrFilterPropertyMissingMapping
)

// Comparison kinds, re-exported for mapping calls.
const (
	Equal              = predicate.Equal
	GreaterThan        = predicate.GreaterThan
	GreaterThanOrEqual = predicate.GreaterThanOrEqual
	LessThan           = predicate.LessThan
	LessThanOrEqual    = predicate.LessThanOrEqual
)
