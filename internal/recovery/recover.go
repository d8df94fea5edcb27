// Package recovery guards calls into user supplied code (predicates, empty
// expression handlers, initializers, row scanners) so a panic surfaces as an
// error instead of crashing the caller.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic is logged with its stack and returned
// as an error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "CreateFilter", func() error {
//	    return init.CreateFilter(cfg)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and error.
//
// Example:
//
//	cond, err := recovery.RecoverToValue(logger, "BuildExpression", func() (*expr.LambdaExpression, error) {
//	    return b.BuildExpression(filter)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			var zero T
			result = zero
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

func logPanic(logger *slog.Logger, operation string, r any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}
