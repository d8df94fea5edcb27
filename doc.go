// Package autofilter maps filter structs to predicates over entity structs.
//
// A filter type holds search criteria (pointer fields, slices, ranges); an
// entity type is the domain row. A Configuration holds one Builder per
// (filter, entity) pair. Builders pair same-named fields automatically,
// accept explicit mappings and validate that every filter field is covered.
// An Engine then turns a filter instance into an expression tree over the
// entity type that can be evaluated in memory, encoded as SQL or applied to
// Arrow record batches.
//
// # Quick Start
//
//	type User struct {
//	    Name string
//	    Age  int
//	    Tags []string
//	}
//
//	type UserFilter struct {
//	    Name   *string
//	    Age    autofilter.RangeFilter[int]
//	    Tags   []string `autofilter:"Tags"`
//	    MinAge *int     `autofilter:"Age,lte"`
//	    Debug  bool     `autofilter:"-"`
//	}
//
//	cfg := autofilter.NewConfiguration(autofilter.Config{})
//	if _, err := autofilter.CreateFilter[UserFilter, User](cfg); err != nil {
//	    return err
//	}
//	if err := cfg.AssertConfigurationIsValid(); err != nil {
//	    return err
//	}
//
//	eng := autofilter.NewEngine(cfg)
//	cond, err := autofilter.BuildExpression[UserFilter, User](eng, &UserFilter{
//	    Age: autofilter.Between(18, 65),
//	})
//	// cond: e => ((IsNull(...) || ...) && ...)
//
//	match, err := expr.CompilePredicate[User](cond)
//
// # Semantics
//
// Comparisons read filter value first: a filter field tagged gt matches
// entities whose property is less than the filter value. Null and empty
// filter values (nil pointers, empty slices and strings) are skipped unless
// the property map is switched to FilterByNull. A filter with no usable
// values yields e => true, or the builder's empty expression handler.
//
// # Concurrency
//
// Configuration and Engine are safe for concurrent use. Configure builders
// before building expressions with them.
package autofilter
