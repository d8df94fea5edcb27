// Package encode renders condition expressions as SQL WHERE clause bodies.
//
// Member chains rooted at the entity parameter become columns named by the
// `db` struct tag or the snake_case field name; nested structs are joined
// with an underscore (Address.City becomes address_city). Parameter free
// subtrees are evaluated and rendered as literals, so a bound filter value
// such as a range collapses to the bounds that are actually set.
//
// Unsupported nodes follow the pushdown rules:
//   - AND: unsupported children are skipped, the rest are kept
//   - OR: if any child is unsupported, the whole disjunction is skipped
//   - NOT and CASE: any unsupported child makes the node unsupported
//
// EncodeCondition reports whether anything was skipped so callers can
// filter the returned rows again in memory.
package encode
