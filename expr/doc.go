// Package expr provides a small, immutable expression tree for boolean
// predicates over Go values.
//
// Trees are built with the constructor functions (Field, Equal, AndAlso,
// Lambda, Call, ...), which validate operand types up front. A finished
// lambda can be evaluated in memory with Compile or CompilePredicate,
// rendered for debugging with String, translated to SQL by the encode
// package or serialized by the wire package.
//
// # Node Types
//
//   - BinaryExpression: Equal, NotEqual, GreaterThan, GreaterThanOrEqual,
//     LessThan, LessThanOrEqual, AndAlso, OrElse
//   - UnaryExpression: Not, Convert, IsNull
//   - ConstantExpression, ParameterExpression
//   - MemberExpression: exported struct field access
//   - MethodCallExpression: calls of registered methods (Contains, Any)
//   - LambdaExpression, ConditionalExpression, InvocationExpression
//
// # Null Semantics
//
// Pointers to value types act as nullable values. Comparisons follow lifted
// relational semantics: null equals null, null never equals a value, and any
// ordering comparison involving null is false.
//
// # Rewriting
//
// Replace substitutes one node for another anywhere in a tree. Only the
// ancestors of a replaced node are rebuilt; when nothing matches, the
// original tree is returned as is.
//
//	lambda, _ := expr.PropertyOf[User]("Age")
//	param, _ := expr.Parameter(reflect.TypeFor[User](), "u")
//	body, _ := expr.Replace(lambda.Body(), lambda.Parameter(0), param)
package expr
