// Package queryir is the abstract form of every statement tmerge sends to
// a database: the source and target reads and the DML that applies a plan.
//
// Readers and executors build queryir values; a backend compiler (see
// internal/querysql) turns them into parameterized SQL. Keeping the
// statements abstract keeps identifier quoting, parameter binding and the
// mandatory ORDER BY in one place.
//
// Query, Predicate and Statement are sealed interfaces: only types in this
// package implement them, so backend type switches are exhaustive.
//
// Rules:
//   - Every Select has an explicit column list and a non-empty OrderBy
//   - Literal values are ir.IRValue (no floats)
//   - RowIn rows have the same arity as their field list
package queryir
