// Package planner computes temporal merge plans.
//
// Given a batch of source rows and the existing rows of a temporal table,
// the planner decides, entity by entity and interval by interval, which
// INSERT, UPDATE and DELETE statements bring the table to the state the
// batch implies. It never touches a database: readers in internal/rowset
// and internal/store feed it rows, and executors consume its plan.
//
// The pipeline:
//
//	correlate → canonicalize → eclipse → group → filter by mode →
//	segment → resolve → coalesce → diff → classify → sequence
//
// Key constraints:
//   - Deterministic: identical inputs give identical plans
//   - Plans are totally ordered by plan_op_seq
//   - Executing statements in statement_seq order never overlaps two rows
//     of one entity
//   - Per-row problems are reported as ERROR or SKIP rows, never as errors
package planner
