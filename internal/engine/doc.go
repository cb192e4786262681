// Package engine runs tmerge jobs end to end.
//
// A job names a source table, a target table and a planning configuration.
// Run introspects both tables, fetches a cached template, reads the source
// batch and the target rows it touches, plans, stores the plan under a new
// plan id and, when asked, applies it.
//
// The planner never touches the database; everything with side effects
// lives here and in internal/store.
//
// Plan ids come from a PlanIDGenerator: UUIDv7 in production (time
// sortable, so stored plans list in creation order) and fixed sequences in
// tests and golden scenarios.
package engine
