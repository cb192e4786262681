package store

import "errors"

var (
	// ErrTableNotFound is returned when introspection finds no columns.
	ErrTableNotFound = errors.New("table not found")

	// ErrPlanNotFound is returned when no plan has the requested id.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanConflict is returned when a plan id is reused for different rows.
	ErrPlanConflict = errors.New("plan id already holds a different plan")

	// ErrPlanApplied is returned when a plan is applied a second time.
	ErrPlanApplied = errors.New("plan already applied")
)
