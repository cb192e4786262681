package ir

// Version constants for the plan format and the planner.
const (
	// PlanFormatVersion is the plan row schema version.
	PlanFormatVersion = "1"

	// PlannerVersion is the tmerge planner version.
	PlannerVersion = "0.1.0"
)
