package harness

import (
	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	PlanID  string                    `json:"plan_id,omitempty"`
	Rows    []planner.PlanRow         `json:"rows"`
	Summary map[planner.Operation]int `json:"summary"`
	Applied bool                      `json:"applied"`

	// ReplanDML counts INSERT/UPDATE/DELETE rows of the replan done for
	// idempotent scenarios.
	ReplanDML int `json:"replan_dml,omitempty"`

	// Tables holds the final contents of the snapshot tables.
	Tables map[string][]ir.IRObject `json:"tables,omitempty"`

	// Era is the job's era, used to read periods back from tables.
	Era planner.Era `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Rows:    []planner.PlanRow{},
		Summary: make(map[planner.Operation]int),
		Errors:  []string{},
		Tables:  make(map[string][]ir.IRObject),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Row returns the plan row with the given plan_op_seq.
func (r *Result) Row(seq int64) (planner.PlanRow, bool) {
	for _, row := range r.Rows {
		if row.PlanOpSeq == seq {
			return row, true
		}
	}
	return planner.PlanRow{}, false
}
