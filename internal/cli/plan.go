package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/planner"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	JobOptions
	Apply    bool
	Parallel int
}

// JobReport describes one planned job.
type JobReport struct {
	Job      string         `json:"job"`
	Target   string         `json:"target"`
	PlanID   string         `json:"plan_id"`
	Rows     int            `json:"rows"`
	Summary  map[string]int `json:"summary"`
	Applied  bool           `json:"applied"`
	Inserted int            `json:"inserted,omitempty"`
	Updated  int            `json:"updated,omitempty"`
	Deleted  int            `json:"deleted,omitempty"`
}

// PlanReport is the output of the plan command.
type PlanReport struct {
	Jobs []JobReport `json:"jobs"`
}

// Text renders the report as a table.
func (r PlanReport) Text(w io.Writer) {
	rows := make([][]string, len(r.Jobs))
	for i, j := range r.Jobs {
		applied := "no"
		if j.Applied {
			applied = fmt.Sprintf("+%d ~%d -%d", j.Inserted, j.Updated, j.Deleted)
		}
		rows[i] = []string{j.Job, j.Target, j.PlanID, strconv.Itoa(j.Rows), formatSummary(j.Summary), applied}
	}
	table(w, []string{"JOB", "TARGET", "PLAN", "ROWS", "OPERATIONS", "APPLIED"}, rows)
}

func newJobReport(res *engine.Result) JobReport {
	summary := make(map[string]int, len(res.Summary))
	for op, n := range res.Summary {
		summary[string(op)] = n
	}
	return JobReport{
		Job:      res.Job.Name,
		Target:   res.Job.TargetTable,
		PlanID:   res.Plan.PlanID,
		Rows:     len(res.Rows),
		Summary:  summary,
		Applied:  res.Applied,
		Inserted: res.ApplyStats.Inserted,
		Updated:  res.ApplyStats.Updated,
		Deleted:  res.ApplyStats.Deleted,
	}
}

// formatSummary renders operation counts in plan order, e.g. "UPDATE=1 INSERT=2".
func formatSummary(summary map[string]int) string {
	order := []planner.Operation{
		planner.OpDelete, planner.OpUpdate, planner.OpInsert,
		planner.OpSkipIdentical, planner.OpSkipNoTarget, planner.OpSkipFiltered,
		planner.OpSkipEclipsed, planner.OpError,
	}
	var parts []string
	for _, op := range order {
		if n := summary[string(op)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", op, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan (and optionally apply) merge jobs",
		Long: `Plan the jobs of a job file and store the plans in the database.

Every job reads its source table and the affected target timelines, computes
the merge plan and stores it under a new plan id. With --apply the plan is
executed right away in one transaction.

Examples:
  tmerge plan --db ./hr.db --config jobs.yaml
  tmerge plan --db ./hr.db --config jobs.yaml --job people --apply
  tmerge plan --db ./hr.db --config jobs.yaml --parallel 4 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	opts.register(cmd, "job to run (repeatable; default all)")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "apply each plan after storing it")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "jobs planned concurrently (0 = unlimited)")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	jobs, err := loadJobs(opts.Config, opts.Jobs)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	if opts.Apply {
		for i := range jobs {
			jobs[i].Apply = true
		}
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := newEngine(st, opts.PlanIDs)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	formatter.VerboseLog("Running %d job(s) from %s", len(jobs), opts.Config)
	results, err := eng.RunAll(ctx, jobs, opts.Parallel)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	report := PlanReport{Jobs: make([]JobReport, 0, len(results))}
	for _, res := range results {
		report.Jobs = append(report.Jobs, newJobReport(res))
	}
	slices.SortStableFunc(report.Jobs, func(a, b JobReport) int {
		return strings.Compare(a.Job, b.Job)
	})
	return formatter.Success(report)
}
