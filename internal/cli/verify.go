package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// VerifyReport is the output of the verify command.
type VerifyReport struct {
	PlanID string `json:"plan_id"`
	Job    string `json:"job"`
	Match  bool   `json:"match"`
}

// Text renders the verdict.
func (r VerifyReport) Text(w io.Writer) {
	if r.Match {
		fmt.Fprintf(w, "✓ plan %s still matches the data\n", r.PlanID)
		return
	}
	fmt.Fprintf(w, "✗ plan %s is stale: replanning gives a different result\n", r.PlanID)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <plan-id>",
		Short: "Check that a stored plan still matches the data",
		Long: `Replan the job without storing anything and compare the result with a
stored plan. Planning is deterministic, so a difference means the source or
target rows changed since the plan was made.

Exit codes:
  0 - Plan matches
  1 - Plan is stale, or the job does not fit the plan
  2 - Command error

Example:
  tmerge verify --db ./hr.db --config jobs.yaml --job people 0192f1c4-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	opts.register(cmd, "job the plan was built for (needed when the file holds several)")
	return cmd
}

func runVerify(opts *ApplyOptions, planID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	job, err := singleJob(&opts.JobOptions)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := newEngine(st, nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	match, err := eng.Verify(ctx, job, planID)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	if err := formatter.Success(VerifyReport{PlanID: planID, Job: job.Name, Match: match}); err != nil {
		return err
	}
	if !match {
		return reportedExitError(ExitFailure, "plan is stale")
	}
	return nil
}
