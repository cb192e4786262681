package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	JobOptions
}

// ApplyReport is the output of the apply command.
type ApplyReport struct {
	PlanID   string `json:"plan_id"`
	Job      string `json:"job"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
}

// Text renders the report as one line.
func (r ApplyReport) Text(w io.Writer) {
	fmt.Fprintf(w, "Applied plan %s (%s): %d inserted, %d updated, %d deleted\n",
		r.PlanID, r.Job, r.Inserted, r.Updated, r.Deleted)
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <plan-id>",
		Short: "Apply a stored plan",
		Long: `Apply a stored plan to its target table in one transaction.

The job must have the same configuration the plan was built with. A plan is
applied at most once; if any UPDATE or DELETE no longer finds exactly one
row, nothing is changed.

Example:
  tmerge apply --db ./hr.db --config jobs.yaml --job people 0192f1c4-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	opts.register(cmd, "job the plan was built for (needed when the file holds several)")
	return cmd
}

func runApply(opts *ApplyOptions, planID string, cmd *cobra.Command) error {
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

	stats, err := eng.Apply(ctx, job, planID)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	return formatter.Success(ApplyReport{
		PlanID:   planID,
		Job:      job.Name,
		Inserted: stats.Inserted,
		Updated:  stats.Updated,
		Deleted:  stats.Deleted,
	})
}
