package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tmerge/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// PlanList is the output of the list command.
type PlanList struct {
	Plans []store.PlanMeta `json:"plans"`
}

// Text renders the plans as a table.
func (l PlanList) Text(w io.Writer) {
	rows := make([][]string, len(l.Plans))
	for i, p := range l.Plans {
		applied := "no"
		if p.Applied {
			applied = "yes"
		}
		rows[i] = []string{p.PlanID, p.SourceTable, p.TargetTable, strconv.Itoa(p.RowCount), applied, shortHash(p.ConfigHash)}
	}
	table(w, []string{"PLAN", "SOURCE", "TARGET", "ROWS", "APPLIED", "CONFIG"}, rows)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plans",
		Long: `List the plans stored in the database, oldest first.

Example:
  tmerge list --db ./hr.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	plans, err := st.ListPlans(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if len(plans) == 0 && opts.Format != "json" {
		_, err := io.WriteString(cmd.OutOrStdout(), "No plans found.\n")
		return err
	}
	return formatter.Success(PlanList{Plans: plans})
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
