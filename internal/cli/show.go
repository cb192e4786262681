package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database  string
	Operation []string // optional - filter to specific operations
}

// PlanView is the output of the show command.
type PlanView struct {
	Plan store.PlanMeta    `json:"plan"`
	Rows []planner.PlanRow `json:"rows"`
}

// Text renders the plan header and one line per row.
func (v PlanView) Text(w io.Writer) {
	fmt.Fprintf(w, "Plan: %s\n", v.Plan.PlanID)
	fmt.Fprintf(w, "  %s -> %s, %d rows, applied: %t\n", v.Plan.SourceTable, v.Plan.TargetTable, v.Plan.RowCount, v.Plan.Applied)
	fmt.Fprintf(w, "  config %s, digest %s, planner %s\n\n", shortHash(v.Plan.ConfigHash), shortHash(v.Plan.Digest), v.Plan.PlannerVersion)

	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = []string{
			strconv.FormatInt(r.PlanOpSeq, 10),
			strconv.Itoa(r.StatementSeq),
			operationLabel(r),
			ir.PgText(r.EntityKeys),
			periodLabel(r.OldValidFrom, r.OldValidUntil),
			periodLabel(r.NewValidFrom, r.NewValidUntil),
			formatRowIDs(r.RowIDs),
			feedbackLabel(r),
		}
	}
	table(w, []string{"SEQ", "STMT", "OPERATION", "ENTITY", "OLD", "NEW", "ROWS", "NOTE"}, rows)
}

func operationLabel(r planner.PlanRow) string {
	if r.UpdateEffect != "" && r.UpdateEffect != planner.EffectNone {
		return fmt.Sprintf("%s(%s)", r.Operation, r.UpdateEffect)
	}
	return string(r.Operation)
}

func periodLabel(from, until string) string {
	if from == "" && until == "" {
		return "-"
	}
	return "[" + from + ", " + until + ")"
}

func formatRowIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func feedbackLabel(r planner.PlanRow) string {
	if len(r.Feedback) == 0 {
		return ""
	}
	for _, key := range []string{"error", "info"} {
		if s, ok := r.Feedback[key].(ir.IRString); ok {
			return string(s)
		}
	}
	return ir.PgText(r.Feedback)
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show the rows of a stored plan",
		Long: `Show a stored plan in execution order.

Examples:
  tmerge show --db ./hr.db 0192f1c4-...
  tmerge show --db ./hr.db 0192f1c4-... --op ERROR --op SKIP_FILTERED
  tmerge show --db ./hr.db 0192f1c4-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringSliceVar(&opts.Operation, "op", nil, "only show rows with this operation (repeatable)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runShow(opts *ShowOptions, planID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, rows, err := st.ReadPlan(cmd.Context(), planID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return formatter.Fail(ExitFailure, err)
		}
		return formatter.Fail(ExitCommandError, err)
	}

	if len(opts.Operation) > 0 {
		keep := make(map[planner.Operation]bool, len(opts.Operation))
		for _, op := range opts.Operation {
			keep[planner.Operation(strings.ToUpper(op))] = true
		}
		filtered := rows[:0]
		for _, r := range rows {
			if keep[r.Operation] {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	return formatter.Success(PlanView{Plan: meta, Rows: rows})
}
