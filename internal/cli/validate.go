package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tmerge/internal/config"
	"github.com/roach88/tmerge/internal/planner"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Database string // optional - also check the jobs against the tables
}

// JobCheck is the validation outcome of one job.
type JobCheck struct {
	Job        string `json:"job"`
	Valid      bool   `json:"valid"`
	Strategy   string `json:"strategy,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool       `json:"valid"`
	Jobs  []JobCheck `json:"jobs"`
}

// Text renders one line per job.
func (r ValidationResult) Text(w io.Writer) {
	for _, j := range r.Jobs {
		if j.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", j.Job, j.Strategy)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n  [%s] %s\n", j.Job, j.Code, j.Error)
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job file",
		Long: `Validate a job file without planning anything.

Checks the file against the job schema and every job's configuration
(merge and delete modes, era, key columns). With --db the jobs are also
checked against the current source and target tables.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "also check jobs against this database")
	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	f, err := config.Load(path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	formatter.VerboseLog("Loaded %d job(s) from %s", len(f.Jobs), path)

	result := ValidationResult{Valid: true, Jobs: make([]JobCheck, 0, len(f.Jobs))}
	for _, j := range f.Jobs {
		check := JobCheck{Job: j.Name}
		ctx, err := planner.NewContext(j.PlannerConfig())
		if err != nil {
			check.Code, _ = errorCode(err)
			check.Error = err.Error()
		} else {
			check.Valid = true
			check.Strategy = ctx.Strategy.String()
		}
		result.Jobs = append(result.Jobs, check)
	}

	if opts.Database != "" {
		if err := checkTables(opts, f, &result, cmd); err != nil {
			return err
		}
	}

	for _, j := range result.Jobs {
		if !j.Valid {
			result.Valid = false
		}
	}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return reportedExitError(ExitFailure, "job file is invalid")
	}
	return nil
}

// checkTables builds each valid job's template against the database.
func checkTables(opts *ValidateOptions, f *config.File, result *ValidationResult, cmd *cobra.Command) error {
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := newEngine(st, nil)
	if err != nil {
		return err
	}
	for i, j := range f.Jobs {
		check := &result.Jobs[i]
		if !check.Valid {
			continue
		}
		hash, err := eng.Check(cmd.Context(), j.EngineJob())
		if err != nil {
			check.Valid = false
			check.Code, _ = errorCode(err)
			check.Error = err.Error()
			continue
		}
		check.ConfigHash = hash
	}
	return nil
}
