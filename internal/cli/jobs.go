package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tmerge/internal/cache"
	"github.com/roach88/tmerge/internal/config"
	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/store"
)

// JobOptions are the flags shared by commands that run jobs.
type JobOptions struct {
	Database string
	Config   string
	Jobs     []string

	// PlanIDs overrides the plan id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	PlanIDs engine.PlanIDGenerator
}

func (o *JobOptions) register(cmd *cobra.Command, jobUsage string) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&o.Config, "config", "c", "", "job file, YAML or CUE (required)")
	cmd.Flags().StringSliceVarP(&o.Jobs, "job", "j", nil, jobUsage)
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("config")
}

// loadJobs reads the job file and returns the named jobs, or all of them
// when names is empty.
func loadJobs(path string, names []string) ([]engine.Job, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		jobs := make([]engine.Job, len(f.Jobs))
		for i, j := range f.Jobs {
			jobs[i] = j.EngineJob()
		}
		return jobs, nil
	}

	jobs := make([]engine.Job, 0, len(names))
	for _, name := range names {
		j, ok := f.Find(name)
		if !ok {
			return nil, fmt.Errorf("job %q not found in %s", name, path)
		}
		jobs = append(jobs, j.EngineJob())
	}
	return jobs, nil
}

// singleJob loads exactly one job: the named one, or the only job in the file.
func singleJob(o *JobOptions) (engine.Job, error) {
	if len(o.Jobs) > 1 {
		return engine.Job{}, fmt.Errorf("exactly one --job expected, got %d", len(o.Jobs))
	}
	jobs, err := loadJobs(o.Config, o.Jobs)
	if err != nil {
		return engine.Job{}, err
	}
	if len(jobs) != 1 {
		return engine.Job{}, fmt.Errorf("%s holds %d jobs: select one with --job", o.Config, len(jobs))
	}
	return jobs[0], nil
}

// openStore opens an existing database. Unlike store.Open it refuses to
// create a new file: a missing database is a command error.
func openStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func newEngine(st *store.Store, ids engine.PlanIDGenerator) (*engine.Engine, error) {
	templates, err := cache.New(cache.DefaultSize)
	if err != nil {
		return nil, err
	}
	return engine.New(st, templates, ids), nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose > 0,
	}
}
