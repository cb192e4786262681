package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tmerge/internal/cache"
	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/store"
)

// Harness runs scenarios. The zero value discards logs.
type Harness struct {
	logger zerolog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database in its own temporary directory.
// An error is returned when the scenario cannot be set up; failures of
// the merge itself are reported in the result, unless the scenario
// expects no error at all, in which case they are returned too.
//
// Execution flow:
//  1. Create a database and run the setup scripts
//  2. Plan (and apply, if the job says so) through the engine
//  3. Replan for idempotent scenarios
//  4. Capture snapshot tables and evaluate assertions
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "tmerge-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	for i, script := range scenario.Setup {
		if err := st.Exec(ctx, script); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	job, err := scenario.EngineJob()
	if err != nil {
		return nil, err
	}

	templates, err := cache.New(cache.DefaultSize)
	if err != nil {
		return nil, err
	}
	planID := scenario.planID()
	ids := engine.NewFixedGenerator(planID, planID+"-replan")
	eng := engine.New(st, templates, ids, engine.WithLogger(h.logger))

	result := NewResult()
	result.Era = job.Config.Era
	res, err := eng.Run(ctx, job)
	if scenario.ExpectError != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("expected error containing %q, run succeeded", scenario.ExpectError))
		case !strings.Contains(err.Error(), scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected error containing %q, got: %v", scenario.ExpectError, err))
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.PlanID = res.Plan.PlanID
	result.Rows = res.Rows
	result.Summary = res.Summary
	result.Applied = res.Applied

	if scenario.Idempotent {
		replan, err := eng.Run(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("replan: %w", err)
		}
		for _, row := range replan.Rows {
			if row.Operation.IsDML() {
				result.ReplanDML++
			}
		}
		if result.ReplanDML > 0 {
			result.AddError(fmt.Sprintf("replan after apply is not a no-op: %d DML rows\n%s",
				result.ReplanDML, strings.Join(describePlan(replan.Rows), "\n")))
		}
	}

	for _, table := range scenario.Snapshot {
		rows, err := st.ReadTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		result.Tables[table] = rows
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}
	return result, nil
}

// RunAll executes scenarios concurrently, at most limit at a time
// (unlimited when limit <= 0). Results are in scenario order.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario, limit int) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := h.Run(gctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
