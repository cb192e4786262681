package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tmerge/internal/cache"
	"github.com/roach88/tmerge/internal/logging"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/store"
)

// Job is one merge of a source table into a target table.
type Job struct {
	Name        string
	SourceTable string
	TargetTable string
	Config      planner.Config
	// Apply executes the plan after storing it.
	Apply bool
}

// Result describes a finished job.
type Result struct {
	Job        Job
	Plan       store.PlanMeta
	Rows       []planner.PlanRow
	Summary    map[planner.Operation]int
	Applied    bool
	ApplyStats store.ApplyResult
}

// Engine runs jobs against one store.
//
// Thread-safety: Run may be called concurrently for jobs with distinct
// target tables; the template cache is shared.
type Engine struct {
	store     *store.Store
	templates *cache.Templates
	ids       PlanIDGenerator
	// logger is nil unless set by WithLogger.
	logger *zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The planner logs through it too.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = &l
	}
}

// log returns the logger set by WithLogger, otherwise the engine
// component of the global logger as configured at the time of the call.
func (e *Engine) log() zerolog.Logger {
	if e.logger != nil {
		return *e.logger
	}
	return logging.Component("engine")
}

// New creates an Engine. A nil generator defaults to UUIDv7Generator.
func New(st *store.Store, templates *cache.Templates, ids PlanIDGenerator, opts ...Option) *Engine {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	e := &Engine{
		store:     st,
		templates: templates,
		ids:       ids,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run plans job, stores the plan and applies it when job.Apply is set.
func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	log := e.log().With().Str("job", job.Name).Str("target", job.TargetTable).Logger()
	done := logging.OperationStart(log, "run")
	defer done()

	tpl, err := e.template(ctx, job)
	if err != nil {
		return nil, err
	}
	rows, err := e.plan(ctx, job, tpl, log)
	if err != nil {
		return nil, err
	}

	meta, err := e.store.WritePlan(ctx, store.PlanMeta{
		PlanID:      e.ids.Generate(),
		ConfigHash:  tpl.Hash,
		SourceTable: job.SourceTable,
		TargetTable: job.TargetTable,
	}, rows)
	if err != nil {
		return nil, newRuntimeError(ErrCodeStore, job, err, "write plan")
	}
	log.Info().Str("plan_id", meta.PlanID).Int("rows", meta.RowCount).Msg("plan stored")

	res := &Result{Job: job, Plan: meta, Rows: rows, Summary: Summarize(rows)}
	if !job.Apply {
		return res, nil
	}

	stats, err := e.store.ApplyPlan(ctx, meta.PlanID, tpl.Layout)
	if err != nil {
		re := newRuntimeError(ErrCodeApply, job, err, "apply plan")
		re.PlanID = meta.PlanID
		return res, re
	}
	res.Applied = true
	res.ApplyStats = stats
	log.Info().
		Int("inserted", stats.Inserted).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Msg("plan applied")
	return res, nil
}

// plan reads the job's rows and computes its plan.
func (e *Engine) plan(ctx context.Context, job Job, tpl *cache.Template, log zerolog.Logger) ([]planner.PlanRow, error) {
	sources, err := e.store.ReadSource(ctx, tpl.Layout, job.SourceTable)
	if err != nil {
		return nil, newRuntimeError(ErrCodeRead, job, err, "read source %s", job.SourceTable)
	}
	targets, err := e.store.ReadTargets(ctx, tpl.Layout, job.TargetTable, sources,
		tpl.Context.DeleteMode.DeletesEntities())
	if err != nil {
		return nil, newRuntimeError(ErrCodeRead, job, err, "read target %s", job.TargetTable)
	}
	log.Info().Int("sources", len(sources)).Int("targets", len(targets)).Msg("rows read")

	rows, err := planner.New(tpl.Context, planner.WithLogger(log)).Plan(sources, targets)
	if err != nil {
		return nil, newRuntimeError(ErrCodePlan, job, err, "plan")
	}
	return rows, nil
}

// Check validates job against the current table shapes and returns the
// configuration hash its plans carry.
func (e *Engine) Check(ctx context.Context, job Job) (string, error) {
	tpl, err := e.template(ctx, job)
	if err != nil {
		return "", err
	}
	return tpl.Hash, nil
}

// Verify replans job without storing anything and reports whether the
// result matches the stored plan's digest. A mismatch means source or
// target rows changed since the plan was made.
func (e *Engine) Verify(ctx context.Context, job Job, planID string) (bool, error) {
	log := e.log().With().Str("job", job.Name).Str("plan_id", planID).Logger()
	tpl, err := e.template(ctx, job)
	if err != nil {
		return false, err
	}

	meta, _, err := e.store.ReadPlan(ctx, planID)
	if err != nil {
		re := newRuntimeError(ErrCodeStore, job, err, "read plan")
		re.PlanID = planID
		return false, re
	}
	if meta.ConfigHash != tpl.Hash {
		re := newRuntimeError(ErrCodeConfigMismatch, job, nil,
			"plan was built for config %s, job has %s", short(meta.ConfigHash), short(tpl.Hash))
		re.PlanID = planID
		return false, re
	}

	rows, err := e.plan(ctx, job, tpl, log)
	if err != nil {
		return false, err
	}
	digest, err := store.PlanDigest(rows)
	if err != nil {
		return false, newRuntimeError(ErrCodeStore, job, err, "digest")
	}
	log.Debug().Bool("match", digest == meta.Digest).Msg("plan verified")
	return digest == meta.Digest, nil
}

// Apply executes a previously stored plan. The job must describe the same
// configuration and table shapes the plan was built from.
func (e *Engine) Apply(ctx context.Context, job Job, planID string) (store.ApplyResult, error) {
	tpl, err := e.template(ctx, job)
	if err != nil {
		return store.ApplyResult{}, err
	}

	meta, _, err := e.store.ReadPlan(ctx, planID)
	if err != nil {
		re := newRuntimeError(ErrCodeStore, job, err, "read plan")
		re.PlanID = planID
		return store.ApplyResult{}, re
	}
	if meta.ConfigHash != tpl.Hash {
		re := newRuntimeError(ErrCodeConfigMismatch, job, nil,
			"plan was built for config %s, job has %s", short(meta.ConfigHash), short(tpl.Hash))
		re.PlanID = planID
		return store.ApplyResult{}, re
	}

	stats, err := e.store.ApplyPlan(ctx, planID, tpl.Layout)
	if err != nil {
		re := newRuntimeError(ErrCodeApply, job, err, "apply plan")
		re.PlanID = planID
		return store.ApplyResult{}, re
	}
	return stats, nil
}

// RunAll runs jobs concurrently, at most limit at a time (unlimited when
// limit <= 0). Results are returned in job order. Jobs may not share a
// target table.
func (e *Engine) RunAll(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	seen := make(map[string]string, len(jobs))
	for _, j := range jobs {
		if other, ok := seen[j.TargetTable]; ok {
			return nil, newRuntimeError(ErrCodeConflictingJobs, j, nil,
				"jobs %q and %q both write %s", other, j.Name, j.TargetTable)
		}
		seen[j.TargetTable] = j.Name
	}

	results := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := e.Run(gctx, job)
			results[i] = res
			return err
		})
	}
	return results, g.Wait()
}

// template introspects both tables and returns the cached template for
// the job's configuration and the tables' current shapes.
func (e *Engine) template(ctx context.Context, job Job) (*cache.Template, error) {
	src, err := e.store.Introspect(ctx, job.SourceTable)
	if err != nil {
		return nil, newRuntimeError(ErrCodeIntrospect, job, err, "introspect %s", job.SourceTable)
	}
	tgt, err := e.store.Introspect(ctx, job.TargetTable)
	if err != nil {
		return nil, newRuntimeError(ErrCodeIntrospect, job, err, "introspect %s", job.TargetTable)
	}

	cfg := job.Config
	cfg.ExcludeIfNullColumns = append(append([]string(nil), cfg.ExcludeIfNullColumns...), tgt.DefaultedNotNull()...)

	tpl, err := e.templates.GetOrBuild(cache.Key{
		Config:        cfg,
		SourceTable:   job.SourceTable,
		TargetTable:   job.TargetTable,
		SourceColumns: src.ColumnNames(),
		TargetColumns: tgt.ColumnNames(),
		PKColumns:     tgt.PKColumns(),
	})
	if err != nil {
		var cfgErr *planner.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, newRuntimeError(ErrCodeTemplate, job, err, "build template")
	}
	log := e.log()
	log.Debug().Str("config_hash", short(tpl.Hash)).Msg("template ready")
	return tpl, nil
}

// Summarize counts plan rows per operation.
func Summarize(rows []planner.PlanRow) map[planner.Operation]int {
	out := make(map[planner.Operation]int)
	for _, r := range rows {
		out[r.Operation]++
	}
	return out
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
