package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/cache"
	"github.com/roach88/tmerge/internal/logging"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/store"
	"github.com/roach88/tmerge/internal/testutil"
)

const fixtureDDL = `
CREATE TABLE emp (
    id          INTEGER NOT NULL,
    name        TEXT,
    valid_from  TEXT NOT NULL,
    valid_until TEXT NOT NULL,
    PRIMARY KEY (id, valid_from)
);
CREATE TABLE emp_src (
    row_id      INTEGER PRIMARY KEY,
    id          INTEGER,
    name        TEXT,
    valid_from  TEXT,
    valid_until TEXT
);
INSERT INTO emp VALUES (1, 'Ann', '2024-01-01', '2025-01-01');
INSERT INTO emp_src VALUES (1, 1, 'Anna', '2024-01-01', '2024-06-01');
INSERT INTO emp_src VALUES (2, 2, 'Ben', '2024-01-01', '2025-01-01');
`

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	return testutil.OpenStore(t, fixtureDDL)
}

func setupEngine(t *testing.T, s *store.Store, ids ...string) *Engine {
	t.Helper()
	templates, err := cache.New(8)
	require.NoError(t, err)
	return New(s, templates, NewFixedGenerator(ids...), WithLogger(zerolog.Nop()))
}

func empJob() Job {
	return Job{
		Name:        "emp",
		SourceTable: "emp_src",
		TargetTable: "emp",
		Config: planner.Config{
			Mode:            "MERGE_ENTITY_UPSERT",
			IdentityColumns: []string{"id"},
			Era: planner.Era{
				Name:             "valid",
				ValidFromColumn:  "valid_from",
				ValidUntilColumn: "valid_until",
				Subtype:          "date",
			},
		},
	}
}

func TestEngine_RunPlansWithoutApplying(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s, "plan-1")

	res, err := e.Run(context.Background(), empJob())
	require.NoError(t, err)
	assert.Equal(t, "plan-1", res.Plan.PlanID)
	assert.False(t, res.Applied)
	assert.Equal(t, map[planner.Operation]int{
		planner.OpUpdate: 1,
		planner.OpInsert: 2,
	}, res.Summary)

	_, stored, err := s.ReadPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, res.Rows, stored)
}

func TestEngine_RunAndApplyThenReplanIsNoop(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s, "plan-1", "plan-2")
	ctx := context.Background()

	job := empJob()
	job.Apply = true
	res, err := e.Run(ctx, job)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, store.ApplyResult{Inserted: 2, Updated: 1}, res.ApplyStats)

	res, err = e.Run(ctx, job)
	require.NoError(t, err)
	assert.Zero(t, res.Summary[planner.OpInsert]+res.Summary[planner.OpUpdate]+res.Summary[planner.OpDelete])
	assert.Equal(t, store.ApplyResult{}, res.ApplyStats)
}

func TestEngine_ApplyStoredPlan(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s, "plan-1")
	ctx := context.Background()

	_, err := e.Run(ctx, empJob())
	require.NoError(t, err)

	other := empJob()
	other.Config.Mode = "MERGE_ENTITY_PATCH"
	_, err = e.Apply(ctx, other, "plan-1")
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err, ErrCodeConfigMismatch))

	stats, err := e.Apply(ctx, empJob(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, store.ApplyResult{Inserted: 2, Updated: 1}, stats)

	_, err = e.Apply(ctx, empJob(), "plan-1")
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err, ErrCodeApply))
	assert.ErrorIs(t, err, store.ErrPlanApplied)
}

func TestEngine_Errors(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s)
	ctx := context.Background()

	missing := empJob()
	missing.TargetTable = "nope"
	_, err := e.Run(ctx, missing)
	assert.True(t, IsRuntimeError(err, ErrCodeIntrospect))
	assert.ErrorIs(t, err, store.ErrTableNotFound)

	badMode := empJob()
	badMode.Config.Mode = "SIDEWAYS"
	_, err = e.Run(ctx, badMode)
	var cfgErr *planner.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, planner.ErrCodeInvalidMode, cfgErr.Code)

	badColumn := empJob()
	badColumn.Config.IdentityColumns = []string{"emp_no"}
	_, err = e.Run(ctx, badColumn)
	assert.True(t, IsRuntimeError(err, ErrCodeTemplate))
	assert.Contains(t, err.Error(), `identity column "emp_no"`)
}

func TestEngine_RunAllRejectsSharedTargets(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s)

	_, err := e.RunAll(context.Background(), []Job{empJob(), empJob()}, 0)
	assert.True(t, IsRuntimeError(err, ErrCodeConflictingJobs))
}

func TestEngine_RunAll(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Exec(context.Background(), `
		CREATE TABLE emp2 AS SELECT * FROM emp;
	`))
	e := setupEngine(t, s, "plan-a", "plan-b")

	second := empJob()
	second.Name = "emp2"
	second.TargetTable = "emp2"

	results, err := e.RunAll(context.Background(), []Job{empJob(), second}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "emp", results[0].Job.Name)
	assert.Equal(t, "emp2", results[1].Job.Name)
	assert.ElementsMatch(t, []string{"plan-a", "plan-b"}, []string{results[0].Plan.PlanID, results[1].Plan.PlanID})
}

func TestRuntimeError_Format(t *testing.T) {
	err := &RuntimeError{Code: ErrCodeApply, Message: "apply plan", Target: "emp", PlanID: "p1", Err: store.ErrPlanApplied}
	assert.Equal(t, "APPLY_FAILED: apply plan (target=emp, plan=p1): plan already applied", err.Error())
	assert.ErrorIs(t, err, store.ErrPlanApplied)
}

func TestEngine_Check(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s, "plan-1")
	ctx := context.Background()

	hash, err := e.Check(ctx, empJob())
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	res, err := e.Run(ctx, empJob())
	require.NoError(t, err)
	assert.Equal(t, hash, res.Plan.ConfigHash)

	missing := empJob()
	missing.SourceTable = "nope"
	_, err = e.Check(ctx, missing)
	assert.True(t, IsRuntimeError(err, ErrCodeIntrospect))
}

func TestEngine_VerifyDetectsDrift(t *testing.T) {
	s := setupTestStore(t)
	e := setupEngine(t, s, "plan-1")
	ctx := context.Background()

	_, err := e.Run(ctx, empJob())
	require.NoError(t, err)

	ok, err := e.Verify(ctx, empJob(), "plan-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Exec(ctx, `UPDATE emp_src SET name = 'Benjamin' WHERE row_id = 2`))
	ok, err = e.Verify(ctx, empJob(), "plan-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Verify(ctx, empJob(), "plan-x")
	assert.True(t, IsRuntimeError(err, ErrCodeStore))
	assert.ErrorIs(t, err, store.ErrPlanNotFound)
}

func TestEngine_LoggerFollowsLaterSetup(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	s := setupTestStore(t)
	templates, err := cache.New(8)
	require.NoError(t, err)
	eng := New(s, templates, NewFixedGenerator("plan-1"))

	var buf bytes.Buffer
	logging.Setup(1, &buf)

	_, err = eng.Run(context.Background(), empJob())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "plan stored")
	assert.Contains(t, buf.String(), "component=engine")
	assert.Contains(t, buf.String(), "plan_id=plan-1")
}
