package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/engine"
	"github.com/roach88/tmerge/internal/testutil"
)

const empDDL = `
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

const jobsFile = "testdata/jobs.yaml"

func setupDB(t *testing.T) string {
	t.Helper()
	return testutil.DatabaseFile(t, empDDL)
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeData[T any](t *testing.T, out string) (T, *CLIError) {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   T         `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data, resp.Error
}

// planFixed plans the emp job under a known plan id.
func planFixed(t *testing.T, db, planID string) PlanReport {
	t.Helper()
	return planWith(t, db, engine.NewFixedGenerator(planID))
}

func planWith(t *testing.T, db string, ids engine.PlanIDGenerator) PlanReport {
	t.Helper()
	opts := &PlanOptions{
		RootOptions: &RootOptions{Format: "json"},
		JobOptions: JobOptions{
			Database: db,
			Config:   jobsFile,
			PlanIDs:  ids,
		},
		Parallel: 1,
	}
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	require.NoError(t, runPlan(opts, cmd))

	report, cliErr := decodeData[PlanReport](t, out.String())
	require.Nil(t, cliErr)
	return report
}

func TestPlanCommand(t *testing.T) {
	db := setupDB(t)

	out, err := execute(t, "plan", "--db", db, "--config", jobsFile, "--format", "json")
	require.NoError(t, err)

	report, cliErr := decodeData[PlanReport](t, out)
	require.Nil(t, cliErr)
	require.Len(t, report.Jobs, 1)
	job := report.Jobs[0]
	assert.Equal(t, "emp", job.Job)
	assert.Equal(t, "emp", job.Target)
	assert.NotEmpty(t, job.PlanID)
	assert.Equal(t, 3, job.Rows)
	assert.Equal(t, map[string]int{"UPDATE": 1, "INSERT": 2}, job.Summary)
	assert.False(t, job.Applied)
}

func TestPlanCommand_Apply(t *testing.T) {
	db := setupDB(t)

	out, err := execute(t, "plan", "--db", db, "-c", jobsFile, "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "PLAN")
	assert.Contains(t, out, "UPDATE=1 INSERT=2")
	assert.Contains(t, out, "+2 ~1 -0")

	// A second run finds nothing left to change.
	out, err = execute(t, "plan", "--db", db, "-c", jobsFile, "--apply", "--format", "json")
	require.NoError(t, err)
	report, _ := decodeData[PlanReport](t, out)
	require.Len(t, report.Jobs, 1)
	assert.Zero(t, report.Jobs[0].Summary["INSERT"]+report.Jobs[0].Summary["UPDATE"]+report.Jobs[0].Summary["DELETE"])
}

func TestPlanCommand_Errors(t *testing.T) {
	db := setupDB(t)

	t.Run("missing_database", func(t *testing.T) {
		_, err := execute(t, "plan", "--db", filepath.Join(t.TempDir(), "nope.db"), "-c", jobsFile)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "database not found")
	})

	t.Run("missing_flags", func(t *testing.T) {
		_, err := execute(t, "plan")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
	})

	t.Run("unknown_job", func(t *testing.T) {
		out, err := execute(t, "plan", "--db", db, "-c", jobsFile, "-j", "payroll")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, `job "payroll" not found`)
	})

	t.Run("missing_table", func(t *testing.T) {
		out, err := execute(t, "plan", "--db", db, "-c", "testdata/missing_table.yaml", "--format", "json")
		require.Error(t, err)
		_, cliErr := decodeData[PlanReport](t, out)
		require.NotNil(t, cliErr)
		assert.Equal(t, "INTROSPECT_FAILED", cliErr.Code)
	})
}

func TestListCommand(t *testing.T) {
	db := setupDB(t)

	out, err := execute(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No plans found.\n", out)

	ids := testutil.NewSequentialIDs("plan")
	first := planWith(t, db, ids)
	second := planWith(t, db, ids)
	assert.Equal(t, "plan-1", first.Jobs[0].PlanID)
	assert.Equal(t, "plan-2", second.Jobs[0].PlanID)

	out, err = execute(t, "list", "--db", db, "--format", "json")
	require.NoError(t, err)
	list, _ := decodeData[PlanList](t, out)
	require.Len(t, list.Plans, 2)
	assert.Equal(t, "plan-1", list.Plans[0].PlanID)
	assert.Equal(t, "plan-2", list.Plans[1].PlanID)
	assert.Equal(t, "emp_src", list.Plans[0].SourceTable)
	assert.Equal(t, 3, list.Plans[0].RowCount)
	assert.False(t, list.Plans[0].Applied)
	assert.Equal(t, list.Plans[0].Digest, list.Plans[1].Digest)

	out, err = execute(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "plan-1")
	assert.Contains(t, out, "emp_src")
}

func TestShowCommand(t *testing.T) {
	db := setupDB(t)
	planFixed(t, db, "plan-1")

	out, err := execute(t, "show", "--db", db, "plan-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: plan-1")
	assert.Contains(t, out, "emp_src -> emp, 3 rows, applied: false")
	assert.Contains(t, out, "UPDATE(SHRINK)")
	assert.Contains(t, out, "[2024-06-01, 2025-01-01)")

	out, err = execute(t, "show", "--db", db, "plan-1", "--op", "insert", "--format", "json")
	require.NoError(t, err)
	view, _ := decodeData[PlanView](t, out)
	assert.Equal(t, "plan-1", view.Plan.PlanID)
	require.Len(t, view.Rows, 2)
	for _, r := range view.Rows {
		assert.Equal(t, "INSERT", string(r.Operation))
	}

	_, err = execute(t, "show", "--db", db, "plan-9")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestApplyAndVerifyCommands(t *testing.T) {
	db := setupDB(t)
	planFixed(t, db, "plan-1")

	out, err := execute(t, "verify", "--db", db, "-c", jobsFile, "plan-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ plan plan-1 still matches the data")

	out, err = execute(t, "apply", "--db", db, "-c", jobsFile, "plan-1", "--format", "json")
	require.NoError(t, err)
	report, _ := decodeData[ApplyReport](t, out)
	assert.Equal(t, ApplyReport{PlanID: "plan-1", Job: "emp", Inserted: 2, Updated: 1}, report)

	// A plan applies once.
	out, err = execute(t, "apply", "--db", db, "-c", jobsFile, "plan-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [APPLY_FAILED]")

	// The table changed underneath the plan.
	out, err = execute(t, "verify", "--db", db, "-c", jobsFile, "plan-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "is stale")

	out, err = execute(t, "list", "--db", db, "--format", "json")
	require.NoError(t, err)
	list, _ := decodeData[PlanList](t, out)
	require.Len(t, list.Plans, 1)
	assert.True(t, list.Plans[0].Applied)
}

func TestApplyCommand_ConfigMismatch(t *testing.T) {
	db := setupDB(t)
	planFixed(t, db, "plan-1")

	patch := filepath.Join(t.TempDir(), "patch.yaml")
	data, err := os.ReadFile(jobsFile)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("MERGE_ENTITY_UPSERT"), []byte("MERGE_ENTITY_PATCH"), 1)
	require.NoError(t, os.WriteFile(patch, data, 0644))

	out, err := execute(t, "apply", "--db", db, "-c", patch, "plan-1", "--format", "json")
	require.Error(t, err)
	_, cliErr := decodeData[ApplyReport](t, out)
	require.NotNil(t, cliErr)
	assert.Equal(t, "CONFIG_MISMATCH", cliErr.Code)
}

func TestApplyCommand_NeedsOneJob(t *testing.T) {
	db := setupDB(t)

	out, err := execute(t, "apply", "--db", db, "-c", "testdata/invalid_jobs.yaml", "plan-1")
	require.Error(t, err)
	assert.Contains(t, out, "select one with --job")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", jobsFile)
	require.NoError(t, err)
	assert.Equal(t, "✓ emp (identity_key_only)\n", out)

	out, err = execute(t, "validate", "testdata/invalid_jobs.yaml", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	result, _ := decodeData[ValidationResult](t, out)
	assert.False(t, result.Valid)
	require.Len(t, result.Jobs, 2)
	assert.True(t, result.Jobs[0].Valid)
	assert.False(t, result.Jobs[1].Valid)
	assert.Equal(t, "keyless", result.Jobs[1].Job)
	assert.Equal(t, "UNDEFINED_STRATEGY", result.Jobs[1].Code)
}

func TestValidateCommand_WithDatabase(t *testing.T) {
	db := setupDB(t)

	out, err := execute(t, "validate", jobsFile, "--db", db, "--format", "json")
	require.NoError(t, err)
	result, _ := decodeData[ValidationResult](t, out)
	require.Len(t, result.Jobs, 1)
	assert.Len(t, result.Jobs[0].ConfigHash, 64)

	out, err = execute(t, "validate", "testdata/missing_table.yaml", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, "✗ ghost")
	assert.Contains(t, out, "[INTROSPECT_FAILED]")
}

func TestValidateCommand_SchemaError(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("jobs:\n  - source_table: a\n    target_table: b\n    mode: SOMETIMES\n    era: {name: valid, subtype: date}\n"), 0644))

	out, err := execute(t, "validate", bad, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	_, cliErr := decodeData[ValidationResult](t, out)
	require.NotNil(t, cliErr)
	assert.Equal(t, "CONFIG_SCHEMA", cliErr.Code)
}
