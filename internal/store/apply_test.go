package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/rowset"
)

type personRow struct {
	ID         int64
	Name       string
	Status     string
	ValidFrom  string
	ValidUntil string
}

func readPeople(t *testing.T, s *Store) []personRow {
	t.Helper()
	rows, err := s.db.Query(`SELECT id, name, status, valid_from, valid_until FROM people ORDER BY id, valid_from`)
	require.NoError(t, err)
	defer rows.Close()

	var out []personRow
	for rows.Next() {
		var p personRow
		require.NoError(t, rows.Scan(&p.ID, &p.Name, &p.Status, &p.ValidFrom, &p.ValidUntil))
		out = append(out, p)
	}
	require.NoError(t, rows.Err())
	return out
}

// planAndStore reads both tables, plans, and writes the plan under id.
func planAndStore(t *testing.T, s *Store, cfg planner.Config, id string) *rowset.Layout {
	t.Helper()
	ctx := context.Background()
	pctx, layout := layoutFor(t, s, cfg, "people_src", "people")

	sources, err := s.ReadSource(ctx, layout, "people_src")
	require.NoError(t, err)
	targets, err := s.ReadTargets(ctx, layout, "people", sources, pctx.DeleteMode.DeletesEntities())
	require.NoError(t, err)
	rows, err := planner.New(pctx).Plan(sources, targets)
	require.NoError(t, err)

	_, err = s.WritePlan(ctx, PlanMeta{PlanID: id, ConfigHash: "cfg", SourceTable: "people_src", TargetTable: "people"}, rows)
	require.NoError(t, err)
	return layout
}

func TestApplyPlan_ShrinkAndInsert(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, peopleDDL, `
		INSERT INTO people (id, ssn, name, valid_from, valid_until) VALUES
		    (1, '111', 'Alice', '2024-01-01', '2025-01-01');
		INSERT INTO people_src (row_id, id, ssn, name, valid_from, valid_until) VALUES
		    (1, 1, '111', 'Alicia', '2024-01-01', '2024-06-01');
	`)
	ctx := context.Background()
	layout := planAndStore(t, s, peopleConfig(), "p1")

	res, err := s.ApplyPlan(ctx, "p1", layout)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Inserted: 1, Updated: 1}, res)
	assert.Equal(t, []personRow{
		{1, "Alicia", "active", "2024-01-01", "2024-06-01"},
		{1, "Alice", "active", "2024-06-01", "2025-01-01"},
	}, readPeople(t, s))

	_, err = s.ApplyPlan(ctx, "p1", layout)
	require.ErrorIs(t, err, ErrPlanApplied)

	// Planning the same source again finds nothing to change.
	planAndStore(t, s, peopleConfig(), "p2")
	_, rows, err := s.ReadPlan(ctx, "p2")
	require.NoError(t, err)
	for _, r := range rows {
		assert.False(t, r.Operation.IsDML(), "replan produced %s", r.Operation)
	}
}

func TestApplyPlan_DeleteMissingEntities(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, peopleDDL, `
		INSERT INTO people (id, ssn, name, valid_from, valid_until) VALUES
		    (1, '111', 'Alice', '2024-01-01', '2025-01-01'),
		    (2, '222', 'Bob',   '2024-01-01', '2025-01-01');
		INSERT INTO people_src (row_id, id, ssn, name, valid_from, valid_until) VALUES
		    (1, 1, '111', 'Alice', '2024-01-01', '2025-01-01');
	`)
	cfg := peopleConfig()
	cfg.DeleteMode = "DELETE_MISSING_ENTITIES"
	layout := planAndStore(t, s, cfg, "p1")

	res, err := s.ApplyPlan(context.Background(), "p1", layout)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Deleted: 1}, res)
	assert.Equal(t, []personRow{{1, "Alice", "active", "2024-01-01", "2025-01-01"}}, readPeople(t, s))
}

func TestApplyPlan_RollsBackWhenTargetDrifted(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, peopleDDL, `
		INSERT INTO people (id, ssn, name, valid_from, valid_until) VALUES
		    (1, '111', 'Alice', '2024-01-01', '2025-01-01');
		INSERT INTO people_src (row_id, id, ssn, name, valid_from, valid_until) VALUES
		    (1, 1, '111', 'Alicia', '2024-01-01', '2024-06-01');
	`)
	layout := planAndStore(t, s, peopleConfig(), "p1")

	// The row the plan updates moves before the plan is applied.
	mustExec(t, s, `UPDATE people SET valid_from = '2023-12-01' WHERE id = 1`)

	_, err := s.ApplyPlan(context.Background(), "p1", layout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched 0 target rows")
	assert.Equal(t, []personRow{{1, "Alice", "active", "2023-12-01", "2025-01-01"}}, readPeople(t, s))

	meta, _, err := s.ReadPlan(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, meta.Applied)
}

func TestApplyPlan_GeneratedIdentity(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, `
		CREATE TABLE tags (
		    id          INTEGER PRIMARY KEY,
		    label       TEXT NOT NULL,
		    valid_from  TEXT NOT NULL,
		    valid_until TEXT NOT NULL
		);
		CREATE TABLE tags_src (
		    row_id      INTEGER PRIMARY KEY,
		    id          INTEGER,
		    label       TEXT,
		    valid_from  TEXT,
		    valid_until TEXT
		);
		INSERT INTO tags_src (row_id, id, label, valid_from, valid_until) VALUES
		    (1, NULL, 'urgent', '2024-01-01', '2025-01-01');
	`)
	ctx := context.Background()
	cfg := peopleConfig()
	cfg.LookupKeys = [][]string{{"label"}}
	pctx, layout := layoutFor(t, s, cfg, "tags_src", "tags")

	sources, err := s.ReadSource(ctx, layout, "tags_src")
	require.NoError(t, err)
	targets, err := s.ReadTargets(ctx, layout, "tags", sources, false)
	require.NoError(t, err)
	rows, err := planner.New(pctx).Plan(sources, targets)
	require.NoError(t, err)
	_, err = s.WritePlan(ctx, PlanMeta{PlanID: "t1", ConfigHash: "cfg", SourceTable: "tags_src", TargetTable: "tags"}, rows)
	require.NoError(t, err)

	res, err := s.ApplyPlan(ctx, "t1", layout)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Inserted: 1}, res)

	var id int64
	var label string
	require.NoError(t, s.db.QueryRow(`SELECT id, label FROM tags`).Scan(&id, &label))
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "urgent", label)
}
