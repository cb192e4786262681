package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/testutil"
)

func sampleResult() *Result {
	r := NewResult()
	r.Rows = []planner.PlanRow{
		{
			PlanOpSeq:     1,
			StatementSeq:  1,
			Operation:     planner.OpUpdate,
			UpdateEffect:  planner.EffectShrink,
			RowIDs:        []int64{1},
			EntityKeys:    ir.IRObject{"id": ir.IRInt(1)},
			LookupKeys:    ir.IRObject{},
			NewValidFrom:  "2024-01-01",
			NewValidUntil: "2024-06-01",
			Data:          ir.IRObject{"salary": ir.IRNumber("100.50")},
		},
		{
			PlanOpSeq:     2,
			StatementSeq:  2,
			Operation:     planner.OpDelete,
			RowIDs:        []int64{},
			EntityKeys:    ir.IRObject{"id": ir.IRInt(2)},
			LookupKeys:    ir.IRObject{},
			OldValidFrom:  "2024-01-01",
			OldValidUntil: "2025-01-01",
		},
	}
	r.Summary = map[planner.Operation]int{planner.OpUpdate: 1, planner.OpDelete: 1}
	return r
}

func TestAssertOperationCount(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertOperationCount(r, Assertion{Operation: "update", Count: 1}))
	assert.NoError(t, assertOperationCount(r, Assertion{Operation: "INSERT", Count: 0}))

	err := assertOperationCount(r, Assertion{Operation: "DELETE", Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 DELETE rows", ae.Expected)
	assert.Equal(t, "1 rows", ae.Actual)
	assert.Equal(t, []string{
		"[1] UPDATE id=1 2024-01-01..2024-06-01",
		"[2] DELETE id=2 2024-01-01..2025-01-01",
	}, ae.Plan)
}

func TestAssertPlanRow(t *testing.T) {
	r := sampleResult()

	err := assertPlanRow(r, Assertion{Seq: 1, Expect: map[string]any{
		"operation":   "UPDATE",
		"entity_keys": map[string]any{"id": 1},
		"data":        map[string]any{"salary": 100.5},
		"row_ids":     []any{1},
	}})
	assert.NoError(t, err)

	err = assertPlanRow(r, Assertion{Seq: 2, Expect: map[string]any{"operation": "INSERT"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Expected: plan row 2: field "operation" = "INSERT"`)
	assert.Contains(t, err.Error(), `Actual: field "operation" = "DELETE"`)

	err = assertPlanRow(r, Assertion{Seq: 1, Expect: map[string]any{"causal_id": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "causal_id" to exist`)

	err = assertPlanRow(r, Assertion{Seq: 9, Expect: map[string]any{"operation": "INSERT"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan has 2 rows")
}

func TestMatchFields(t *testing.T) {
	row := ir.IRObject{"id": ir.IRInt(10), "price": ir.IRNumber("1.50"), "note": ir.IRNull{}}

	assert.Nil(t, matchFields(row, nil))
	assert.Nil(t, matchFields(row, map[string]any{"id": 10, "price": 1.5, "note": nil}))

	m := matchFields(row, map[string]any{"id": "10"})
	require.NotNil(t, m)
	assert.Equal(t, `field "id" = "10"`, m.expected)
	assert.Equal(t, `field "id" = 10`, m.actual)
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(context.Background(), r, []Assertion{
		{Type: AssertOperationCount, Operation: "UPDATE", Count: 1},
		{Type: AssertFinalState, Table: "emp", Expect: map[string]any{"id": 1}},
		{Type: AssertCoverage, Table: "emp", From: "2024-01-01", Until: "2025-01-01"},
		{Type: "trace_order"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "final_state requires database context")
	assert.Contains(t, errs[1], "coverage requires database context")
	assert.Contains(t, errs[2], `unknown assertion type "trace_order"`)
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=1 AND valid_from=2024-01-01", formatWhereClause(map[string]any{"valid_from": "2024-01-01", "id": 1}))
}

const coverageDDL = `
CREATE TABLE emp (id INTEGER, name TEXT, valid_from TEXT, valid_until TEXT, valid_to TEXT);
INSERT INTO emp VALUES (1, 'Anna', '2024-01-01', '2024-06-01', '2024-05-31');
INSERT INTO emp VALUES (1, 'Ann', '2024-06-01', '2025-01-01', '2024-12-31');
INSERT INTO emp VALUES (2, 'Ben', '2024-01-01', '2024-03-01', '2024-02-29');
INSERT INTO emp VALUES (2, 'Ben', '2024-04-01', '2025-01-01', '2024-12-31');
`

func TestAssertCoverage(t *testing.T) {
	st := testutil.OpenStore(t, coverageDDL)
	ctx := context.Background()
	era := planner.Era{ValidFromColumn: "valid_from", ValidUntilColumn: "valid_until", Subtype: "date"}
	year := Assertion{Type: AssertCoverage, Table: "emp", From: "2024-01-01", Until: "2025-01-01"}

	t.Run("contiguous", func(t *testing.T) {
		a := year
		a.Where = map[string]any{"id": 1}
		assert.NoError(t, assertCoverage(ctx, st, era, a))
	})

	t.Run("gap", func(t *testing.T) {
		a := year
		a.Where = map[string]any{"id": 2}
		err := assertCoverage(ctx, st, era, a)
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "emp where id=2 covers [2024-01-01,2025-01-01) without gaps", ae.Expected)
		assert.Equal(t, "covered: [2024-01-01,2024-03-01) [2024-04-01,2025-01-01)", ae.Actual)
	})

	t.Run("inclusive end column", func(t *testing.T) {
		a := year
		a.Where = map[string]any{"id": 1}
		toEra := planner.Era{ValidFromColumn: "valid_from", ValidToColumn: "valid_to", Subtype: "date"}
		assert.NoError(t, assertCoverage(ctx, st, toEra, a))
	})

	t.Run("no rows", func(t *testing.T) {
		a := year
		a.Where = map[string]any{"id": 3}
		assert.Error(t, assertCoverage(ctx, st, era, a))
	})
}
