package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_StatementGroups(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "MERGE_ENTITY_UPSERT", IdentityColumns: []string{"id"}})

	rows := []PlanRow{
		{Operation: OpInsert, NewValidFrom: "2024-07-01", GroupingKey: "g"},
		{Operation: OpSkipIdentical, OldValidFrom: "2024-08-01", NewValidFrom: "2024-08-01", GroupingKey: "g"},
		{Operation: OpUpdate, UpdateEffect: EffectMove, OldValidFrom: "2024-01-01", NewValidFrom: "2024-02-01", GroupingKey: "g"},
		{Operation: OpUpdate, UpdateEffect: EffectShrink, OldValidFrom: "2024-05-01", NewValidFrom: "2024-05-01", GroupingKey: "g"},
		{Operation: OpDelete, OldValidFrom: "2024-06-01", GroupingKey: "g"},
		{Operation: OpUpdate, UpdateEffect: EffectMove, OldValidFrom: "2024-03-01", NewValidFrom: "2024-04-01", GroupingKey: "g"},
	}
	p.sequence(rows)

	type step struct {
		op     Operation
		from   string
		stmtID int
	}
	expected := []step{
		{OpDelete, "2024-06-01", 1},
		{OpUpdate, "2024-03-01", 3},
		{OpUpdate, "2024-01-01", 4},
		{OpUpdate, "2024-05-01", 2},
		{OpInsert, "", 5},
		{OpSkipIdentical, "2024-08-01", 6},
	}
	require.Len(t, rows, len(expected))
	for i, e := range expected {
		assert.Equal(t, int64(i+1), rows[i].PlanOpSeq)
		assert.Equal(t, e.op, rows[i].Operation, "row %d", i)
		assert.Equal(t, e.from, rows[i].OldValidFrom, "row %d", i)
		assert.Equal(t, e.stmtID, rows[i].StatementSeq, "row %d", i)
	}
}

func TestSequence_EmptyGroupingKeyLast(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "MERGE_ENTITY_UPSERT", IdentityColumns: []string{"id"}})

	rows := []PlanRow{
		{Operation: OpError, RowIDs: []int64{9}},
		{Operation: OpInsert, NewValidFrom: "2024-01-01", GroupingKey: "b"},
		{Operation: OpInsert, NewValidFrom: "2024-01-01", GroupingKey: "a"},
	}
	p.sequence(rows)

	assert.Equal(t, "a", rows[0].GroupingKey)
	assert.Equal(t, "b", rows[1].GroupingKey)
	assert.Equal(t, OpError, rows[2].Operation)
	assert.Equal(t, 1, rows[0].StatementSeq)
	assert.Equal(t, 1, rows[1].StatementSeq)
	assert.Equal(t, 2, rows[2].StatementSeq)
}

func TestSequence_NoDML(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "MERGE_ENTITY_UPSERT", IdentityColumns: []string{"id"}})

	rows := []PlanRow{
		{Operation: OpSkipFiltered, RowIDs: []int64{2}, GroupingKey: "g"},
		{Operation: OpSkipFiltered, RowIDs: []int64{1}, GroupingKey: "g"},
	}
	p.sequence(rows)

	assert.Equal(t, []int64{1}, rows[0].RowIDs)
	assert.Equal(t, 1, rows[0].StatementSeq)
	assert.Equal(t, 1, rows[1].StatementSeq)
}
