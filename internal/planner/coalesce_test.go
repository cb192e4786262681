package planner

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/temporal"
)

func TestCoalesce_MergesAdjacentEqualContent(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "MERGE_ENTITY_UPSERT", IdentityColumns: []string{"id"}})
	h := ir.MustPayloadHash(name("A"))

	out := p.coalesce([]resolvedSegment{
		{from: "2024-01-01", until: "2024-02-01", data: name("A"), hash: h, rowIDs: []int64{2}},
		{from: "2024-02-01", until: "2024-03-01", data: name("A"), hash: h, rowIDs: []int64{1, 2}},
		{from: "2024-04-01", until: "2024-05-01", data: name("A"), hash: h, rowIDs: []int64{3}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-01", out[0].from)
	assert.Equal(t, "2024-03-01", out[0].until)
	assert.Equal(t, []int64{1, 2}, out[0].rowIDs)
	assert.Equal(t, "2024-04-01", out[1].from)
}

func TestCoalesce_DeletionMarkersNeverMerge(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "DELETE_FOR_PORTION_OF", IdentityColumns: []string{"id"}})

	out := p.coalesce([]resolvedSegment{
		{from: "1", until: "2"},
		{from: "2", until: "3"},
	})
	assert.Len(t, out, 2)
}

// Runs of equal content keep the first non-nil ancestor and the first
// non-empty relation regardless of where they appear in the run.
func TestCoalesce_FirstNonNullProperty(t *testing.T) {
	p := newTestPlanner(t, Config{Mode: "MERGE_ENTITY_UPSERT", IdentityColumns: []string{"id"}})
	h := ir.MustPayloadHash(name("A"))
	rng := rand.New(rand.NewPCG(1, 2))

	targets := []*TargetRow{{ValidFrom: "a"}, {ValidFrom: "b"}, {ValidFrom: "c"}}
	relations := []temporal.Relation{"", temporal.Starts, temporal.During, temporal.Finishes}

	for iter := range 200 {
		n := 1 + rng.IntN(6)
		segs := make([]resolvedSegment, n)
		var wantAncestor *TargetRow
		var wantRelation temporal.Relation
		for i := range segs {
			segs[i] = resolvedSegment{
				from:   fmt.Sprint(i),
				until:  fmt.Sprint(i + 1),
				data:   name("A"),
				hash:   h,
				rowIDs: []int64{int64(rng.IntN(10))},
			}
			if rng.IntN(2) == 0 {
				segs[i].target = targets[rng.IntN(len(targets))]
			}
			segs[i].relation = relations[rng.IntN(len(relations))]
			if wantAncestor == nil {
				wantAncestor = segs[i].target
			}
			if wantRelation == "" {
				wantRelation = segs[i].relation
			}
		}

		out := p.coalesce(segs)
		require.Len(t, out, 1, "iteration %d", iter)
		assert.True(t, wantAncestor == out[0].ancestor, "iteration %d", iter)
		assert.Equal(t, wantRelation, out[0].relation, "iteration %d", iter)
		assert.IsNonDecreasing(t, out[0].rowIDs)
	}
}
