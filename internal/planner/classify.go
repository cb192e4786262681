package planner

import (
	"slices"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/temporal"
)

// classify turns diff rows into plan rows. hasActive reports whether the
// entity still has active source rows, which selects the delete-mode flag
// that applies to uncovered target timeline.
func (p *Planner) classify(g *entityGroup, diffs []diffRow, hasActive bool) ([]PlanRow, error) {
	ranks := p.updateRanks(diffs)
	lookup := p.groupLookupKeys(g)

	rows := make([]PlanRow, 0, len(diffs))
	for i, d := range diffs {
		op, effect, err := p.classifyOne(d, ranks[i])
		if err != nil {
			return nil, err
		}

		if op == OpSkipIdentical && !d.final.sourceCovered {
			if (hasActive && p.ctx.DeleteMode.DeletesTimeline()) || (!hasActive && p.ctx.DeleteMode.DeletesEntities()) {
				op = OpDelete
			} else {
				continue
			}
		}

		row := PlanRow{
			Operation:   op,
			IsNewEntity: g.isNew,
			LookupKeys:  lookup,
			GroupingKey: g.key,
		}

		identity := g.identity
		var pk ir.IRObject
		if d.target != nil {
			row.OldValidFrom = d.target.ValidFrom
			row.OldValidUntil = d.target.ValidUntil
			row.OldValidRange = temporal.FormatRange(d.target.ValidFrom, d.target.ValidUntil)
			pk = d.target.PKOnly
			if op == OpDelete {
				identity = d.target.IdentityKeys
			}
		}
		if len(identity) > 0 {
			row.IdentityKeys = identity
		}
		row.EntityKeys = entityKeys(identity, lookup, pk)

		if op == OpDelete {
			row.RowIDs = g.deletionRowIDs(d.target)
			rows = append(rows, row)
			continue
		}

		f := d.final
		row.UpdateEffect = effect
		row.RowIDs = f.rowIDs
		if row.RowIDs == nil {
			row.RowIDs = []int64{}
		}
		row.CausalID = f.causalID
		row.STRelation = f.relation
		row.NewValidFrom = f.from
		row.NewValidUntil = f.until
		row.NewValidRange = temporal.FormatRange(f.from, f.until)
		if d.target != nil {
			row.BARelation = p.ctx.Subtype.Relate(d.target.Interval(), temporal.Interval{From: f.from, Until: f.until})
		}
		row.Data = p.outputData(f)

		if p.ctx.Trace {
			row.Trace = ir.IRObject{
				"grouping_key":   ir.IRString(g.key),
				"content_hash":   ir.IRString(f.hash),
				"source_covered": ir.IRBool(f.sourceCovered),
				"target_covered": ir.IRBool(f.targetCovered),
				"update_rank":    ir.IRInt(ranks[i]),
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classifyOne decides the operation for a single diff row. rank is the
// row's position among the segments sharing its target row (0 if none).
func (p *Planner) classifyOne(d diffRow, rank int) (Operation, UpdateEffect, error) {
	st := p.ctx.Subtype
	switch {
	case d.final == nil && d.target == nil:
		return "", "", invariantf("diff row has neither a final segment nor a target row")
	case d.final == nil:
		return OpDelete, "", nil
	case d.target == nil:
		return OpInsert, "", nil
	}

	f, t := d.final, d.target
	if st.Equal(f.from, t.ValidFrom) && st.Equal(f.until, t.ValidUntil) &&
		ir.EqualIgnoringNulls(ir.Merge(f.data, f.ephemeral), ir.Merge(t.Data, t.Ephemeral)) {
		return OpSkipIdentical, "", nil
	}
	if rank > 1 {
		return OpInsert, "", nil
	}
	return OpUpdate, p.updateEffect(t.Interval(), temporal.Interval{From: f.from, Until: f.until}), nil
}

// updateEffect compares the old and new interval of an UPDATE.
func (p *Planner) updateEffect(before, after temporal.Interval) UpdateEffect {
	st := p.ctx.Subtype
	fromCmp := st.Compare(after.From, before.From)
	untilCmp := st.Compare(after.Until, before.Until)
	switch {
	case fromCmp == 0 && untilCmp == 0:
		return EffectNone
	case fromCmp >= 0 && untilCmp <= 0:
		return EffectShrink
	case fromCmp <= 0 && untilCmp >= 0:
		return EffectGrow
	}
	return EffectMove
}

// updateRanks orders the final segments descending from the same target
// row. Rank 1 keeps the target row (UPDATE); the others become INSERTs.
// Preference: starts where the target starts, then payload unchanged, then
// earliest from, then earliest until.
func (p *Planner) updateRanks(diffs []diffRow) []int {
	st := p.ctx.Subtype
	ranks := make([]int, len(diffs))
	byTarget := make(map[*TargetRow][]int)
	var order []*TargetRow
	for i, d := range diffs {
		if d.final == nil || d.target == nil {
			continue
		}
		if _, ok := byTarget[d.target]; !ok {
			order = append(order, d.target)
		}
		byTarget[d.target] = append(byTarget[d.target], i)
	}

	for _, t := range order {
		idx := byTarget[t]
		slices.SortStableFunc(idx, func(a, b int) int {
			fa, fb := diffs[a].final, diffs[b].final
			startsA, startsB := st.Equal(fa.from, t.ValidFrom), st.Equal(fb.from, t.ValidFrom)
			if c := cmpBoolDesc(startsA, startsB); c != 0 {
				return c
			}
			sameA, sameB := ir.EqualIgnoringNulls(fa.data, t.Data), ir.EqualIgnoringNulls(fb.data, t.Data)
			if c := cmpBoolDesc(sameA, sameB); c != 0 {
				return c
			}
			if c := st.Compare(fa.from, fb.from); c != 0 {
				return c
			}
			return st.Compare(fa.until, fb.until)
		})
		for rank, i := range idx {
			ranks[i] = rank + 1
		}
	}
	return ranks
}

// cmpBoolDesc orders true before false.
func cmpBoolDesc(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	}
	return 1
}

// outputData is the payload written by INSERT and UPDATE: data, ephemeral
// values and the synchronized inclusive end column when the era has one.
func (p *Planner) outputData(f *coalescedSegment) ir.IRObject {
	if f.data == nil {
		return nil
	}
	out := ir.Merge(f.data, f.ephemeral)
	if col := p.ctx.Era.ValidToColumn; col != "" {
		if to, ok := p.ctx.Subtype.MinusOneUnit(f.until); ok {
			out[col] = ir.IRString(to)
		}
	}
	return out
}

// groupLookupKeys reports every lookup column of the entity. Values come
// from the first source row (identity, then lookup, then data), falling
// back to the target for existing entities; orphan groups use their first
// target row.
func (p *Planner) groupLookupKeys(g *entityGroup) ir.IRObject {
	out := make(ir.IRObject, len(p.ctx.AllLookupColumns))
	if len(p.ctx.AllLookupColumns) == 0 {
		return out
	}

	var firstTarget *TargetRow
	if len(g.targets) > 0 {
		firstTarget = g.targets[0]
	}
	fromTarget := func(col string) ir.IRValue {
		if firstTarget == nil {
			return ir.IRNull{}
		}
		return firstNonNull(firstTarget.LookupKeys[col], firstTarget.IdentityKeys[col])
	}

	if len(g.sources) == 0 {
		for _, col := range p.ctx.AllLookupColumns {
			out[col] = fromTarget(col)
		}
		return out
	}

	src := g.sources[0]
	if firstTarget == nil {
		firstTarget = src.target
	}
	for _, col := range p.ctx.AllLookupColumns {
		v := firstPresent(col, src.IdentityKeys, src.LookupKeys, src.Data)
		if ir.IsNull(v) && !g.isNew {
			v = fromTarget(col)
		}
		out[col] = v
	}
	return out
}

func firstPresent(col string, objs ...ir.IRObject) ir.IRValue {
	for _, o := range objs {
		if v, ok := o[col]; ok {
			return v
		}
	}
	return ir.IRNull{}
}

func firstNonNull(vals ...ir.IRValue) ir.IRValue {
	for _, v := range vals {
		if !ir.IsNull(v) {
			return v
		}
	}
	return ir.IRNull{}
}

// entityKeys is identity, then lookup keys, then primary-key-only columns,
// earlier sources winning.
func entityKeys(identity, lookup, pk ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, len(identity)+len(lookup)+len(pk))
	for _, src := range []ir.IRObject{identity, lookup, pk} {
		for k, v := range src {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
