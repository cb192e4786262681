package planner

import (
	"cmp"
	"slices"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/temporal"
)

// resolve computes the payload of every atomic segment. Segments covered
// by nothing, and source-only segments of the *_FOR_PORTION_OF modes, are
// dropped. With dropUncovered set, so are segments no source covers.
func (p *Planner) resolve(g *entityGroup, segments []atomicSegment, sources []*matchedRow, dropUncovered bool) ([]resolvedSegment, error) {
	st := p.ctx.Subtype
	resolved := make([]resolvedSegment, 0, len(segments))

	for _, seg := range segments {
		span := temporal.Interval{From: seg.from, Until: seg.until}

		var covering []*matchedRow
		for _, s := range sources {
			if st.Covers(s.Interval(), span) {
				covering = append(covering, s)
			}
		}
		if len(covering) == 0 && dropUncovered {
			continue
		}
		slices.SortStableFunc(covering, func(a, b *matchedRow) int {
			return cmp.Compare(a.RowID, b.RowID)
		})

		var target *TargetRow
		for _, t := range g.targets {
			if st.Covers(t.Interval(), span) {
				target = t
				break
			}
		}

		var data ir.IRObject
		var rowIDs []int64
		if p.ctx.Mode == DeleteForPortionOf && len(covering) > 0 {
			for _, s := range covering {
				rowIDs = append(rowIDs, s.RowID)
			}
		} else {
			data, rowIDs = p.mergeSources(covering, target)
		}

		switch {
		case data == nil && target == nil:
			continue
		case p.ctx.Mode.IsForPortionOf() && target == nil && len(covering) > 0:
			continue
		case data == nil && p.ctx.Mode == DeleteForPortionOf && len(covering) > 0:
			g.recordDeletion(target, rowIDs)
			continue
		}

		rs := resolvedSegment{
			from:          seg.from,
			until:         seg.until,
			data:          data,
			ephemeral:     p.mergeEphemeral(covering, target),
			rowIDs:        rowIDs,
			target:        target,
			sourceCovered: len(covering) > 0,
			targetCovered: target != nil,
			causalID:      seg.causalID,
		}
		if data != nil {
			h, err := ir.PayloadHash(data)
			if err != nil {
				return nil, err
			}
			rs.hash = h
		}

		if len(covering) > 0 {
			srcSpan := temporal.Interval{From: covering[0].ValidFrom, Until: covering[len(covering)-1].ValidUntil}
			if target != nil && st.Overlap(srcSpan, target.Interval()) {
				rs.relation = st.Relate(srcSpan, target.Interval())
			}
			if g.isNew {
				rs.causalID = covering[len(covering)-1].CausalID
			}
		} else if len(sources) > 0 {
			causal := p.boundarySource(seg, sources)
			rs.rowIDs = []int64{causal.RowID}
			if target != nil && st.Overlap(causal.Interval(), target.Interval()) {
				rs.relation = st.Relate(causal.Interval(), target.Interval())
			}
		}

		resolved = append(resolved, rs)
	}
	return resolved, nil
}

// recordDeletion credits the source rows of a deletion marker to the
// target row it removes time from.
func (g *entityGroup) recordDeletion(t *TargetRow, rowIDs []int64) {
	if g.deletedBy == nil {
		g.deletedBy = make(map[*TargetRow][]int64)
	}
	g.deletedBy[t] = append(g.deletedBy[t], rowIDs...)
}

// deletionRowIDs returns the sorted distinct source rows credited to t.
func (g *entityGroup) deletionRowIDs(t *TargetRow) []int64 {
	ids := slices.Clone(g.deletedBy[t])
	if ids == nil {
		return []int64{}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// mergeSources overlays covering source payloads, in row id order, onto the
// covering target's payload. PATCH modes never write NULLs; the other modes
// skip NULLs only for columns in the null-strip set.
func (p *Planner) mergeSources(covering []*matchedRow, target *TargetRow) (ir.IRObject, []int64) {
	if len(covering) == 0 {
		if target == nil {
			return nil, nil
		}
		return nonNilObject(target.Data), nil
	}

	merged := make(ir.IRObject)
	if target != nil {
		ir.Overlay(merged, target.Data, nil)
	}
	for _, s := range covering {
		ir.Overlay(merged, s.Data, p.skipNull)
	}

	if p.ctx.Mode.IsLastWriterWins() {
		return merged, []int64{covering[len(covering)-1].RowID}
	}
	rowIDs := make([]int64, len(covering))
	for i, s := range covering {
		rowIDs[i] = s.RowID
	}
	return merged, rowIDs
}

// mergeEphemeral overlays the newest covering source's ephemeral values on
// the target's, under the same NULL policy as data.
func (p *Planner) mergeEphemeral(covering []*matchedRow, target *TargetRow) ir.IRObject {
	if len(covering) == 0 {
		if target == nil {
			return nil
		}
		return target.Ephemeral
	}
	merged := make(ir.IRObject)
	if target != nil {
		ir.Overlay(merged, target.Ephemeral, nil)
	}
	ir.Overlay(merged, covering[len(covering)-1].Ephemeral, p.skipNull)
	return merged
}

func (p *Planner) skipNull(col string, v ir.IRValue) bool {
	if !ir.IsNull(v) {
		return false
	}
	return p.ctx.Mode.IsPatch() || p.ctx.StripsNull(col)
}

// boundarySource picks the source row credited for a target-only segment:
// the one sharing a boundary with it, else the first.
func (p *Planner) boundarySource(seg atomicSegment, sources []*matchedRow) *matchedRow {
	st := p.ctx.Subtype
	for _, s := range sources {
		if st.Equal(s.ValidFrom, seg.until) || st.Equal(s.ValidUntil, seg.from) {
			return s
		}
	}
	return sources[0]
}

func nonNilObject(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return ir.IRObject{}
	}
	return obj
}
