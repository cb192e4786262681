package planner

import (
	"slices"
)

// coalesce merges runs of adjacent segments with equal content. Segments
// without a content hash (deletion markers) never merge.
func (p *Planner) coalesce(segments []resolvedSegment) []*coalescedSegment {
	st := p.ctx.Subtype
	var out []*coalescedSegment
	var cur *coalescedSegment

	for i := range segments {
		seg := &segments[i]
		if cur != nil && seg.hash != "" && cur.hash == seg.hash && st.Equal(cur.until, seg.from) {
			cur.until = seg.until
			cur.rowIDs = append(cur.rowIDs, seg.rowIDs...)
			if seg.ephemeral != nil {
				cur.ephemeral = seg.ephemeral
			}
			cur.sourceCovered = cur.sourceCovered || seg.sourceCovered
			cur.targetCovered = cur.targetCovered || seg.targetCovered
			if cur.ancestor == nil {
				cur.ancestor = seg.target
			}
			if cur.relation == "" {
				cur.relation = seg.relation
			}
			continue
		}

		cur = &coalescedSegment{
			from:          seg.from,
			until:         seg.until,
			data:          seg.data,
			ephemeral:     seg.ephemeral,
			hash:          seg.hash,
			rowIDs:        slices.Clone(seg.rowIDs),
			ancestor:      seg.target,
			sourceCovered: seg.sourceCovered,
			targetCovered: seg.targetCovered,
			relation:      seg.relation,
			causalID:      seg.causalID,
		}
		out = append(out, cur)
	}

	for _, c := range out {
		slices.Sort(c.rowIDs)
		c.rowIDs = slices.Compact(c.rowIDs)
	}
	return out
}
