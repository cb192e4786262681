package planner

import (
	"cmp"
	"strconv"
)

// segment splits the entity's timeline at every boundary of its active
// source rows and target rows.
func (p *Planner) segment(g *entityGroup, sources []*matchedRow) []atomicSegment {
	st := p.ctx.Subtype
	bounds := st.NewBoundarySet()
	for _, s := range sources {
		bounds.Add(s.ValidFrom)
		bounds.Add(s.ValidUntil)
	}
	for _, t := range g.targets {
		bounds.Add(t.ValidFrom)
		bounds.Add(t.ValidUntil)
	}

	causal := entityCausalID(g, sources)
	points := bounds.Sorted()
	segments := make([]atomicSegment, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		if st.Less(points[i], points[i+1]) {
			segments = append(segments, atomicSegment{from: points[i], until: points[i+1], causalID: causal})
		}
	}
	return segments
}

// entityCausalID is the first source's causal id for a new entity and the
// smallest causal id for an existing one.
func entityCausalID(g *entityGroup, sources []*matchedRow) string {
	if len(sources) == 0 {
		return ""
	}
	if g.isNew {
		return sources[0].CausalID
	}
	causal := sources[0].CausalID
	for _, s := range sources[1:] {
		if compareCausal(s.CausalID, causal) < 0 {
			causal = s.CausalID
		}
	}
	return causal
}

// compareCausal orders causal ids numerically when both are integers.
func compareCausal(a, b string) int {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(a, b)
}
