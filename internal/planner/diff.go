package planner

// diff pairs each final segment with the target row it descends from.
// Several segments may descend from one target row; target rows no
// segment descends from are emitted alone.
func (p *Planner) diff(g *entityGroup, final []*coalescedSegment) []diffRow {
	claimed := make(map[*TargetRow]bool, len(g.targets))
	rows := make([]diffRow, 0, len(final)+len(g.targets))

	for _, f := range final {
		if f.ancestor != nil {
			claimed[f.ancestor] = true
		}
		rows = append(rows, diffRow{final: f, target: f.ancestor})
	}
	for _, t := range g.targets {
		if !claimed[t] {
			rows = append(rows, diffRow{target: t})
		}
	}
	return rows
}
