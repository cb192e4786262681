package planner

import (
	"cmp"
	"slices"

	"github.com/roach88/tmerge/internal/ir"
)

// detectEclipsed marks rows whose whole interval is already covered by
// newer rows (higher row id) of the same natural-key partition.
func (p *Planner) detectEclipsed(matched []*matchedRow) {
	partitions := make(map[string][]*matchedRow)
	var order []string
	for _, m := range matched {
		k := p.eclipsePartition(m)
		if _, ok := partitions[k]; !ok {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], m)
	}

	for _, k := range order {
		rows := partitions[k]
		if len(rows) < 2 {
			continue
		}
		rows = slices.Clone(rows)
		slices.SortStableFunc(rows, func(a, b *matchedRow) int {
			return cmp.Compare(b.RowID, a.RowID)
		})

		seen := p.ctx.Subtype.NewMultirange()
		for _, m := range rows {
			if m.feedback != nil {
				continue
			}
			if seen.Contains(m.Interval()) {
				m.eclipsed = true
			}
			seen.Add(m.Interval())
		}
	}
}

// eclipsePartition keys a row by its raw non-null lookup values, falling
// back to its causal id when it has none.
func (p *Planner) eclipsePartition(m *matchedRow) string {
	vals := make(ir.IRObject, len(p.ctx.AllLookupColumns))
	for _, c := range p.ctx.AllLookupColumns {
		if v, ok := m.LookupKeys[c]; ok && !ir.IsNull(v) {
			vals[c] = v
		} else if v, ok := m.IdentityKeys[c]; ok && !ir.IsNull(v) {
			vals[c] = v
		}
	}
	if k := ir.ColumnsKey(vals, p.ctx.AllLookupColumns); k != "" {
		return k
	}
	return "causal_" + m.CausalID
}
