package planner

import (
	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/temporal"
)

const (
	infoFiltered = "Source row was correctly filtered by the mode's logic and did not result in a DML operation."
	infoEclipsed = "Source row was eclipsed by newer source rows covering its entire validity period."
)

// feedbackRow reports a source row that produced no DML of its own.
func (p *Planner) feedbackRow(m *matchedRow, op Operation, message string) PlanRow {
	var fb ir.IRObject
	switch op {
	case OpSkipNoTarget, OpSkipFiltered:
		fb = ir.IRObject{"info": ir.IRString(infoFiltered)}
	case OpSkipEclipsed:
		fb = ir.IRObject{"info": ir.IRString(infoEclipsed)}
	default:
		fb = ir.IRObject{"error": ir.IRString(message)}
	}

	identity := m.IdentityKeys.Clone()
	if identity == nil {
		identity = ir.IRObject{}
	}
	if m.target != nil {
		for k, v := range m.target.IdentityKeys {
			if ir.IsNull(identity[k]) {
				identity[k] = v
			}
		}
	}
	entity := identity.Clone()
	for k, v := range m.LookupKeys {
		if _, ok := entity[k]; !ok {
			entity[k] = v
		}
	}

	key := m.groupingKey
	if m.isNew && len(m.LookupKeys) == 0 && len(p.ctx.AllLookupColumns) == 0 {
		key = newEntityPrefix + m.CausalID
	}

	lookup := m.LookupKeys
	if lookup == nil {
		lookup = ir.IRObject{}
	}

	row := PlanRow{
		RowIDs:       []int64{m.RowID},
		Operation:    op,
		CausalID:     m.CausalID,
		IsNewEntity:  m.isNew,
		EntityKeys:   entity,
		IdentityKeys: identity,
		LookupKeys:   lookup,
		Feedback:     fb,
		GroupingKey:  key,
	}
	if op == OpSkipEclipsed {
		row.NewValidFrom = m.ValidFrom
		row.NewValidUntil = m.ValidUntil
		row.NewValidRange = temporal.FormatRange(m.ValidFrom, m.ValidUntil)
	}
	return row
}
