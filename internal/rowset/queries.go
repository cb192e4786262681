package rowset

import (
	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/queryir"
)

// SourceSelect reads the whole source table in row id order.
func (l *Layout) SourceSelect(table string) queryir.Select {
	return queryir.Select{
		From:    table,
		Columns: l.source.names,
		OrderBy: []string{l.ctx.RowIDColumn},
	}
}

// TargetSelect reads target rows matching filter, ordered by entity and
// period start. A nil filter reads the whole table.
func (l *Layout) TargetSelect(table string, filter queryir.Predicate) queryir.Select {
	order := make([]string, 0, len(l.ctx.EntityColumns())+1+len(l.pkOnly))
	order = append(order, l.ctx.EntityColumns()...)
	if era := l.ctx.Era; era.RangeColumn != "" && l.target.has(era.RangeColumn) {
		order = append(order, era.RangeColumn)
	} else {
		order = append(order, era.ValidFromColumn)
	}
	order = append(order, l.pkOnly...)
	return queryir.Select{
		From:    table,
		Columns: l.target.names,
		Filter:  filter,
		OrderBy: order,
	}
}

// TargetFilter matches every target row a source row could correlate
// with: equal identity, or equal values on any lookup key-set. NULL key
// values match NULL, mirroring how correlation compares keys.
func (l *Layout) TargetFilter(sources []planner.SourceRow) queryir.Predicate {
	var preds []queryir.Predicate
	if len(l.identity) > 0 {
		keys := make([]ir.IRObject, 0, len(sources))
		for _, s := range sources {
			if ir.HasNonNull(s.IdentityKeys) {
				keys = append(keys, s.IdentityKeys)
			}
		}
		preds = append(preds, keyMembership(l.identity, keys)...)
	}
	for _, ks := range l.ctx.LookupKeySets {
		keys := make([]ir.IRObject, 0, len(sources))
		for _, s := range sources {
			sub := project(s.LookupKeys, ks)
			if ir.HasNonNull(sub) {
				keys = append(keys, sub)
			}
		}
		preds = append(preds, keyMembership(ks, keys)...)
	}
	return queryir.Or{Predicates: preds}
}

// EntityFilter matches every row of the entities the given target rows
// belong to, so that timelines are read whole.
func (l *Layout) EntityFilter(targets []planner.TargetRow) queryir.Predicate {
	cols := l.ctx.EntityColumns()
	keys := make([]ir.IRObject, 0, len(targets))
	for _, t := range targets {
		vals := make(ir.IRObject, len(cols))
		for _, c := range cols {
			if v, ok := t.IdentityKeys[c]; ok {
				vals[c] = v
			} else {
				vals[c] = t.LookupKeys[c]
			}
		}
		keys = append(keys, vals)
	}
	return queryir.Or{Predicates: keyMembership(cols, keys)}
}

// keyMembership packs fully non-null keys into one row-value IN and emits
// an exact conjunction (with IS NULL) for each partially null key.
func keyMembership(cols []string, keys []ir.IRObject) []queryir.Predicate {
	seen := make(map[string]bool, len(keys))
	in := queryir.RowIn{Fields: cols}
	var partial []queryir.Predicate
	for _, k := range keys {
		vk := ir.ValuesKey(k, cols)
		if seen[vk] {
			continue
		}
		seen[vk] = true

		row := make([]ir.IRValue, len(cols))
		complete := true
		for i, c := range cols {
			row[i] = k[c]
			if ir.IsNull(row[i]) {
				complete = false
			}
		}
		if complete {
			in.Rows = append(in.Rows, row)
		} else {
			partial = append(partial, queryir.KeyFilter(project(k, cols)))
		}
	}

	var out []queryir.Predicate
	if len(in.Rows) > 0 {
		out = append(out, in)
	}
	return append(out, partial...)
}

// project returns obj restricted to cols, absent columns as NULL.
func project(obj ir.IRObject, cols []string) ir.IRObject {
	out := make(ir.IRObject, len(cols))
	for _, c := range cols {
		if v, ok := obj[c]; ok && v != nil {
			out[c] = v
		} else {
			out[c] = ir.IRNull{}
		}
	}
	return out
}
