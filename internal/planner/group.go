package planner

import (
	"slices"

	"github.com/roach88/tmerge/internal/ir"
)

// group partitions matched source rows and target rows by entity.
// Groups are returned ordered by grouping key. Target rows of entities no
// source row mentions get a group of their own only when the delete mode
// removes missing entities.
func (p *Planner) group(matched []*matchedRow, targets []TargetRow, idx *targetIndex) []*entityGroup {
	byKey := make(map[string]*entityGroup)
	for _, m := range matched {
		g, ok := byKey[m.groupingKey]
		if !ok {
			g = &entityGroup{key: m.groupingKey, isNew: m.isNew, identity: sourceIdentity(m)}
			byKey[m.groupingKey] = g
		}
		g.sources = append(g.sources, m)
	}

	for i := range targets {
		t := &targets[i]
		key := idx.key(t)
		g, ok := byKey[key]
		if !ok {
			if !p.ctx.DeleteMode.DeletesEntities() {
				continue
			}
			g = &entityGroup{key: key, identity: t.IdentityKeys}
			byKey[key] = g
		}
		g.targets = append(g.targets, t)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	groups := make([]*entityGroup, len(keys))
	for i, k := range keys {
		groups[i] = byKey[k]
	}
	return groups
}

func sourceIdentity(m *matchedRow) ir.IRObject {
	if m.target != nil {
		return m.target.IdentityKeys
	}
	if m.StablePK != nil {
		return m.StablePK
	}
	return m.IdentityKeys
}

// filterByMode returns the active rows the merge mode allows to act.
// INSERT_NEW_ENTITIES keeps only new entities, the *_FOR_PORTION_OF modes
// keep only existing ones, and the full-entity modes keep everything.
func (p *Planner) filterByMode(active []*matchedRow) []*matchedRow {
	out := make([]*matchedRow, 0, len(active))
	for _, m := range active {
		switch {
		case p.ctx.Mode == InsertNewEntities && !m.isNew:
		case p.ctx.Mode.IsForPortionOf() && m.isNew:
		default:
			out = append(out, m)
		}
	}
	return out
}
