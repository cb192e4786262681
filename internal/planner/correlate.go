package planner

import (
	"fmt"
	"strings"

	"github.com/roach88/tmerge/internal/ir"
)

const (
	existingEntityPrefix = "existing_entity__"
	newEntityPrefix      = "new_entity__"
)

// targetIndex finds target rows by identity and by each lookup key-set.
type targetIndex struct {
	byIdentity map[string]*TargetRow
	byKeySet   []map[string][]*TargetRow
	// head maps every target row to the first row of its entity.
	head map[*TargetRow]*TargetRow
	keys map[*TargetRow]string
}

// key is the grouping key of the entity t belongs to.
func (idx *targetIndex) key(t *TargetRow) string {
	return idx.keys[t]
}

func (p *Planner) indexTargets(targets []TargetRow) *targetIndex {
	idx := &targetIndex{
		byIdentity: make(map[string]*TargetRow, len(targets)),
		byKeySet:   make([]map[string][]*TargetRow, len(p.ctx.LookupKeySets)),
		head:       make(map[*TargetRow]*TargetRow, len(targets)),
		keys:       make(map[*TargetRow]string, len(targets)),
	}
	for s := range idx.byKeySet {
		idx.byKeySet[s] = make(map[string][]*TargetRow)
	}

	for i := range targets {
		t := &targets[i]
		if k := ir.MapKey(t.IdentityKeys); k != "" {
			if _, ok := idx.byIdentity[k]; !ok {
				idx.byIdentity[k] = t
			}
		}
		for s, ks := range p.ctx.LookupKeySets {
			if k := ir.ColumnsKey(t.LookupKeys, ks); k != "" {
				idx.byKeySet[s][k] = append(idx.byKeySet[s][k], t)
			}
		}
	}

	if p.ctx.Strategy == StrategyLookupKeyOnly {
		p.linkLookupVersions(targets, idx)
	}
	for i := range targets {
		t := &targets[i]
		h, ok := idx.head[t]
		if !ok {
			h = t
			idx.head[t] = t
		}
		idx.keys[t] = p.existingKey(h)
	}
	return idx
}

// linkLookupVersions joins target rows sharing any lookup key-set value
// into one entity. Without identity columns the lookup values are all
// that name an entity, and they may change from one version to the next.
func (p *Planner) linkLookupVersions(targets []TargetRow, idx *targetIndex) {
	pos := make(map[*TargetRow]int, len(targets))
	for i := range targets {
		pos[&targets[i]] = i
	}
	uf := newUnionFind(len(targets))
	for _, byKey := range idx.byKeySet {
		for _, rows := range byKey {
			for _, t := range rows[1:] {
				uf.union(pos[rows[0]], pos[t])
			}
		}
	}

	first := make(map[int]*TargetRow)
	for i := range targets {
		root := uf.find(i)
		if _, ok := first[root]; !ok {
			first[root] = &targets[i]
		}
		idx.head[&targets[i]] = first[root]
	}
}

// entityValues returns the values naming the entity a target row belongs to.
func (p *Planner) entityValues(t *TargetRow) ir.IRObject {
	out := make(ir.IRObject, len(p.ctx.EntityColumns()))
	for _, c := range p.ctx.EntityColumns() {
		if v, ok := t.IdentityKeys[c]; ok && !ir.IsNull(v) {
			out[c] = v
			continue
		}
		if v, ok := t.LookupKeys[c]; ok {
			out[c] = v
			continue
		}
		out[c] = ir.IRNull{}
	}
	return out
}

// existingKey is the grouping key of an existing entity.
func (p *Planner) existingKey(t *TargetRow) string {
	return existingEntityPrefix + ir.ValuesKey(p.entityValues(t), p.ctx.EntityColumns())
}

// correlate matches every source row to an existing entity or marks it new.
func (p *Planner) correlate(sources []SourceRow, idx *targetIndex) []*matchedRow {
	matched := make([]*matchedRow, 0, len(sources))
	for _, src := range sources {
		m := &matchedRow{SourceRow: src, isNew: true}

		if len(src.IdentityKeys) > 0 {
			if k := ir.MapKey(src.IdentityKeys); k != "" {
				if t, ok := idx.byIdentity[k]; ok {
					m.isNew = false
					m.target = t
					m.entityKey = idx.key(t)
				}
			}
		}

		if m.isNew && len(src.LookupKeys) > 0 && !src.LookupColsAreNull {
			p.matchLookupKeys(m, idx)
		}

		if m.isNew && m.feedback == nil && !src.IsIdentifiable && src.LookupColsAreNull &&
			!p.ctx.IsFoundingMode() && p.ctx.Strategy != StrategyIdentityKeyOnly {
			m.feedback = &rowFeedback{op: OpError, message: p.unidentifiableMessage()}
		}
		if err := p.ctx.Subtype.CheckInterval(src.Interval()); err != nil {
			m.feedback = &rowFeedback{op: OpError, message: "Source row has an invalid validity period: " + err.Error()}
		}

		m.groupingKey = p.groupingKey(m)
		matched = append(matched, m)
	}
	return matched
}

// matchLookupKeys tries every key-set and collects the distinct entities hit.
func (p *Planner) matchLookupKeys(m *matchedRow, idx *targetIndex) {
	var hits []*TargetRow
	seen := make(map[string]bool)
	for s, ks := range p.ctx.LookupKeySets {
		k := ir.ColumnsKey(m.LookupKeys, ks)
		if k == "" {
			continue
		}
		for _, t := range idx.byKeySet[s][k] {
			ek := idx.key(t)
			if !seen[ek] {
				seen[ek] = true
				hits = append(hits, t)
			}
		}
	}

	switch {
	case len(hits) > 1:
		m.isNew = false
		m.target = hits[0]
		m.entityKey = idx.key(hits[0])
		names := make([]string, len(hits))
		for i, t := range hits {
			names[i] = ir.PgText(p.entityValues(idx.head[t]))
		}
		m.feedback = &rowFeedback{
			op: OpError,
			message: fmt.Sprintf("Source row is ambiguous. It matches multiple distinct target entities: [%s]",
				strings.Join(names, ", ")),
		}
	case len(hits) == 1:
		m.isNew = false
		m.target = hits[0]
		m.entityKey = idx.key(hits[0])
		m.canonicalNK = ir.StripNulls(m.LookupKeys)
	}
}

func (p *Planner) unidentifiableMessage() string {
	sets := make([]string, len(p.ctx.LookupKeySets))
	for i, ks := range p.ctx.LookupKeySets {
		sets[i] = "[" + strings.Join(ks, ", ") + "]"
	}
	return fmt.Sprintf("Source row is unidentifiable. It has NULL for all stable identity columns {%s} and all natural keys [%s]",
		strings.Join(p.ctx.IdentityColumns, ", "), strings.Join(sets, ", "))
}

// groupingKey derives the key that groups rows of one entity.
func (p *Planner) groupingKey(m *matchedRow) string {
	if !m.isNew {
		return m.entityKey
	}
	if p.ctx.IsFoundingMode() {
		return newEntityPrefix + m.CausalID
	}

	nk := m.canonicalNK
	if len(nk) == 0 {
		nk = m.LookupKeys
	}
	if ir.HasNonNull(nk) && len(p.ctx.AllLookupColumns) > 0 {
		return newEntityPrefix + ir.ValuesKey(nk, p.ctx.AllLookupColumns)
	}
	if ir.HasNonNull(m.IdentityKeys) {
		return newEntityPrefix + ir.ValuesKey(m.IdentityKeys, p.ctx.IdentityColumns)
	}
	return newEntityPrefix + m.CausalID
}
