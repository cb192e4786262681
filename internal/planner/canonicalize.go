package planner

import (
	"github.com/roach88/tmerge/internal/ir"
)

// unionFind is a disjoint-set forest over an index arena with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	root := i
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[i] != root {
		next := u.parent[i]
		u.parent[i] = root
		i = next
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// canonicalize unifies new-entity rows that share any natural-key value so
// fragments of one new entity land in one group. Every row of a connected
// component adopts the union of the component's non-null key values.
func (p *Planner) canonicalize(matched []*matchedRow) {
	if len(p.ctx.LookupKeySets) == 0 {
		return
	}

	var rows []*matchedRow
	for _, m := range matched {
		if m.isNew && m.feedback == nil {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		return
	}

	keys := make([]ir.IRObject, len(rows))
	for i, m := range rows {
		keys[i] = ir.StripNulls(m.LookupKeys)
	}

	uf := newUnionFind(len(rows))
	for _, ks := range p.ctx.LookupKeySets {
		first := make(map[string]int)
		for i, nk := range keys {
			k := ir.ColumnsKey(nk, ks)
			if k == "" {
				continue
			}
			if j, ok := first[k]; ok {
				uf.union(j, i)
			} else {
				first[k] = i
			}
		}
	}

	canonical := make(map[int]ir.IRObject)
	for i, nk := range keys {
		root := uf.find(i)
		c, ok := canonical[root]
		if !ok {
			c = make(ir.IRObject)
			canonical[root] = c
		}
		for _, col := range nk.SortedKeys() {
			if _, present := c[col]; !present {
				c[col] = nk[col]
			}
		}
	}

	for i, m := range rows {
		c := canonical[uf.find(i)]
		if !ir.Equal(c, keys[i]) {
			m.canonicalNK = c.Clone()
			m.groupingKey = p.groupingKey(m)
		}
	}
}
