package temporal

import (
	"github.com/google/btree"
)

const btreeDegree = 16

// Multirange is a set of disjoint, non-adjacent intervals ordered by From.
// Adding an interval merges it with every interval it overlaps or touches,
// so containment can always be answered by a single member.
type Multirange struct {
	subtype Subtype
	tree    *btree.BTreeG[Interval]
}

// NewMultirange returns an empty multirange ordered by s.
func (s Subtype) NewMultirange() *Multirange {
	return &Multirange{
		subtype: s,
		tree: btree.NewG(btreeDegree, func(a, b Interval) bool {
			return s.Less(a.From, b.From)
		}),
	}
}

// Add merges i into the set. Empty intervals are ignored.
func (m *Multirange) Add(i Interval) {
	s := m.subtype
	if s.Empty(i) {
		return
	}

	merged := i
	var absorbed []Interval
	m.tree.DescendLessOrEqual(Interval{From: i.Until}, func(item Interval) bool {
		if s.Less(item.Until, i.From) {
			return false
		}
		absorbed = append(absorbed, item)
		if s.Less(item.From, merged.From) {
			merged.From = item.From
		}
		if s.Less(merged.Until, item.Until) {
			merged.Until = item.Until
		}
		return true
	})
	for _, item := range absorbed {
		m.tree.Delete(item)
	}
	m.tree.ReplaceOrInsert(merged)
}

// Contains reports whether every point of i lies inside the set.
func (m *Multirange) Contains(i Interval) bool {
	s := m.subtype
	if s.Empty(i) {
		return true
	}
	found := false
	m.tree.DescendLessOrEqual(Interval{From: i.From}, func(item Interval) bool {
		found = s.Compare(item.Until, i.Until) >= 0
		return false
	})
	return found
}

// Len returns the number of disjoint members.
func (m *Multirange) Len() int {
	return m.tree.Len()
}

// Intervals returns the members in ascending order.
func (m *Multirange) Intervals() []Interval {
	out := make([]Interval, 0, m.tree.Len())
	m.tree.Ascend(func(item Interval) bool {
		out = append(out, item)
		return true
	})
	return out
}

// CoversWithoutGaps reports whether the union of ranges covers target
// with no gap. An empty target is trivially covered.
func (s Subtype) CoversWithoutGaps(ranges []Interval, target Interval) bool {
	m := s.NewMultirange()
	for _, r := range ranges {
		m.Add(r)
	}
	return m.Contains(target)
}

// BoundarySet is an ordered set of distinct bound values.
type BoundarySet struct {
	tree *btree.BTreeG[string]
}

// NewBoundarySet returns an empty set ordered by s. Values equal under s
// ("1" and "1.0") collapse to the first one inserted.
func (s Subtype) NewBoundarySet() *BoundarySet {
	return &BoundarySet{tree: btree.NewG(btreeDegree, s.Less)}
}

// Add inserts v unless an equal value is present.
func (b *BoundarySet) Add(v string) {
	if !b.tree.Has(v) {
		b.tree.ReplaceOrInsert(v)
	}
}

// Sorted returns the values in ascending order.
func (b *BoundarySet) Sorted() []string {
	out := make([]string, 0, b.tree.Len())
	b.tree.Ascend(func(v string) bool {
		out = append(out, v)
		return true
	})
	return out
}
