package planner

import (
	"cmp"
	"slices"

	"github.com/roach88/tmerge/internal/ir"
)

// Statement categories in execution order. Running them in this order
// never makes two rows of one entity overlap: space is freed by DELETEs
// and shrinking UPDATEs before anything grows into it or is inserted.
const (
	categoryNone = iota
	categoryDelete
	categoryShrink
	categoryMove
	categoryGrow
	categoryInsert
)

func statementCategory(r *PlanRow) int {
	switch r.Operation {
	case OpDelete:
		return categoryDelete
	case OpUpdate:
		switch r.UpdateEffect {
		case EffectMove:
			return categoryMove
		case EffectGrow:
			return categoryGrow
		}
		return categoryShrink
	case OpInsert:
		return categoryInsert
	}
	return categoryNone
}

func operationPriority(op Operation) int {
	switch op {
	case OpDelete:
		return 1
	case OpUpdate:
		return 2
	case OpInsert:
		return 3
	}
	return 4
}

// sequence sorts the plan into execution order and assigns plan_op_seq
// and statement_seq.
func (p *Planner) sequence(rows []PlanRow) {
	st := p.ctx.Subtype
	keys := make([]string, len(rows))
	for i := range rows {
		keys[i] = ir.MapKey(rows[i].EntityKeys)
	}

	// compareBound orders missing bounds first.
	compareBound := func(a, b string) int {
		switch {
		case a == "" && b == "":
			return 0
		case a == "":
			return -1
		case b == "":
			return 1
		}
		return st.Compare(a, b)
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(i, j int) int {
		a, b := &rows[i], &rows[j]
		if c := cmpBoolDesc(a.GroupingKey != "", b.GroupingKey != ""); c != 0 {
			return c
		}
		if c := cmp.Compare(a.GroupingKey, b.GroupingKey); c != 0 {
			return c
		}
		if c := cmp.Compare(keys[i], keys[j]); c != 0 {
			return c
		}
		if c := cmp.Compare(operationPriority(a.Operation), operationPriority(b.Operation)); c != 0 {
			return c
		}
		if c := cmpBoolDesc(a.UpdateEffect == "", b.UpdateEffect == ""); c != 0 {
			return c
		}
		fromA, fromB := cmp.Or(a.OldValidFrom, a.NewValidFrom), cmp.Or(b.OldValidFrom, b.NewValidFrom)
		if a.UpdateEffect == EffectMove && b.UpdateEffect == EffectMove {
			if c := compareBound(fromB, fromA); c != 0 {
				return c
			}
		} else if c := compareBound(fromA, fromB); c != 0 {
			return c
		}
		if c := compareBound(a.NewValidFrom, b.NewValidFrom); c != 0 {
			return c
		}
		return cmp.Compare(firstRowID(a.RowIDs), firstRowID(b.RowIDs))
	})

	sorted := make([]PlanRow, len(rows))
	for pos, i := range idx {
		sorted[pos] = rows[i]
	}
	copy(rows, sorted)

	// Dense statement groups over the categories present; every MOVE gets
	// a group of its own.
	present := make(map[int]bool)
	moves := 0
	for i := range rows {
		c := statementCategory(&rows[i])
		if c == categoryMove {
			moves++
		}
		present[c] = true
	}
	base := make(map[int]int)
	next := 1
	for c := categoryDelete; c <= categoryInsert; c++ {
		if !present[c] {
			continue
		}
		base[c] = next
		if c == categoryMove {
			next += moves
		} else {
			next++
		}
	}

	move := 0
	for i := range rows {
		r := &rows[i]
		r.PlanOpSeq = int64(i + 1)
		c := statementCategory(r)
		switch c {
		case categoryNone:
			r.StatementSeq = next
		case categoryMove:
			r.StatementSeq = base[c] + move
			move++
		default:
			r.StatementSeq = base[c]
		}
	}
}

func firstRowID(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}
