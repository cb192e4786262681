package rowset

import (
	"fmt"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/queryir"
)

// Statement translates a DML plan row into a write on the target table.
// UPDATE and DELETE address the old row by entity key and period start.
func (l *Layout) Statement(table string, row planner.PlanRow) (queryir.Statement, error) {
	switch row.Operation {
	case planner.OpInsert:
		values := make(ir.IRObject, len(row.Data)+len(row.LookupKeys)+len(row.IdentityKeys)+3)
		for _, c := range l.lookup {
			if v, ok := row.LookupKeys[c]; ok && !ir.IsNull(v) {
				values[c] = v
			}
		}
		for _, c := range l.identity {
			if v, ok := row.IdentityKeys[c]; ok && !ir.IsNull(v) {
				values[c] = v
			}
		}
		ir.Overlay(values, row.Data, nil)
		l.setPeriod(values, row.NewValidFrom, row.NewValidUntil, row.NewValidRange)
		return queryir.Insert{Into: table, Values: values}, nil

	case planner.OpUpdate:
		filter, err := l.oldRowFilter(row)
		if err != nil {
			return nil, err
		}
		set := make(ir.IRObject, len(row.Data)+3)
		ir.Overlay(set, row.Data, nil)
		l.setPeriod(set, row.NewValidFrom, row.NewValidUntil, row.NewValidRange)
		return queryir.Update{Table: table, Set: set, Filter: filter}, nil

	case planner.OpDelete:
		filter, err := l.oldRowFilter(row)
		if err != nil {
			return nil, err
		}
		return queryir.Delete{From: table, Filter: filter}, nil
	}
	return nil, fmt.Errorf("operation %s does not change the target", row.Operation)
}

// NewEntityIdentity reports the identity column a database-generated key
// lands in for rows of a new entity, or "" when identity is not generated.
func (l *Layout) NewEntityIdentity(row planner.PlanRow) string {
	if !row.IsNewEntity || len(l.identity) != 1 {
		return ""
	}
	if v, ok := row.IdentityKeys[l.identity[0]]; ok && !ir.IsNull(v) {
		return ""
	}
	return l.identity[0]
}

func (l *Layout) setPeriod(dst ir.IRObject, from, until, rng string) {
	era := l.ctx.Era
	if era.RangeColumn != "" && l.target.has(era.RangeColumn) {
		dst[era.RangeColumn] = ir.IRString(rng)
	}
	if era.ValidFromColumn != "" && l.target.has(era.ValidFromColumn) {
		dst[era.ValidFromColumn] = ir.IRString(from)
	}
	if era.ValidUntilColumn != "" && l.target.has(era.ValidUntilColumn) {
		dst[era.ValidUntilColumn] = ir.IRString(until)
	}
}

// oldRowFilter addresses the target row a plan row replaces: identity
// keys when complete, otherwise the non-null lookup keys, plus any
// primary-key-only columns and the old period start.
func (l *Layout) oldRowFilter(row planner.PlanRow) (queryir.Predicate, error) {
	key := make(ir.IRObject)
	if len(l.identity) > 0 && complete(row.IdentityKeys, l.identity) {
		for _, c := range l.identity {
			key[c] = row.IdentityKeys[c]
		}
	} else {
		for _, c := range l.lookup {
			if v, ok := row.LookupKeys[c]; ok && !ir.IsNull(v) {
				key[c] = v
			}
		}
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("plan row %d has no key to address the target row", row.PlanOpSeq)
	}
	for _, c := range l.pkOnly {
		if v, ok := row.EntityKeys[c]; ok {
			key[c] = v
		}
	}

	era := l.ctx.Era
	if era.RangeColumn != "" && l.target.has(era.RangeColumn) {
		key[era.RangeColumn] = ir.IRString(row.OldValidRange)
	} else {
		key[era.ValidFromColumn] = ir.IRString(row.OldValidFrom)
	}
	return queryir.KeyFilter(key), nil
}

func complete(obj ir.IRObject, cols []string) bool {
	for _, c := range cols {
		if v, ok := obj[c]; !ok || ir.IsNull(v) {
			return false
		}
	}
	return true
}
