package store

import (
	"context"
	"fmt"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/queryir"
	"github.com/roach88/tmerge/internal/querysql"
	"github.com/roach88/tmerge/internal/rowset"
)

// maxParams keeps filtered target reads under SQLite's bind limit. Larger
// filters fall back to a full scan.
const maxParams = 30000

// ReadSource reads every source row through the layout, ordered by row id.
// Returns an empty slice (not nil) for an empty table.
func (s *Store) ReadSource(ctx context.Context, layout *rowset.Layout, table string) ([]planner.SourceRow, error) {
	out := []planner.SourceRow{}
	err := s.selectRows(ctx, layout.SourceSelect(table), func(values []ir.IRValue) error {
		row, err := layout.Source(values)
		if err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read source %q: %w", table, err)
	}
	return out, nil
}

// ReadTargets reads the target rows the planner needs: the whole table when
// fullScan is set, otherwise the complete timelines of every entity a
// source row could correlate with.
func (s *Store) ReadTargets(ctx context.Context, layout *rowset.Layout, table string, sources []planner.SourceRow, fullScan bool) ([]planner.TargetRow, error) {
	if fullScan {
		return s.readTargets(ctx, layout, table, nil)
	}

	filter := layout.TargetFilter(sources)
	if querysql.ParamCount(filter) > maxParams {
		return s.readTargets(ctx, layout, table, nil)
	}
	if or, ok := filter.(queryir.Or); ok && len(or.Predicates) == 0 {
		return []planner.TargetRow{}, nil
	}

	matched, err := s.readTargets(ctx, layout, table, filter)
	if err != nil || len(matched) == 0 {
		return matched, err
	}

	// Rows found through a lookup key may belong to entities whose other
	// rows carry different lookup values; re-read those entities whole.
	entities := layout.EntityFilter(matched)
	if querysql.ParamCount(entities) > maxParams {
		return s.readTargets(ctx, layout, table, nil)
	}
	return s.readTargets(ctx, layout, table, entities)
}

func (s *Store) readTargets(ctx context.Context, layout *rowset.Layout, table string, filter queryir.Predicate) ([]planner.TargetRow, error) {
	out := []planner.TargetRow{}
	err := s.selectRows(ctx, layout.TargetSelect(table, filter), func(values []ir.IRValue) error {
		row, err := layout.Target(values)
		if err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read target %q: %w", table, err)
	}
	return out, nil
}

// selectRows compiles q, runs it and hands each row to fn as IR values.
func (s *Store) selectRows(ctx context.Context, q queryir.Select, fn func([]ir.IRValue) error) error {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	raw := make([]any, len(q.Columns))
	ptrs := make([]any, len(q.Columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		values := make([]ir.IRValue, len(raw))
		for i, v := range raw {
			iv, err := ir.FromGo(v)
			if err != nil {
				return fmt.Errorf("column %q: %w", q.Columns[i], err)
			}
			values[i] = iv
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	return nil
}

// ReadTable reads a whole table as column-keyed rows ordered by every
// column in declaration order.
func (s *Store) ReadTable(ctx context.Context, table string) ([]ir.IRObject, error) {
	info, err := s.Introspect(ctx, table)
	if err != nil {
		return nil, err
	}
	cols := info.ColumnNames()
	q := queryir.Select{From: table, Columns: cols, OrderBy: cols}

	out := []ir.IRObject{}
	err = s.selectRows(ctx, q, func(values []ir.IRValue) error {
		row := make(ir.IRObject, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read table %q: %w", table, err)
	}
	return out, nil
}
