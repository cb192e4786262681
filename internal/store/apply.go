package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/queryir"
	"github.com/roach88/tmerge/internal/querysql"
	"github.com/roach88/tmerge/internal/rowset"
)

// ApplyResult counts the rows an applied plan changed.
type ApplyResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// ApplyPlan executes a stored plan's DML against its target table in one
// transaction, in statement_seq order. Every UPDATE and DELETE must hit
// exactly one row or the whole plan is rolled back. A plan applies once.
func (s *Store) ApplyPlan(ctx context.Context, planID string, layout *rowset.Layout) (ApplyResult, error) {
	meta, rows, err := s.ReadPlan(ctx, planID)
	if err != nil {
		return ApplyResult{}, err
	}
	if meta.Applied {
		return ApplyResult{}, fmt.Errorf("%w: %s", ErrPlanApplied, planID)
	}

	var res ApplyResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = applyRows(ctx, tx, layout, meta.TargetTable, rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tmerge_plans SET applied = 1 WHERE plan_id = ?`, planID); err != nil {
			return fmt.Errorf("mark applied: %w", err)
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply plan %s: %w", planID, err)
	}
	return res, nil
}

func applyRows(ctx context.Context, tx *sql.Tx, layout *rowset.Layout, table string, rows []planner.PlanRow) (ApplyResult, error) {
	dml := make([]planner.PlanRow, 0, len(rows))
	for _, r := range rows {
		if r.Operation.IsDML() {
			dml = append(dml, r)
		}
	}
	slices.SortStableFunc(dml, func(a, b planner.PlanRow) int {
		if c := cmp.Compare(a.StatementSeq, b.StatementSeq); c != 0 {
			return c
		}
		return cmp.Compare(a.PlanOpSeq, b.PlanOpSeq)
	})

	compiler := querysql.NewSQLCompiler()
	// generated holds database-assigned identity values per new entity.
	generated := make(map[string]ir.IRValue)
	var res ApplyResult

	for _, r := range dml {
		stmt, err := layout.Statement(table, r)
		if err != nil {
			return ApplyResult{}, err
		}

		genCol := ""
		if ins, ok := stmt.(queryir.Insert); ok {
			genCol = layout.NewEntityIdentity(r)
			if v, seen := generated[r.GroupingKey]; genCol != "" && seen {
				ins.Values[genCol] = v
				genCol = ""
			}
		}

		query, params, err := compiler.CompileStatement(stmt)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("plan row %d: %w", r.PlanOpSeq, err)
		}
		out, err := tx.ExecContext(ctx, query, params...)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("plan row %d (%s): %w", r.PlanOpSeq, r.Operation, err)
		}
		n, err := out.RowsAffected()
		if err != nil {
			return ApplyResult{}, fmt.Errorf("plan row %d: %w", r.PlanOpSeq, err)
		}

		switch r.Operation {
		case planner.OpInsert:
			res.Inserted += int(n)
			if genCol != "" {
				v, err := generatedValue(ctx, tx, out, table, genCol)
				if err != nil {
					return ApplyResult{}, fmt.Errorf("plan row %d: %w", r.PlanOpSeq, err)
				}
				generated[r.GroupingKey] = v
			}
		case planner.OpUpdate, planner.OpDelete:
			if n != 1 {
				return ApplyResult{}, fmt.Errorf("plan row %d (%s) matched %d target rows, want 1",
					r.PlanOpSeq, r.Operation, n)
			}
			if r.Operation == planner.OpUpdate {
				res.Updated++
			} else {
				res.Deleted++
			}
		}
	}
	return res, nil
}

// generatedValue reads back the identity value the database assigned to
// the row just inserted.
func generatedValue(ctx context.Context, tx *sql.Tx, out sql.Result, table, col string) (ir.IRValue, error) {
	rowid, err := out.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	var v any
	query := fmt.Sprintf("SELECT %s FROM %s WHERE rowid = ?", querysql.QuoteIdent(col), querysql.QuoteIdent(table))
	if err := tx.QueryRowContext(ctx, query, rowid).Scan(&v); err != nil {
		return nil, fmt.Errorf("read generated %q: %w", col, err)
	}
	return ir.FromGo(v)
}
