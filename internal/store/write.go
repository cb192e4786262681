package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
)

// PlanMeta is the header of a stored plan.
type PlanMeta struct {
	PlanID         string `json:"plan_id"`
	ConfigHash     string `json:"config_hash"`
	SourceTable    string `json:"source_table"`
	TargetTable    string `json:"target_table"`
	PlannerVersion string `json:"planner_version"`
	FormatVersion  string `json:"format_version"`
	Digest         string `json:"digest"`
	RowCount       int    `json:"row_count"`
	Applied        bool   `json:"applied"`
}

// WritePlan stores a plan under meta.PlanID in one transaction.
// Digest, row count and versions are filled in from rows.
//
// Writing the same rows under the same id again is a no-op. Writing
// different rows under an existing id returns ErrPlanConflict.
func (s *Store) WritePlan(ctx context.Context, meta PlanMeta, rows []planner.PlanRow) (PlanMeta, error) {
	digest, err := PlanDigest(rows)
	if err != nil {
		return PlanMeta{}, fmt.Errorf("write plan: %w", err)
	}
	meta.Digest = digest
	meta.RowCount = len(rows)
	meta.PlannerVersion = ir.PlannerVersion
	meta.FormatVersion = ir.PlanFormatVersion

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tmerge_plans
			(plan_id, config_hash, source_table, target_table, planner_version, format_version, digest, row_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(plan_id) DO NOTHING
		`,
			meta.PlanID,
			meta.ConfigHash,
			meta.SourceTable,
			meta.TargetTable,
			meta.PlannerVersion,
			meta.FormatVersion,
			meta.Digest,
			meta.RowCount,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return checkExisting(ctx, tx, meta)
		}
		return insertRows(ctx, tx, meta.PlanID, rows)
	})
	if err != nil {
		return PlanMeta{}, fmt.Errorf("write plan: %w", err)
	}
	return meta, nil
}

// checkExisting accepts a rewrite of an existing plan id only with the
// same digest.
func checkExisting(ctx context.Context, tx *sql.Tx, meta PlanMeta) error {
	var existing string
	if err := tx.QueryRowContext(ctx,
		`SELECT digest FROM tmerge_plans WHERE plan_id = ?`, meta.PlanID,
	).Scan(&existing); err != nil {
		return err
	}
	if existing != meta.Digest {
		return fmt.Errorf("%w: %s", ErrPlanConflict, meta.PlanID)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, planID string, rows []planner.PlanRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tmerge_plan_rows
		(plan_id, plan_op_seq, statement_seq, operation, grouping_key, row)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		data, _, err := marshalRow(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, planID, r.PlanOpSeq, r.StatementSeq,
			string(r.Operation), r.GroupingKey, data); err != nil {
			return fmt.Errorf("row %d: %w", r.PlanOpSeq, err)
		}
	}
	return nil
}

// ReadPlan returns a stored plan with its rows in plan_op_seq order.
func (s *Store) ReadPlan(ctx context.Context, planID string) (PlanMeta, []planner.PlanRow, error) {
	meta, err := s.readMeta(ctx, planID)
	if err != nil {
		return PlanMeta{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row
		FROM tmerge_plan_rows
		WHERE plan_id = ?
		ORDER BY plan_op_seq ASC
	`, planID)
	if err != nil {
		return PlanMeta{}, nil, fmt.Errorf("query plan rows: %w", err)
	}
	defer rows.Close()

	out := []planner.PlanRow{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return PlanMeta{}, nil, fmt.Errorf("scan plan row: %w", err)
		}
		r, err := unmarshalRow(data)
		if err != nil {
			return PlanMeta{}, nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return PlanMeta{}, nil, fmt.Errorf("iterate plan rows: %w", err)
	}
	return meta, out, nil
}

// ListPlans returns every plan header. Plan ids are UUIDv7, so id order is
// creation order.
func (s *Store) ListPlans(ctx context.Context) ([]PlanMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, config_hash, source_table, target_table, planner_version,
		       format_version, digest, row_count, applied
		FROM tmerge_plans
		ORDER BY plan_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	out := []PlanMeta{}
	for rows.Next() {
		var m PlanMeta
		if err := scanMeta(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return out, nil
}

func (s *Store) readMeta(ctx context.Context, planID string) (PlanMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, config_hash, source_table, target_table, planner_version,
		       format_version, digest, row_count, applied
		FROM tmerge_plans
		WHERE plan_id = ?
		ORDER BY plan_id ASC
	`, planID)
	if err != nil {
		return PlanMeta{}, fmt.Errorf("query plan: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return PlanMeta{}, fmt.Errorf("query plan: %w", err)
		}
		return PlanMeta{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	var m PlanMeta
	if err := scanMeta(rows, &m); err != nil {
		return PlanMeta{}, err
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(sc scanner, m *PlanMeta) error {
	var applied int
	if err := sc.Scan(&m.PlanID, &m.ConfigHash, &m.SourceTable, &m.TargetTable,
		&m.PlannerVersion, &m.FormatVersion, &m.Digest, &m.RowCount, &applied); err != nil {
		return fmt.Errorf("scan plan: %w", err)
	}
	m.Applied = applied != 0
	return nil
}
