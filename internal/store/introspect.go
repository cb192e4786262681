package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	HasDefault bool
	// PK is the 1-based position in the primary key, 0 if not part of it.
	PK int
}

// TableInfo describes a table's columns in declaration order.
type TableInfo struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in declaration order.
func (t TableInfo) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// PKColumns returns the primary key columns in key order.
func (t TableInfo) PKColumns() []string {
	pk := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.PK > 0 {
			pk = append(pk, c)
		}
	}
	slices.SortFunc(pk, func(a, b Column) int { return a.PK - b.PK })
	out := make([]string, len(pk))
	for i, c := range pk {
		out[i] = c.Name
	}
	return out
}

// DefaultedNotNull returns the NOT NULL columns that carry a default.
// A NULL source value must not overwrite these in UPSERT and REPLACE modes.
func (t TableInfo) DefaultedNotNull() []string {
	var out []string
	for _, c := range t.Columns {
		if c.NotNull && c.HasDefault {
			out = append(out, c.Name)
		}
	}
	return out
}

// Introspect reads a table's column metadata.
func (s *Store) Introspect(ctx context.Context, table string) (TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid ASC
	`, table)
	if err != nil {
		return TableInfo{}, fmt.Errorf("introspect %q: %w", table, err)
	}
	defer rows.Close()

	info := TableInfo{Name: table}
	for rows.Next() {
		var (
			c       Column
			notNull int
			dflt    sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &c.PK); err != nil {
			return TableInfo{}, fmt.Errorf("scan column of %q: %w", table, err)
		}
		c.NotNull = notNull != 0
		c.HasDefault = dflt.Valid
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return TableInfo{}, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	if len(info.Columns) == 0 {
		return TableInfo{}, fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	return info, nil
}
