// Package rowset maps raw table rows onto planner rows.
//
// A Layout is built once per column signature: it resolves every column
// to its category (identity, lookup, temporal, ephemeral, data) so that
// converting a row is a straight walk over positions.
package rowset

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/temporal"
)

// Layout converts positional column values into SourceRow and TargetRow.
type Layout struct {
	ctx *planner.Context

	source columnMap
	target columnMap

	identity   []string
	lookup     []string
	ephemeral  []string
	sourceData []string
	targetData []string
	pkOnly     []string
}

// columnMap resolves column names to positions of one table.
type columnMap struct {
	names []string
	pos   map[string]int
}

func newColumnMap(names []string) columnMap {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}
	return columnMap{names: names, pos: pos}
}

func (m columnMap) has(col string) bool {
	_, ok := m.pos[col]
	return ok
}

// value returns the column's value, or NULL when the column is absent.
func (m columnMap) value(values []ir.IRValue, col string) ir.IRValue {
	i, ok := m.pos[col]
	if !ok || i >= len(values) || values[i] == nil {
		return ir.IRNull{}
	}
	return values[i]
}

// NewLayout categorizes the source and target columns. pkColumns are the
// target's primary key columns.
func NewLayout(ctx *planner.Context, sourceColumns, targetColumns, pkColumns []string) (*Layout, error) {
	l := &Layout{
		ctx:    ctx,
		source: newColumnMap(sourceColumns),
		target: newColumnMap(targetColumns),
	}

	if !l.source.has(ctx.RowIDColumn) {
		return nil, fmt.Errorf("source is missing row id column %q", ctx.RowIDColumn)
	}
	if ctx.IsFoundingMode() && !l.source.has(ctx.FoundingIDColumn) {
		return nil, fmt.Errorf("source is missing founding id column %q", ctx.FoundingIDColumn)
	}
	for _, table := range []struct {
		name string
		cols columnMap
	}{{"source", l.source}, {"target", l.target}} {
		if err := l.checkEra(table.name, table.cols); err != nil {
			return nil, err
		}
	}
	for _, col := range ctx.IdentityColumns {
		if !l.target.has(col) {
			return nil, fmt.Errorf("target is missing identity column %q", col)
		}
	}
	for _, col := range ctx.AllLookupColumns {
		if !l.target.has(col) {
			return nil, fmt.Errorf("target is missing lookup column %q", col)
		}
	}

	l.identity = ctx.IdentityColumns
	l.lookup = ctx.AllLookupColumns
	for _, col := range ctx.EphemeralColumns {
		if l.target.has(col) {
			l.ephemeral = append(l.ephemeral, col)
		}
	}

	for _, col := range sourceColumns {
		if l.reserved(col) || col == ctx.RowIDColumn || col == ctx.FoundingIDColumn {
			continue
		}
		if l.target.has(col) {
			l.sourceData = append(l.sourceData, col)
		}
	}
	for _, col := range targetColumns {
		if !l.reserved(col) {
			l.targetData = append(l.targetData, col)
		}
	}
	for _, col := range pkColumns {
		if !slices.Contains(l.identity, col) && !l.isTemporal(col) {
			l.pkOnly = append(l.pkOnly, col)
		}
	}
	return l, nil
}

func (l *Layout) checkEra(table string, cols columnMap) error {
	era := l.ctx.Era
	if era.RangeColumn != "" && cols.has(era.RangeColumn) {
		return nil
	}
	if !cols.has(era.ValidFromColumn) {
		return fmt.Errorf("%s has neither range column %q nor valid_from column %q",
			table, era.RangeColumn, era.ValidFromColumn)
	}
	if !cols.has(era.ValidUntilColumn) && !cols.has(era.ValidToColumn) {
		return fmt.Errorf("%s has no valid_until or valid_to column for era %q", table, era.Name)
	}
	return nil
}

func (l *Layout) isTemporal(col string) bool {
	era := l.ctx.Era
	return col != "" && (col == era.RangeColumn || col == era.ValidFromColumn ||
		col == era.ValidUntilColumn || col == era.ValidToColumn)
}

// reserved reports whether col is a key, temporal or ephemeral column.
func (l *Layout) reserved(col string) bool {
	return l.isTemporal(col) ||
		slices.Contains(l.identity, col) ||
		slices.Contains(l.lookup, col) ||
		slices.Contains(l.ctx.EphemeralColumns, col)
}

// SourceColumns returns the source column names in read order.
func (l *Layout) SourceColumns() []string { return l.source.names }

// TargetColumns returns the target column names in read order.
func (l *Layout) TargetColumns() []string { return l.target.names }

// DataColumns returns the target's payload columns.
func (l *Layout) DataColumns() []string { return l.targetData }

// PKOnlyColumns returns primary key columns that are neither identity nor temporal.
func (l *Layout) PKOnlyColumns() []string { return l.pkOnly }

// Source converts one source row.
func (l *Layout) Source(values []ir.IRValue) (planner.SourceRow, error) {
	if len(values) != len(l.source.names) {
		return planner.SourceRow{}, fmt.Errorf("source row has %d values, want %d", len(values), len(l.source.names))
	}

	rowID, err := l.rowID(values)
	if err != nil {
		return planner.SourceRow{}, err
	}
	from, until, err := l.bounds(l.source, values)
	if err != nil {
		return planner.SourceRow{}, fmt.Errorf("source row %d: %w", rowID, err)
	}

	causal := strconv.FormatInt(rowID, 10)
	if l.ctx.IsFoundingMode() {
		if v := l.source.value(values, l.ctx.FoundingIDColumn); !ir.IsNull(v) {
			causal = ir.KeyText(v)
		}
	}

	row := planner.SourceRow{
		RowID:        rowID,
		CausalID:     causal,
		ValidFrom:    from,
		ValidUntil:   until,
		IdentityKeys: pick(l.source, values, l.identity),
		LookupKeys:   pick(l.source, values, l.lookup),
		Data:         pick(l.source, values, l.sourceData),
		Ephemeral:    pick(l.source, values, l.ephemeral),
	}
	row.StablePK = row.IdentityKeys.Clone()
	row.IsIdentifiable = len(l.identity) == 0 || ir.HasNonNull(row.IdentityKeys)
	row.LookupColsAreNull = !ir.HasNonNull(row.LookupKeys)
	if len(row.IdentityKeys) == 0 {
		row.IdentityKeys = nil
		row.StablePK = nil
	}
	return row, nil
}

// Target converts one target row.
func (l *Layout) Target(values []ir.IRValue) (planner.TargetRow, error) {
	if len(values) != len(l.target.names) {
		return planner.TargetRow{}, fmt.Errorf("target row has %d values, want %d", len(values), len(l.target.names))
	}
	from, until, err := l.bounds(l.target, values)
	if err != nil {
		return planner.TargetRow{}, fmt.Errorf("target row: %w", err)
	}

	row := planner.TargetRow{
		ValidFrom:    from,
		ValidUntil:   until,
		IdentityKeys: pick(l.target, values, l.identity),
		LookupKeys:   pick(l.target, values, l.lookup),
		Data:         pick(l.target, values, l.targetData),
		Ephemeral:    pick(l.target, values, l.ephemeral),
		PKOnly:       pick(l.target, values, l.pkOnly),
	}
	if len(row.IdentityKeys) == 0 {
		row.IdentityKeys = nil
	}
	if len(row.PKOnly) == 0 {
		row.PKOnly = nil
	}
	return row, nil
}

func (l *Layout) rowID(values []ir.IRValue) (int64, error) {
	switch v := l.source.value(values, l.ctx.RowIDColumn).(type) {
	case ir.IRInt:
		return int64(v), nil
	case ir.IRString:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("row id %q is not an integer", string(v))
		}
		return n, nil
	case ir.IRNull:
		return 0, fmt.Errorf("row id column %q is NULL", l.ctx.RowIDColumn)
	default:
		return 0, fmt.Errorf("row id column %q has unsupported value %s", l.ctx.RowIDColumn, ir.KeyText(v))
	}
}

// bounds reads the half-open validity period: from is the range's lower
// bound or valid_from; until is the range's upper bound, valid_until, or
// valid_to plus one unit.
func (l *Layout) bounds(cols columnMap, values []ir.IRValue) (string, string, error) {
	era := l.ctx.Era
	var rng temporal.Interval
	if era.RangeColumn != "" {
		if v := cols.value(values, era.RangeColumn); !ir.IsNull(v) {
			parsed, err := temporal.ParseRange(ir.KeyText(v))
			if err != nil {
				return "", "", err
			}
			rng = parsed
		}
	}

	from := rng.From
	if from == "" {
		from = boundText(cols.value(values, era.ValidFromColumn))
	}
	until := rng.Until
	if until == "" {
		until = boundText(cols.value(values, era.ValidUntilColumn))
	}
	if until == "" && era.ValidToColumn != "" {
		if to := boundText(cols.value(values, era.ValidToColumn)); to != "" {
			next, ok := l.ctx.Subtype.PlusOneUnit(to)
			if !ok {
				return "", "", fmt.Errorf("cannot derive valid_until from valid_to %q", to)
			}
			until = next
		}
	}

	switch {
	case from == "":
		return "", "", fmt.Errorf("no lower bound for era %q", era.Name)
	case until == "":
		return "", "", fmt.Errorf("no upper bound for era %q", era.Name)
	}
	period := temporal.Interval{From: from, Until: until}
	if err := l.ctx.Subtype.CheckInterval(period); err != nil {
		return "", "", fmt.Errorf("validity period %s: %w", period, err)
	}
	switch {
	case !l.ctx.Subtype.Less(from, until):
		return "", "", fmt.Errorf("empty validity period %s", temporal.FormatRange(from, until))
	}
	return from, until, nil
}

func boundText(v ir.IRValue) string {
	if ir.IsNull(v) {
		return ""
	}
	return ir.KeyText(v)
}

func pick(cols columnMap, values []ir.IRValue, names []string) ir.IRObject {
	out := make(ir.IRObject, len(names))
	for _, n := range names {
		if cols.has(n) {
			out[n] = cols.value(values, n)
		}
	}
	return out
}
