package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/store"
	"github.com/roach88/tmerge/internal/temporal"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string
	Actual   string
	// Plan is a one-line-per-row rendering of the plan for context.
	Plan []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Plan) > 0 {
		fmt.Fprintf(&buf, "\nPlan:\n")
		for _, line := range e.Plan {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// describePlan renders each plan row as "[seq] OPERATION key from..until".
func describePlan(rows []planner.PlanRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		from, until := r.NewValidFrom, r.NewValidUntil
		if r.Operation == planner.OpDelete {
			from, until = r.OldValidFrom, r.OldValidUntil
		}
		out[i] = fmt.Sprintf("[%d] %s %s %s..%s", r.PlanOpSeq, r.Operation, ir.MapKey(r.EntityKeys), from, until)
	}
	return out
}

// assertOperationCount checks the number of plan rows with an operation.
func assertOperationCount(result *Result, assertion Assertion) error {
	op := planner.Operation(strings.ToUpper(assertion.Operation))
	count := result.Summary[op]
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOperationCount,
			Expected: fmt.Sprintf("%d %s rows", assertion.Count, op),
			Actual:   fmt.Sprintf("%d rows", count),
			Plan:     describePlan(result.Rows),
		}
	}
	return nil
}

// assertPlanRow checks one plan row against expected field values.
func assertPlanRow(result *Result, assertion Assertion) error {
	row, ok := result.Row(assertion.Seq)
	if !ok {
		return &AssertionError{
			Type:     AssertPlanRow,
			Expected: fmt.Sprintf("plan row %d", assertion.Seq),
			Actual:   fmt.Sprintf("plan has %d rows", len(result.Rows)),
			Plan:     describePlan(result.Rows),
		}
	}
	actual, err := store.RowIR(row)
	if err != nil {
		return fmt.Errorf("plan row %d: %w", assertion.Seq, err)
	}
	if m := matchFields(actual, assertion.Expect); m != nil {
		return &AssertionError{
			Type:     AssertPlanRow,
			Expected: fmt.Sprintf("plan row %d: %s", assertion.Seq, m.expected),
			Actual:   m.actual,
			Plan:     describePlan(result.Rows),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected values (subset semantics).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	matched, err := matchingRows(ctx, st, assertion)
	if err != nil {
		return err
	}
	whereDesc := formatWhereClause(assertion.Where)
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	if m := matchFields(matched[0], assertion.Expect); m != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s where %s: %s", assertion.Table, whereDesc, m.expected),
			Actual:   m.actual,
		}
	}
	return nil
}

// assertRowCount checks how many rows of the table match Where.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	matched, err := matchingRows(ctx, st, assertion)
	if err != nil {
		return err
	}
	if len(matched) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", len(matched)),
		}
	}
	return nil
}

// assertCoverage checks that the periods of the rows matching Where
// cover [From, Until) without gaps.
func assertCoverage(ctx context.Context, st *store.Store, era planner.Era, assertion Assertion) error {
	subtype, err := temporal.NewSubtype(era.Subtype, era.SubtypeCategory)
	if err != nil {
		return fmt.Errorf("coverage: %w", err)
	}
	matched, err := matchingRows(ctx, st, assertion)
	if err != nil {
		return err
	}

	periods := subtype.NewMultirange()
	spans := make([]temporal.Interval, 0, len(matched))
	for _, row := range matched {
		iv, err := rowPeriod(subtype, era, row)
		if err != nil {
			return fmt.Errorf("coverage: %s: %w", assertion.Table, err)
		}
		spans = append(spans, iv)
		periods.Add(iv)
	}

	want := temporal.Interval{From: assertion.From, Until: assertion.Until}
	if subtype.CoversWithoutGaps(spans, want) {
		return nil
	}
	covered := make([]string, 0, periods.Len())
	for _, iv := range periods.Intervals() {
		covered = append(covered, iv.String())
	}
	return &AssertionError{
		Type:     AssertCoverage,
		Expected: fmt.Sprintf("%s where %s covers %s without gaps", assertion.Table, formatWhereClause(assertion.Where), want),
		Actual:   fmt.Sprintf("covered: %s", strings.Join(covered, " ")),
	}
}

// rowPeriod reads a table row's period the way the era stores it.
func rowPeriod(s temporal.Subtype, era planner.Era, row ir.IRObject) (temporal.Interval, error) {
	if era.RangeColumn != "" {
		return temporal.ParseRange(ir.KeyText(row[era.RangeColumn]))
	}
	iv := temporal.Interval{From: ir.KeyText(row[era.ValidFromColumn])}
	if era.ValidUntilColumn != "" {
		iv.Until = ir.KeyText(row[era.ValidUntilColumn])
		return iv, nil
	}
	until, ok := s.PlusOneUnit(ir.KeyText(row[era.ValidToColumn]))
	if !ok {
		return temporal.Interval{}, fmt.Errorf("cannot derive until from %s", era.ValidToColumn)
	}
	iv.Until = until
	return iv, nil
}

func matchingRows(ctx context.Context, st *store.Store, assertion Assertion) ([]ir.IRObject, error) {
	rows, err := st.ReadTable(ctx, assertion.Table)
	if err != nil {
		return nil, &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	var matched []ir.IRObject
	for _, row := range rows {
		if matchFields(row, assertion.Where) == nil {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// fieldMismatch describes the first field that failed a subset match.
type fieldMismatch struct {
	expected string
	actual   string
}

// matchFields checks that actual holds every expected field. Expected
// values are plain YAML values and compare numerically across int and
// decimal forms. Keys are checked in sorted order so the reported
// mismatch is stable.
func matchFields(actual ir.IRObject, expected map[string]any) *fieldMismatch {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want, err := ir.FromGo(expected[key])
		if err != nil {
			return &fieldMismatch{
				expected: fmt.Sprintf("field %q = %v", key, expected[key]),
				actual:   fmt.Sprintf("expected value is not representable: %v", err),
			}
		}
		got, exists := actual[key]
		if !exists {
			return &fieldMismatch{
				expected: fmt.Sprintf("field %q to exist", key),
				actual:   fmt.Sprintf("fields present: %v", actual.SortedKeys()),
			}
		}
		if !ir.Equal(got, want) {
			return &fieldMismatch{
				expected: fmt.Sprintf("field %q = %s", key, render(want)),
				actual:   fmt.Sprintf("field %q = %s", key, render(got)),
			}
		}
	}
	return nil
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOperationCount:
			err = assertOperationCount(result, assertion)
		case AssertPlanRow:
			err = assertPlanRow(result, assertion)
		case AssertFinalState, AssertRowCount, AssertCoverage:
			switch {
			case st == nil:
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			case assertion.Type == AssertFinalState:
				err = assertFinalState(ctx, st, assertion)
			case assertion.Type == AssertCoverage:
				err = assertCoverage(ctx, st, result.Era, assertion)
			default:
				err = assertRowCount(ctx, st, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
