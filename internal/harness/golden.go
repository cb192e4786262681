package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
)

// Snapshot renders a result for golden comparison: the operation summary,
// the plan rows reduced to what changes the target, and the snapshot
// tables. Output is canonical JSON followed by a newline.
func Snapshot(name string, result *Result) ([]byte, error) {
	summary := make(ir.IRObject, len(result.Summary))
	for op, n := range result.Summary {
		summary[string(op)] = ir.IRInt(int64(n))
	}

	rows := make(ir.IRArray, len(result.Rows))
	for i, r := range result.Rows {
		rows[i] = snapshotRow(r)
	}

	tables := make(ir.IRObject, len(result.Tables))
	for table, contents := range result.Tables {
		arr := make(ir.IRArray, len(contents))
		for i, row := range contents {
			arr[i] = row
		}
		tables[table] = arr
	}

	doc := ir.IRObject{
		"scenario": ir.IRString(name),
		"plan_id":  ir.IRString(result.PlanID),
		"summary":  summary,
		"rows":     rows,
		"tables":   tables,
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func snapshotRow(r planner.PlanRow) ir.IRObject {
	obj := ir.IRObject{
		"plan_op_seq":   ir.IRInt(r.PlanOpSeq),
		"statement_seq": ir.IRInt(int64(r.StatementSeq)),
		"operation":     ir.IRString(string(r.Operation)),
	}
	if r.UpdateEffect != "" {
		obj["update_effect"] = ir.IRString(string(r.UpdateEffect))
	}
	if len(r.EntityKeys) > 0 {
		obj["entity_keys"] = r.EntityKeys
	}
	if r.OldValidFrom != "" {
		obj["old"] = ir.IRArray{ir.IRString(r.OldValidFrom), ir.IRString(r.OldValidUntil)}
	}
	if r.NewValidFrom != "" {
		obj["new"] = ir.IRArray{ir.IRString(r.NewValidFrom), ir.IRString(r.NewValidUntil)}
	}
	if r.Data != nil {
		obj["data"] = r.Data
	}
	if len(r.Feedback) > 0 {
		obj["feedback"] = r.Feedback
	}
	return obj
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
