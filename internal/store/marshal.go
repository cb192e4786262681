package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
)

// RowIR converts a plan row to its IR form, the shape persisted and
// snapshotted. Empty optional fields are absent.
func RowIR(row planner.PlanRow) (ir.IRObject, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(row); err != nil {
		return nil, fmt.Errorf("marshal plan row %d: %w", row.PlanOpSeq, err)
	}
	v, err := ir.UnmarshalIRValue(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode plan row %d: %w", row.PlanOpSeq, err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("plan row %d is not an object", row.PlanOpSeq)
	}
	return obj, nil
}

// marshalRow converts a plan row to canonical JSON TEXT for storage.
func marshalRow(row planner.PlanRow) (string, ir.IRObject, error) {
	obj, err := RowIR(row)
	if err != nil {
		return "", nil, err
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", nil, fmt.Errorf("marshal plan row %d: %w", row.PlanOpSeq, err)
	}
	return string(data), obj, nil
}

// unmarshalRow parses stored JSON TEXT back into a plan row.
// Large integers survive because IRObject decodes numbers via json.Number.
func unmarshalRow(data string) (planner.PlanRow, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var row planner.PlanRow
	if err := dec.Decode(&row); err != nil {
		return planner.PlanRow{}, fmt.Errorf("unmarshal plan row: %w", err)
	}
	return row, nil
}

// PlanDigest is the digest over the canonical form of every row, in order.
func PlanDigest(rows []planner.PlanRow) (string, error) {
	arr := make(ir.IRArray, len(rows))
	for i, r := range rows {
		obj, err := RowIR(r)
		if err != nil {
			return "", err
		}
		arr[i] = obj
	}
	return ir.PlanDigest(arr)
}
