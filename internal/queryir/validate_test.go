package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tmerge/internal/ir"
)

func TestValidate_Select(t *testing.T) {
	ok := Select{From: "people", Columns: []string{"id"}, OrderBy: []string{"id"}}
	assert.Empty(t, Validate(ok))
	assert.Empty(t, Validate(&ok))

	errs := Validate(Select{})
	paths := make([]string, len(errs))
	for i, e := range errs {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"select.table", "select.columns", "select.order_by"}, paths)
}

func TestValidate_RowInArity(t *testing.T) {
	q := Select{
		From:    "people",
		Columns: []string{"id"},
		OrderBy: []string{"id"},
		Filter: Or{Predicates: []Predicate{
			RowIn{Fields: []string{"a", "b"}, Rows: [][]ir.IRValue{{ir.IRInt(1), ir.IRInt(2)}, {ir.IRInt(3)}}},
		}},
	}
	errs := Validate(q)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "select.filter.or[0].rows[1]", errs[0].Path)
		assert.Contains(t, errs[0].Error(), "1 values for 2 fields")
	}
}

func TestValidate_WritesNeedFilter(t *testing.T) {
	assert.Len(t, Validate(Delete{From: "people"}), 1)
	assert.Len(t, Validate(Update{Table: "people", Set: ir.IRObject{"a": ir.IRInt(1)}, Filter: And{}}), 1)
	assert.Empty(t, Validate(Delete{From: "people", Filter: KeyFilter(ir.IRObject{"id": ir.IRInt(1)})}))
	assert.Len(t, Validate(Insert{Into: "people"}), 1)
	assert.Len(t, Validate(nil), 1)
}

func TestKeyFilter(t *testing.T) {
	p := KeyFilter(ir.IRObject{"b": ir.IRInt(2), "a": ir.IRInt(1)})
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "a", Value: ir.IRInt(1)},
		Equals{Field: "b", Value: ir.IRInt(2)},
	}}, p)
}
