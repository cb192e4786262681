package queryir

import (
	"fmt"
)

// ValidationError describes one malformed node.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks a Query or Statement against the package rules and
// returns every violation found.
func Validate(node any) []ValidationError {
	v := &validator{}
	switch n := node.(type) {
	case Select:
		v.validateSelect("select", n)
	case *Select:
		v.validateSelect("select", *n)
	case Insert:
		v.validateTable("insert", n.Into)
		if len(n.Values) == 0 {
			v.add("insert.values", "at least one column is required")
		}
	case Update:
		v.validateTable("update", n.Table)
		if len(n.Set) == 0 {
			v.add("update.set", "at least one column is required")
		}
		v.requireFilter("update", n.Filter)
	case Delete:
		v.validateTable("delete", n.From)
		v.requireFilter("delete", n.Filter)
	case nil:
		v.add("node", "nil node")
	default:
		v.add("node", fmt.Sprintf("unsupported node type %T", node))
	}
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(path, msg string) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: msg})
}

func (v *validator) validateTable(path, table string) {
	if table == "" {
		v.add(path+".table", "table name is required")
	}
}

func (v *validator) validateSelect(path string, s Select) {
	v.validateTable(path, s.From)
	if len(s.Columns) == 0 {
		v.add(path+".columns", "explicit columns are required")
	}
	if len(s.OrderBy) == 0 {
		v.add(path+".order_by", "ORDER BY is mandatory")
	}
	if s.Filter != nil {
		v.validatePredicate(path+".filter", s.Filter)
	}
}

// requireFilter rejects unfiltered writes: a plan never touches a whole table.
func (v *validator) requireFilter(path string, p Predicate) {
	if p == nil {
		v.add(path+".filter", "filter is required")
		return
	}
	if and, ok := p.(And); ok && len(and.Predicates) == 0 {
		v.add(path+".filter", "filter is required")
		return
	}
	v.validatePredicate(path+".filter", p)
}

func (v *validator) validatePredicate(path string, p Predicate) {
	switch pred := p.(type) {
	case Equals:
		if pred.Field == "" {
			v.add(path, "field name is required")
		}
	case And:
		for i, sub := range pred.Predicates {
			v.validatePredicate(fmt.Sprintf("%s.and[%d]", path, i), sub)
		}
	case Or:
		for i, sub := range pred.Predicates {
			v.validatePredicate(fmt.Sprintf("%s.or[%d]", path, i), sub)
		}
	case RowIn:
		if len(pred.Fields) == 0 {
			v.add(path, "row IN needs at least one field")
		}
		for i, row := range pred.Rows {
			if len(row) != len(pred.Fields) {
				v.add(fmt.Sprintf("%s.rows[%d]", path, i),
					fmt.Sprintf("has %d values for %d fields", len(row), len(pred.Fields)))
			}
		}
	default:
		v.add(path, fmt.Sprintf("unsupported predicate type %T", p))
	}
}
