package queryir

import "github.com/roach88/tmerge/internal/ir"

// Query is a read statement.
type Query interface {
	queryNode()
}

// Predicate is a filter condition.
type Predicate interface {
	predicateNode()
}

// Statement is a write statement.
type Statement interface {
	statementNode()
}

// Select reads Columns from a table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	OrderBy []string
}

func (Select) queryNode() {}

// Equals is <field> = <value>. A NULL value compiles to IS NULL.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And is a conjunction; empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction; empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// RowIn is a row-value membership test:
//
//	(<f1>, <f2>) IN (VALUES (?, ?), (?, ?))
//
// Empty Rows means always false.
type RowIn struct {
	Fields []string
	Rows   [][]ir.IRValue
}

func (RowIn) predicateNode() {}

// Insert adds one row.
type Insert struct {
	Into   string
	Values ir.IRObject
}

func (Insert) statementNode() {}

// Update sets columns on the rows matching Filter.
type Update struct {
	Table  string
	Set    ir.IRObject
	Filter Predicate
}

func (Update) statementNode() {}

// Delete removes the rows matching Filter.
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) statementNode() {}

// KeyFilter builds the conjunction matching every column of key exactly.
// Columns are emitted in canonical key order.
func KeyFilter(key ir.IRObject) Predicate {
	preds := make([]Predicate, 0, len(key))
	for _, col := range key.SortedKeys() {
		preds = append(preds, Equals{Field: col, Value: key[col]})
	}
	return And{Predicates: preds}
}
