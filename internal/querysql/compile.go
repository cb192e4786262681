package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/queryir"
)

// SQLCompiler compiles queryir nodes to parameterized SQL for SQLite.
//
// Every SELECT carries an ORDER BY. Values are always bound as parameters
// and identifiers are always quoted.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a read query to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// CompileStatement converts a write statement to SQL and its parameters.
func (c *SQLCompiler) CompileStatement(s queryir.Statement) (string, []any, error) {
	if errs := queryir.Validate(s); len(errs) > 0 {
		return "", nil, fmt.Errorf("invalid statement: %w", errs[0])
	}
	switch stmt := s.(type) {
	case queryir.Insert:
		return c.compileInsert(stmt)
	case queryir.Update:
		return c.compileUpdate(stmt)
	case queryir.Delete:
		where, params, err := c.compilePredicate(stmt.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile delete filter: %w", err)
		}
		return fmt.Sprintf("DELETE FROM %s WHERE %s", QuoteIdent(stmt.From), where), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", s)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if errs := queryir.Validate(q); len(errs) > 0 {
		return "", nil, fmt.Errorf("invalid select: %w", errs[0])
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(quoteList(q.Columns))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(q.From))

	var params []any
	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = filterParams
	}

	b.WriteString(" ORDER BY ")
	for i, col := range q.OrderBy {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(col))
		b.WriteString(" ASC")
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compileInsert(ins queryir.Insert) (string, []any, error) {
	cols := ins.Values.SortedKeys()
	params := make([]any, len(cols))
	for i, col := range cols {
		p, err := irValueToParam(ins.Values[col])
		if err != nil {
			return "", nil, fmt.Errorf("column %q: %w", col, err)
		}
		params[i] = p
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(ins.Into), quoteList(cols), placeholders(len(cols)))
	return sql, params, nil
}

func (c *SQLCompiler) compileUpdate(up queryir.Update) (string, []any, error) {
	cols := up.Set.SortedKeys()
	sets := make([]string, len(cols))
	params := make([]any, 0, len(cols))
	for i, col := range cols {
		p, err := irValueToParam(up.Set[col])
		if err != nil {
			return "", nil, fmt.Errorf("column %q: %w", col, err)
		}
		sets[i] = QuoteIdent(col) + " = ?"
		params = append(params, p)
	}
	where, whereParams, err := c.compilePredicate(up.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile update filter: %w", err)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", QuoteIdent(up.Table), strings.Join(sets, ", "), where)
	return sql, append(params, whereParams...), nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		if ir.IsNull(pred.Value) {
			return QuoteIdent(pred.Field) + " IS NULL", nil, nil
		}
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return QuoteIdent(pred.Field) + " = ?", []any{param}, nil
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case queryir.RowIn:
		return c.compileRowIn(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, len(preds))
	var params []any
	for i, pred := range preds {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, ps...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// compileRowIn emits a plain IN list for a single field and a row-value
// IN (VALUES ...) otherwise.
func (c *SQLCompiler) compileRowIn(in queryir.RowIn) (string, []any, error) {
	if len(in.Rows) == 0 {
		return "1 = 0", nil, nil
	}
	params := make([]any, 0, len(in.Rows)*len(in.Fields))
	tuples := make([]string, len(in.Rows))
	for i, row := range in.Rows {
		if len(row) != len(in.Fields) {
			return "", nil, fmt.Errorf("row %d has %d values for %d fields", i, len(row), len(in.Fields))
		}
		for _, v := range row {
			p, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("row %d: %w", i, err)
			}
			params = append(params, p)
		}
		tuples[i] = "(" + placeholders(len(row)) + ")"
	}

	if len(in.Fields) == 1 {
		return fmt.Sprintf("%s IN (%s)", QuoteIdent(in.Fields[0]), placeholders(len(in.Rows))), params, nil
	}
	return fmt.Sprintf("(%s) IN (VALUES %s)", quoteList(in.Fields), strings.Join(tuples, ", ")), params, nil
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ParamCount reports how many bind parameters a predicate compiles to.
func ParamCount(p queryir.Predicate) int {
	switch pred := p.(type) {
	case queryir.Equals:
		if ir.IsNull(pred.Value) {
			return 0
		}
		return 1
	case queryir.And:
		n := 0
		for _, sub := range pred.Predicates {
			n += ParamCount(sub)
		}
		return n
	case queryir.Or:
		n := 0
		for _, sub := range pred.Predicates {
			n += ParamCount(sub)
		}
		return n
	case queryir.RowIn:
		return len(pred.Rows) * len(pred.Fields)
	}
	return 0
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL
// parameter. Decimal numbers bind as text so no precision is lost; SQLite
// applies the column's numeric affinity.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRNumber:
		return string(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull, nil:
		return nil, nil
	case ir.IRArray, ir.IRObject:
		b, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
