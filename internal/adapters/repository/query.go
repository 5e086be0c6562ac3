package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/coachd/pkg/metrics"
)

// Row is a set of column values for Insert, Update and Upsert.
type Row map[string]any

// cond is one WHERE predicate. Column names are always code constants.
type cond struct {
	expr func(ph func() string) string
	args []any
}

// Filter builds the WHERE / ORDER BY / LIMIT tail of a statement.
type Filter struct {
	conds []cond
	order []string
	limit int
}

// Where starts an empty filter.
func Where() *Filter { return &Filter{} }

func (f *Filter) add(args []any, expr func(ph func() string) string) *Filter {
	f.conds = append(f.conds, cond{expr: expr, args: args})
	return f
}

func (f *Filter) binary(col, op string, v any) *Filter {
	return f.add([]any{v}, func(ph func() string) string { return col + " " + op + " " + ph() })
}

// Eq adds col = v.
func (f *Filter) Eq(col string, v any) *Filter { return f.binary(col, "=", v) }

// Gte adds col >= v.
func (f *Filter) Gte(col string, v any) *Filter { return f.binary(col, ">=", v) }

// Lt adds col < v.
func (f *Filter) Lt(col string, v any) *Filter { return f.binary(col, "<", v) }

// EqFold adds a case-insensitive equality on a text column.
func (f *Filter) EqFold(col, v string) *Filter {
	return f.add([]any{strings.ToLower(v)}, func(ph func() string) string { return "LOWER(" + col + ") = " + ph() })
}

// Contains adds a case-insensitive substring match on a text column.
func (f *Filter) Contains(col, sub string) *Filter {
	pattern := "%" + escapeLike(strings.ToLower(sub)) + "%"
	return f.add([]any{pattern}, func(ph func() string) string {
		return "LOWER(" + col + ") LIKE " + ph() + ` ESCAPE '\'`
	})
}

// NotNull adds col IS NOT NULL.
func (f *Filter) NotNull(col string) *Filter {
	return f.add(nil, func(func() string) string { return col + " IS NOT NULL" })
}

// In adds col IN (vals...). An empty list matches nothing.
func (f *Filter) In(col string, vals ...any) *Filter {
	if len(vals) == 0 {
		return f.add(nil, func(func() string) string { return "1 = 0" })
	}
	return f.add(vals, func(ph func() string) string {
		marks := make([]string, len(vals))
		for i := range vals {
			marks[i] = ph()
		}
		return col + " IN (" + strings.Join(marks, ", ") + ")"
	})
}

// OrderBy appends a sort key.
func (f *Filter) OrderBy(col string, desc bool) *Filter {
	if desc {
		col += " DESC"
	}
	f.order = append(f.order, col)
	return f
}

// Limit caps the number of rows; zero or negative means no cap.
func (f *Filter) Limit(n int) *Filter {
	f.limit = n
	return f
}

// build renders the filter. next hands out placeholders continuing the
// statement's numbering.
func (f *Filter) build(d dialect, next func() string) (string, []any) {
	if f == nil {
		return "", nil
	}
	var b strings.Builder
	var args []any
	for i, c := range f.conds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(c.expr(next))
		for _, a := range c.args {
			args = append(args, d.bind(a))
		}
	}
	if len(f.order) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(f.order, ", "))
	}
	if f.limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(f.limit))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// counter numbers placeholders for one statement.
func (s *SQLStore) counter() func() string {
	n := 0
	return func() string {
		n++
		return s.dialect.placeholder(n)
	}
}

// Select runs SELECT cols FROM table with the filter and calls scan once per row.
func (s *SQLStore) Select(ctx context.Context, table string, cols []string, f *Filter, scan func(*sql.Rows) error) error {
	tail, args := f.build(s.dialect, s.counter())
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + table + tail

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return s.fail("select", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return s.fail("scan", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return s.fail("select", table, err)
	}
	return nil
}

// Count returns the number of rows in table matching the filter.
func (s *SQLStore) Count(ctx context.Context, table string, f *Filter) (int, error) {
	tail, args := f.build(s.dialect, s.counter())
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+tail, args...).Scan(&n); err != nil {
		return 0, s.fail("count", table, err)
	}
	return n, nil
}

// Insert writes rows in one statement. Every row must carry the same columns.
func (s *SQLStore) Insert(ctx context.Context, table string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols := sortedKeys(rows[0])
	next := s.counter()
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for _, r := range rows {
		if len(r) != len(cols) {
			return fmt.Errorf("insert %s: %w", table, ErrColumnMismatch)
		}
		marks := make([]string, len(cols))
		for i, c := range cols {
			v, ok := r[c]
			if !ok {
				return fmt.Errorf("insert %s: %w", table, ErrColumnMismatch)
			}
			marks[i] = next()
			args = append(args, s.dialect.bind(v))
		}
		values = append(values, "("+strings.Join(marks, ", ")+")")
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(values, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.fail("insert", table, err)
	}
	return nil
}

// Update applies patch to rows matching the filter and returns the number of
// rows changed.
func (s *SQLStore) Update(ctx context.Context, table string, f *Filter, patch Row) (int64, error) {
	if len(patch) == 0 {
		return 0, fmt.Errorf("update %s: %w", table, ErrEmptyPatch)
	}
	next := s.counter()
	cols := sortedKeys(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + next()
		args = append(args, s.dialect.bind(patch[c]))
	}
	tail, whereArgs := f.build(s.dialect, next)
	res, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+tail, append(args, whereArgs...)...)
	if err != nil {
		return 0, s.fail("update", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail("update", table, err)
	}
	return n, nil
}

// Upsert inserts row or, when it collides on the conflict columns, overwrites
// every other column except id.
func (s *SQLStore) Upsert(ctx context.Context, table string, row Row, conflict ...string) error {
	cols := sortedKeys(row)
	next := s.counter()
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		marks[i] = next()
		args[i] = s.dialect.bind(row[c])
	}

	skip := map[string]bool{"id": true}
	for _, c := range conflict {
		skip[c] = true
	}
	var sets []string
	for _, c := range cols {
		if !skip[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")" +
		" ON CONFLICT (" + strings.Join(conflict, ", ") + ") " + action
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.fail("upsert", table, err)
	}
	return nil
}

func (s *SQLStore) fail(op, table string, err error) error {
	metrics.RecordErrorByComponent("repository", op)
	return fmt.Errorf("%s %s: %w", op, table, err)
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
