package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Builder assembles one SQL statement through chained calls and hands it to
// the owning Conn for execution. Every mutator returns the same instance.
//
// Each literal bound by a predicate gets a fresh :pN placeholder from a
// single counter scoped to the builder, shared across where/having/insert/
// update clauses. All clause kinds ultimately feed one flat binding map, so
// a per-clause counter would collide the moment clause kinds are mixed.
//
// A Builder describes one logical query: build it, run it, drop it.
type Builder struct {
	conn     *Conn
	table    string
	columns  []string
	distinct bool
	joins    []string
	wheres   []cond
	groups   []string
	havings  []string
	orders   []string
	limit    *int
	offset   *int
	forUpd   bool

	bindings map[string]any
	seq      int
}

// cond is a WHERE fragment plus the boolean that glues it to the previous
// fragment. OR fragments are injected textually, left to right, with no
// grouping; mixed AND/OR chains keep plain left-to-right precedence.
type cond struct {
	boolean string // "AND" | "OR"
	expr    string
}

func newBuilder(c *Conn, table string) *Builder {
	return &Builder{conn: c, table: table, bindings: map[string]any{}}
}

// placeholder reserves the next unique binding name on this builder.
func (b *Builder) placeholder(value any) string {
	name := "p" + strconv.Itoa(b.seq)
	b.seq++
	b.bindings[name] = value
	return name
}

// Select replaces the projection. Without a call the statement selects *.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = columns
	return b
}

// AddSelect appends one column to the current projection.
func (b *Builder) AddSelect(column string) *Builder {
	if len(b.columns) == 0 {
		b.columns = []string{"*"}
	}
	b.columns = append(b.columns, column)
	return b
}

// Distinct marks the projection DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Join appends an INNER JOIN clause. Joins are emitted in call order.
func (b *Builder) Join(table, leftKey, operator, rightKey string) *Builder {
	return b.joinKind("INNER", table, leftKey, operator, rightKey)
}

// LeftJoin appends a LEFT JOIN clause.
func (b *Builder) LeftJoin(table, leftKey, operator, rightKey string) *Builder {
	return b.joinKind("LEFT", table, leftKey, operator, rightKey)
}

// RightJoin appends a RIGHT JOIN clause.
func (b *Builder) RightJoin(table, leftKey, operator, rightKey string) *Builder {
	return b.joinKind("RIGHT", table, leftKey, operator, rightKey)
}

func (b *Builder) joinKind(kind, table, leftKey, operator, rightKey string) *Builder {
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s ON %s %s %s", kind, table, leftKey, operator, rightKey))
	return b
}

// Where appends an AND predicate. Call either as Where(col, value), which
// compares with =, or Where(col, operator, value).
func (b *Builder) Where(column string, args ...any) *Builder {
	return b.addWhere("AND", column, args...)
}

// OrWhere appends a predicate glued with OR. Same argument forms as Where.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	return b.addWhere("OR", column, args...)
}

func (b *Builder) addWhere(boolean, column string, args ...any) *Builder {
	operator := "="
	var value any
	switch len(args) {
	case 1:
		value = args[0]
	case 2:
		operator = fmt.Sprint(args[0])
		value = args[1]
	default:
		panic("database: Where takes (column, value) or (column, operator, value)")
	}
	name := b.placeholder(value)
	b.wheres = append(b.wheres, cond{boolean: boolean, expr: fmt.Sprintf("%s %s :%s", column, operator, name)})
	return b
}

// WhereIn appends col IN (...) with one placeholder per value.
func (b *Builder) WhereIn(column string, values []any) *Builder {
	return b.whereIn(column, "IN", values)
}

// WhereNotIn appends col NOT IN (...).
func (b *Builder) WhereNotIn(column string, values []any) *Builder {
	return b.whereIn(column, "NOT IN", values)
}

func (b *Builder) whereIn(column, operator string, values []any) *Builder {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = ":" + b.placeholder(v)
	}
	b.wheres = append(b.wheres, cond{boolean: "AND", expr: fmt.Sprintf("%s %s (%s)", column, operator, strings.Join(names, ", "))})
	return b
}

// WhereNull appends col IS NULL.
func (b *Builder) WhereNull(column string) *Builder {
	b.wheres = append(b.wheres, cond{boolean: "AND", expr: column + " IS NULL"})
	return b
}

// WhereNotNull appends col IS NOT NULL.
func (b *Builder) WhereNotNull(column string) *Builder {
	b.wheres = append(b.wheres, cond{boolean: "AND", expr: column + " IS NOT NULL"})
	return b
}

// WhereBetween appends col BETWEEN min AND max with two placeholders.
func (b *Builder) WhereBetween(column string, min, max any) *Builder {
	lo := b.placeholder(min)
	hi := b.placeholder(max)
	b.wheres = append(b.wheres, cond{boolean: "AND", expr: fmt.Sprintf("%s BETWEEN :%s AND :%s", column, lo, hi)})
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groups = append(b.groups, columns...)
	return b
}

// Having appends an AND-joined HAVING predicate.
func (b *Builder) Having(column, operator string, value any) *Builder {
	name := b.placeholder(value)
	b.havings = append(b.havings, fmt.Sprintf("%s %s :%s", column, operator, name))
	return b
}

// OrderBy appends an ordering term. Direction other than desc means asc.
func (b *Builder) OrderBy(column, direction string) *Builder {
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	b.orders = append(b.orders, column+" "+dir)
	return b
}

// InRandomOrder orders rows randomly (MySQL RAND()).
func (b *Builder) InRandomOrder() *Builder {
	b.orders = append(b.orders, "RAND()")
	return b
}

// Limit caps the row count. Negative values are ignored.
func (b *Builder) Limit(n int) *Builder {
	if n >= 0 {
		b.limit = &n
	}
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	if n >= 0 {
		b.offset = &n
	}
	return b
}

// Lock adds FOR UPDATE to the rendered SELECT when flag is true.
func (b *Builder) Lock(flag bool) *Builder {
	b.forUpd = flag
	return b
}

// ToSQL renders the SELECT with named placeholders. Clause order is fixed:
// SELECT, FROM, JOIN, WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET.
// Reordering breaks validity on many dialects, so it does not follow call
// order.
func (b *Builder) ToSQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	sb.WriteString(b.whereClause())
	if len(b.groups) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groups, ", "))
	}
	if len(b.havings) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(b.havings, " AND "))
	}
	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orders, ", "))
	}
	if b.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*b.limit))
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*b.offset))
	}
	if b.forUpd {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String()
}

func (b *Builder) whereClause() string {
	if len(b.wheres) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(" WHERE ")
	for i, w := range b.wheres {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(w.boolean)
			sb.WriteString(" ")
		}
		sb.WriteString(w.expr)
	}
	return sb.String()
}

// Bindings exposes the accumulated placeholder values.
func (b *Builder) Bindings() map[string]any { return b.bindings }

// Get executes the assembled SELECT and returns all rows.
func (b *Builder) Get(ctx context.Context) ([]Row, error) {
	return b.conn.Query(ctx, b.ToSQL(), b.bindings)
}

// First forces LIMIT 1 and returns the row, or ok=false when none matched.
func (b *Builder) First(ctx context.Context) (Row, bool, error) {
	b.Limit(1)
	rows, err := b.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Count runs the statement with a COUNT projection and restores the previous
// projection afterwards, so the builder can keep being used.
func (b *Builder) Count(ctx context.Context, column ...string) (int64, error) {
	col := "*"
	if len(column) > 0 {
		col = column[0]
	}
	prevCols, prevDistinct := b.columns, b.distinct
	b.columns = []string{fmt.Sprintf("COUNT(%s) AS aggregate", col)}
	b.distinct = false
	rows, err := b.Get(ctx)
	b.columns, b.distinct = prevCols, prevDistinct
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["aggregate"]), nil
}

// Exists reports whether at least one row matches.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	n, err := b.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert builds one multi-row INSERT from the given rows. Columns come from
// the first row, in sorted order, so the rendered SQL is deterministic; all
// rows are expected to share that column set. For a single row the generated
// identifier is returned.
func (b *Builder) Insert(ctx context.Context, rows ...map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		names := make([]string, len(columns))
		for j, col := range columns {
			names[j] = ":" + b.placeholder(row[col])
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(")")
	}
	if _, err := b.conn.Exec(ctx, sb.String(), b.bindings); err != nil {
		return 0, err
	}
	if len(rows) == 1 {
		return b.conn.LastInsertID(), nil
	}
	return 0, nil
}

// Update builds an UPDATE restricted by the accumulated predicates and
// returns the affected row count. With no predicates the statement carries
// no WHERE clause and touches every row in the table; callers wanting a
// narrower effect must add predicates first.
func (b *Builder) Update(ctx context.Context, data map[string]any) (int64, error) {
	columns := make([]string, 0, len(data))
	for col := range data {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = :%s", col, b.placeholder(data[col]))
	}
	query := "UPDATE " + b.table + " SET " + strings.Join(sets, ", ") + b.whereClause()
	res, err := b.conn.Exec(ctx, query, b.bindings)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete removes the matching rows; like Update, no predicates means the
// whole table.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	query := "DELETE FROM " + b.table + b.whereClause()
	res, err := b.conn.Exec(ctx, query, b.bindings)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
