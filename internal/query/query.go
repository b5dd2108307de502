// internal/query/query.go
//
// Immutable SELECT builder.
//
// Every refinement (Where, In, Range, OrderBy, Distinct) returns a copy, so
// a base Query can be shared and refined per request.  Placeholders are
// `?`; callers run the SQL through the handle's Rebind.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("query: object not found")

type cond struct {
	sql  string
	args []any
}

// Query is a lazily evaluated SELECT over one model.
type Query struct {
	model       *Model
	joins       []*join
	where       []cond
	order       []string
	distinct    bool
	withDeleted bool
	limit       int
	offset      int
}

// From starts a query over m ordered by the model's default ordering.
// Invalid default orderings surface at the first execution.
func From(m *Model) *Query {
	q := &Query{model: m}
	if len(m.Ordering) > 0 {
		if o, err := q.OrderBy(m.Ordering...); err == nil {
			return o
		}
	}
	return q
}

// Model returns the queried model.
func (q *Query) Model() *Model { return q.model }

func (q *Query) clone() *Query {
	c := *q
	c.joins = append([]*join(nil), q.joins...)
	c.where = append([]cond(nil), q.where...)
	c.order = append([]string(nil), q.order...)
	return &c
}

func (q *Query) addJoin(j *join) {
	if j == nil {
		return
	}
	for _, have := range q.joins {
		if have.alias == j.alias {
			return
		}
	}
	q.joins = append(q.joins, j)
}

// Where adds a raw predicate.  Callers must only pass trusted SQL.
func (q *Query) Where(sql string, args ...any) *Query {
	c := q.clone()
	c.where = append(c.where, cond{sql: sql, args: args})
	return c
}

// Eq filters path = value.
func (q *Query) Eq(path string, value any) (*Query, error) {
	t, err := q.model.resolve(path)
	if err != nil {
		return nil, err
	}
	c := q.clone()
	c.addJoin(t.join)
	c.where = append(c.where, cond{sql: t.expr + " = ?", args: []any{value}})
	return c, nil
}

// In filters path IN (values).  An empty list matches nothing.
func (q *Query) In(path string, values []any) (*Query, error) {
	t, err := q.model.resolve(path)
	if err != nil {
		return nil, err
	}
	c := q.clone()
	c.addJoin(t.join)
	if len(values) == 0 {
		c.where = append(c.where, cond{sql: "1 = 0"})
		return c, nil
	}
	expr, args, err := sqlx.In(t.expr+" IN (?)", values)
	if err != nil {
		return nil, err
	}
	c.where = append(c.where, cond{sql: expr, args: args})
	return c, nil
}

// Range filters the date part of path to [min, max].  Empty bounds are
// open.  Bounds are ISO dates.
func (q *Query) Range(path, min, max string) (*Query, error) {
	t, err := q.model.resolve(path)
	if err != nil {
		return nil, err
	}
	c := q.clone()
	c.addJoin(t.join)
	if min != "" {
		c.where = append(c.where, cond{sql: "DATE(" + t.expr + ") >= ?", args: []any{min}})
	}
	if max != "" {
		c.where = append(c.where, cond{sql: "DATE(" + t.expr + ") <= ?", args: []any{max}})
	}
	return c, nil
}

// OrderBy replaces the ordering.  A leading "-" sorts descending.  The
// primary key is appended as a tiebreaker so pages are stable.
func (q *Query) OrderBy(paths ...string) (*Query, error) {
	c := q.clone()
	c.order = c.order[:0]
	for _, p := range paths {
		dir := " ASC"
		if strings.HasPrefix(p, "-") {
			dir, p = " DESC", p[1:]
		}
		t, err := q.model.resolve(p)
		if err != nil {
			return nil, err
		}
		c.addJoin(t.join)
		c.order = append(c.order, t.expr+dir)
	}
	if len(c.order) > 0 {
		c.order = append(c.order, q.model.column(q.model.PK)+" ASC")
	}
	return c, nil
}

// Distinct removes duplicate rows introduced by joins.
func (q *Query) Distinct() *Query {
	c := q.clone()
	c.distinct = true
	return c
}

// WithDeleted includes soft-deleted rows.
func (q *Query) WithDeleted() *Query {
	c := q.clone()
	c.withDeleted = true
	return c
}

// Limit sets LIMIT / OFFSET.  n <= 0 removes the limit.
func (q *Query) Limit(n, offset int) *Query {
	c := q.clone()
	c.limit, c.offset = n, offset
	return c
}

/*──────────────────────────── SQL rendering ────────────────────────────────*/

func (q *Query) fromWhere() (string, []any) {
	var b strings.Builder
	var args []any
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(q.model.Table))
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j.sql)
	}
	conds := q.where
	if q.model.SoftDelete != "" && !q.withDeleted {
		conds = append([]cond{{sql: q.model.column(q.model.SoftDelete) + " IS NULL"}}, conds...)
	}
	for i, c := range conds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("(" + c.sql + ")")
		args = append(args, c.args...)
	}
	return b.String(), args
}

// SQL renders the row SELECT.  Order expressions from joined tables are
// selected as `_sortN` columns so DISTINCT stays valid.
func (q *Query) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(quoteIdent(q.model.Table) + ".*")
	order := make([]string, len(q.order))
	base := quoteIdent(q.model.Table) + "."
	for i, o := range q.order {
		order[i] = o
		if q.distinct && !strings.HasPrefix(o, base) {
			alias := fmt.Sprintf("_sort%d", i)
			expr, dir, _ := strings.Cut(o, " ")
			fmt.Fprintf(&b, ", %s AS %s", expr, quoteIdent(alias))
			order[i] = quoteIdent(alias) + " " + dir
		}
	}
	fw, args := q.fromWhere()
	b.WriteString(fw)
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.limit, q.offset)
	}
	return b.String(), args
}
