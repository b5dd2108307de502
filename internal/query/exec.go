// internal/query/exec.go
//
// Query execution and single-object writes.
//
// All helpers accept sqlx.ExtContext so they run unchanged on *sqlx.DB and
// inside a *sqlx.Tx (formset saves).
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// Row is one result row keyed by column name.
type Row map[string]any

// String renders a column for display.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return fmt.Sprint(v)
	}
}

// normalize turns driver byte slices into strings and integer-typed columns
// into int64.
func (m *Model) normalize(raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if s, ok := v.(string); ok && m.isIntColumn(k) {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				v = n
			}
		}
		row[k] = v
	}
	return row
}

func (m *Model) isIntColumn(col string) bool {
	if col == m.PK {
		return true
	}
	f, ok := lo.Find(m.Fields, func(f Field) bool { return f.Column == col })
	return ok && (f.Type == TypeInt || f.Type == TypeFK)
}

// All runs the query and returns every row.
func (q *Query) All(ctx context.Context, db sqlx.ExtContext) ([]Row, error) {
	s, args := q.SQL()
	rows, err := db.QueryxContext(ctx, db.Rebind(s), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		row := q.model.normalize(raw)
		for k := range row {
			if strings.HasPrefix(k, "_sort") {
				delete(row, k)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// First returns the first row or ErrNotFound.
func (q *Query) First(ctx context.Context, db sqlx.ExtContext) (Row, error) {
	rows, err := q.Limit(1, 0).All(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Count returns the number of rows the query yields.
func (q *Query) Count(ctx context.Context, db sqlx.ExtContext) (int, error) {
	var s string
	var args []any
	if q.distinct {
		inner, a := q.Limit(0, 0).withoutOrder().SQL()
		s, args = "SELECT COUNT(*) FROM ("+inner+") AS `c`", a
	} else {
		fw, a := q.fromWhere()
		s, args = "SELECT COUNT(*)"+fw, a
	}
	var n int
	err := sqlx.GetContext(ctx, db, &n, db.Rebind(s), args...)
	return n, err
}

func (q *Query) withoutOrder() *Query {
	c := q.clone()
	c.order = nil
	return c
}

// Values returns the distinct non-NULL values of path, ascending.
func (q *Query) Values(ctx context.Context, db sqlx.ExtContext, path string) ([]any, error) {
	t, err := q.model.resolve(path)
	if err != nil {
		return nil, err
	}
	c := q.clone()
	c.addJoin(t.join)
	fw, args := c.Where(t.expr + " IS NOT NULL").fromWhere()
	s := "SELECT DISTINCT " + t.expr + fw + " ORDER BY " + t.expr

	rows, err := db.QueryxContext(ctx, db.Rebind(s), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MinMax returns the smallest and largest value of path as ISO dates.
// Datetimes are truncated to their date.  Both are "" on an empty set.
func (q *Query) MinMax(ctx context.Context, db sqlx.ExtContext, path string) (string, string, error) {
	t, err := q.model.resolve(path)
	if err != nil {
		return "", "", err
	}
	c := q.clone()
	c.addJoin(t.join)
	fw, args := c.fromWhere()
	s := "SELECT MIN(" + t.expr + "), MAX(" + t.expr + ")" + fw

	var least, greatest any
	if err := db.QueryRowxContext(ctx, db.Rebind(s), args...).Scan(&least, &greatest); err != nil {
		return "", "", err
	}
	return DateOnly(least), DateOnly(greatest), nil
}

// DateOnly renders a driver date / datetime value as YYYY-MM-DD.
func DateOnly(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(time.DateOnly)
	case []byte:
		return DateOnly(string(t))
	case string:
		if len(t) >= len(time.DateOnly) {
			return t[:len(time.DateOnly)]
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}

/*──────────────────────────── pagination ───────────────────────────────────*/

// Page is one slice of a paginated query.
type Page struct {
	Number   int
	Size     int
	Total    int
	NumPages int
	Rows     []Row
}

// HasNext reports whether a later page exists.
func (p *Page) HasNext() bool { return p.Number < p.NumPages }

// HasPrevious reports whether an earlier page exists.
func (p *Page) HasPrevious() bool { return p.Number > 1 }

// Paginate returns page number (1-based) of size rows.  A page outside the
// range wraps ErrNotFound; an empty result set still has page 1.
func (q *Query) Paginate(ctx context.Context, db sqlx.ExtContext, number, size int) (*Page, error) {
	total, err := q.Count(ctx, db)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = max(total, 1)
	}
	pages := max((total+size-1)/size, 1)
	if number < 1 || number > pages {
		return nil, fmt.Errorf("page %d of %d: %w", number, pages, ErrNotFound)
	}
	rows, err := q.Limit(size, (number-1)*size).All(ctx, db)
	if err != nil {
		return nil, err
	}
	return &Page{Number: number, Size: size, Total: total, NumPages: pages, Rows: rows}, nil
}

/*──────────────────────────── objects ──────────────────────────────────────*/

// Get loads one object by primary key.  Soft-deleted rows are included
// only when withDeleted is set.
func Get(ctx context.Context, db sqlx.ExtContext, m *Model, pk any, withDeleted bool) (Row, error) {
	q := &Query{model: m, withDeleted: withDeleted}
	q = q.Where(m.column(m.PK)+" = ?", pk)
	return q.First(ctx, db)
}

// columns maps field names to columns, sorted for stable SQL.
func (m *Model) columns(values map[string]any) ([]string, []any, error) {
	names := lo.Keys(values)
	slices.Sort(names)
	cols := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, n := range names {
		f, ok := m.Field(n)
		if !ok {
			return nil, nil, fmt.Errorf("query: %s has no field %q", m.Name, n)
		}
		cols = append(cols, quoteIdent(f.Column))
		args = append(args, values[n])
	}
	return cols, args, nil
}

// Insert writes a new row and returns its id.
func Insert(ctx context.Context, db sqlx.ExtContext, m *Model, values map[string]any) (int64, error) {
	cols, args, err := m.columns(values)
	if err != nil {
		return 0, err
	}
	s := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(m.Table), strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	res, err := db.ExecContext(ctx, db.Rebind(s), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update rewrites the given fields of one row.  MySQL reports zero
// affected rows for unchanged values, so a missing row is not detected
// here; callers load the object first.
func Update(ctx context.Context, db sqlx.ExtContext, m *Model, pk any, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	cols, args, err := m.columns(values)
	if err != nil {
		return err
	}
	sets := lo.Map(cols, func(c string, _ int) string { return c + " = ?" })
	s := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(m.Table), strings.Join(sets, ", "), quoteIdent(m.PK))
	_, err = db.ExecContext(ctx, db.Rebind(s), append(args, pk)...)
	return err
}

// Delete removes one row.  A missing row is ErrNotFound.
func Delete(ctx context.Context, db sqlx.ExtContext, m *Model, pk any) error {
	s := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(m.Table), quoteIdent(m.PK))
	res, err := db.ExecContext(ctx, db.Rebind(s), pk)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means "no such object".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
