package query

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var (
	testAuthor = &Model{
		Name:   "qt_author",
		Table:  "author",
		Fields: []Field{{Name: "name"}},
	}
	testBook = &Model{
		Name:  "qt_book",
		Table: "book",
		Fields: []Field{
			{Name: "title"},
			{Name: "status"},
			{Name: "published", Type: TypeDate},
			{Name: "author", Type: TypeFK, Related: "qt_author"},
		},
		SoftDelete: "deleted_at",
	}
)

func init() {
	Register(testAuthor)
	Register(testBook)
}

func newDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSQLWithJoinAndOrder(t *testing.T) {
	q, err := From(testBook).In("author__name", []any{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if q, err = q.OrderBy("-title"); err != nil {
		t.Fatal(err)
	}
	got, args := q.SQL()
	want := "SELECT `book`.* FROM `book` " +
		"LEFT JOIN `author` AS `rel_author` ON `rel_author`.`id` = `book`.`author_id` " +
		"WHERE (`book`.`deleted_at` IS NULL) AND (`rel_author`.`name` IN (?, ?)) " +
		"ORDER BY `book`.`title` DESC, `book`.`id` ASC"
	if got != want {
		t.Fatalf("SQL mismatch\n got: %s\nwant: %s", got, want)
	}
	if !reflect.DeepEqual(args, []any{"a", "b"}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestDistinctSelectsJoinedSortColumn(t *testing.T) {
	q, _ := From(testBook).OrderBy("-author__name")
	got, _ := q.Distinct().SQL()
	if !regexp.MustCompile("^SELECT DISTINCT `book`\\.\\*, `rel_author`\\.`name` AS `_sort0` FROM").MatchString(got) {
		t.Fatalf("sort column not selected: %s", got)
	}
	if !regexp.MustCompile("ORDER BY `_sort0` DESC, `book`\\.`id` ASC$").MatchString(got) {
		t.Fatalf("order not rewritten: %s", got)
	}
}

func TestUnknownPath(t *testing.T) {
	if _, err := From(testBook).In("isbn", []any{1}); err == nil {
		t.Fatal("unknown field accepted")
	}
	if _, err := From(testBook).OrderBy("title__x"); err == nil {
		t.Fatal("hop across non-fk accepted")
	}
}

func TestFilterAndSortIndependent(t *testing.T) {
	status := Values("status")
	published := Date("published")
	o := Opts{Filter: &status, Selected: []any{"new"}, Sort: &published, SortOrder: "asc"}

	a, err := From(testBook).DefaultFilter(o)
	if err != nil {
		t.Fatal(err)
	}
	sorted, err := From(testBook).AjaxSorter(o)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sorted.AjaxFilter(o)
	if err != nil {
		t.Fatal(err)
	}

	fwA, argsA := a.fromWhere()
	fwB, argsB := b.fromWhere()
	if fwA != fwB || !reflect.DeepEqual(argsA, argsB) {
		t.Fatalf("membership differs:\n%s %v\n%s %v", fwA, argsA, fwB, argsB)
	}
	s, _ := a.SQL()
	if !regexp.MustCompile("`book`\\.`status` IN \\(\\?\\)").MatchString(s) {
		t.Errorf("filter missing: %s", s)
	}
	if !regexp.MustCompile("ORDER BY `book`\\.`published` ASC").MatchString(s) {
		t.Errorf("sort missing: %s", s)
	}
}

func TestExcludeFlags(t *testing.T) {
	base, _ := From(testBook).SQL()

	cases := []struct {
		name       string
		field      FilterField
		wantFilter bool
		wantSort   bool
	}{
		{"exclude", Exclude("status"), false, false},
		{"exclude_filter", ExcludeFilter("status"), false, true},
		{"exclude_sort", ExcludeSort("status"), true, false},
		{"values", Values("status"), true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.field
			q, err := From(testBook).DefaultFilter(Opts{
				Filter: &f, Selected: []any{"x"}, Sort: &f, SortOrder: "asc",
			})
			if err != nil {
				t.Fatal(err)
			}
			s, args := q.SQL()
			filtered := len(args) == 1
			sorted := regexp.MustCompile("ORDER BY `book`\\.`status`").MatchString(s)
			if filtered != tc.wantFilter || sorted != tc.wantSort {
				t.Fatalf("filtered=%v sorted=%v, want %v/%v\n%s", filtered, sorted, tc.wantFilter, tc.wantSort, s)
			}
			if !tc.wantFilter && !tc.wantSort && s != base {
				t.Fatalf("excluded field changed query: %s", s)
			}
		})
	}
}

func TestDateFilterBounds(t *testing.T) {
	f := Date("published")
	q, err := From(testBook).AjaxFilter(Opts{
		Filter:   &f,
		Selected: map[string]any{"min_date": "2024-01-05T10:00:00Z", "max_date": ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, args := q.SQL()
	if !regexp.MustCompile("DATE\\(`book`\\.`published`\\) >= \\?").MatchString(s) {
		t.Fatalf("missing lower bound: %s", s)
	}
	if !reflect.DeepEqual(args, []any{"2024-01-05"}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestInvalidKindFails(t *testing.T) {
	var zero FilterField
	_, err := From(testBook).AjaxFilter(Opts{Filter: &zero, Selected: []any{"x"}})
	var le *LookupError
	if !errors.As(err, &le) || le.Msg != MsgInvalidField {
		t.Fatalf("want invalid filter field, got %v", err)
	}
	if _, err := From(testBook).AjaxSorter(Opts{Sort: &zero}); !errors.As(err, &le) {
		t.Fatalf("sorter: want LookupError, got %v", err)
	}
}

func TestParseFilterField(t *testing.T) {
	cases := []struct {
		in      any
		kind    Kind
		wantMsg string
	}{
		{"title", KindValues, ""},
		{[]any{"published", "date"}, KindDate, ""},
		{[]any{"status", "dict", map[string]any{"n": "New"}}, KindChoices, ""},
		{[]any{"status", "set", []any{[]any{"n", "New"}}}, KindChoices, ""},
		{[]any{"cover", "exclude"}, KindExclude, ""},
		{[]any{"cover", "exclude_sort"}, KindExcludeSort, ""},
		{[]any{"status", "weird"}, 0, MsgInvalidSet},
		{[]any{"status", "dict", 5}, 0, MsgInvalidSet},
		{42, 0, MsgInvalidField},
		{[]any{"a"}, 0, MsgInvalidField},
	}
	for _, tc := range cases {
		f, err := ParseFilterField(tc.in)
		if tc.wantMsg != "" {
			var le *LookupError
			if !errors.As(err, &le) || le.Msg != tc.wantMsg {
				t.Errorf("%v: want %q, got %v", tc.in, tc.wantMsg, err)
			}
			continue
		}
		if err != nil || f.Kind != tc.kind {
			t.Errorf("%v: kind=%v err=%v", tc.in, f.Kind, err)
		}
	}
	f, _ := ParseFilterField([]any{"status", "dict", map[string]any{"n": "New"}})
	if f.Label("n") != "New" || f.Label("z") != "z" {
		t.Errorf("labels: %q %q", f.Label("n"), f.Label("z"))
	}
}

func TestValuesAndMinMax(t *testing.T) {
	db, mock := newDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT `book`.`status` FROM `book` WHERE (`book`.`deleted_at` IS NULL) AND (`book`.`status` IS NOT NULL) ORDER BY `book`.`status`")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow([]byte("draft")).AddRow([]byte("new")))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(`book`.`published`), MAX(`book`.`published`) FROM `book`")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).
			AddRow(time.Date(2023, 3, 1, 15, 4, 0, 0, time.UTC), []byte("2024-06-30 23:00:00")))

	ctx := context.Background()
	vals, err := From(testBook).Values(ctx, db, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vals, []any{"draft", "new"}) {
		t.Fatalf("values = %#v", vals)
	}
	lo, hi, err := From(testBook).MinMax(ctx, db, "published")
	if err != nil {
		t.Fatal(err)
	}
	if lo != "2023-03-01" || hi != "2024-06-30" {
		t.Fatalf("minmax = %s..%s", lo, hi)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPaginate(t *testing.T) {
	db, mock := newDB(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))
	mock.ExpectQuery(`LIMIT 2 OFFSET 2$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow([]byte("3"), []byte("C"), []byte("1")).
			AddRow([]byte("4"), []byte("D"), nil))

	p, err := From(testBook).Paginate(ctx, db, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.NumPages != 3 || !p.HasNext() || !p.HasPrevious() || len(p.Rows) != 2 {
		t.Fatalf("page = %+v", p)
	}
	if p.Rows[0]["id"] != int64(3) || p.Rows[0]["author_id"] != int64(1) || p.Rows[0]["title"] != "C" {
		t.Fatalf("row not normalized: %#v", p.Rows[0])
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))
	if _, err := From(testBook).Paginate(ctx, db, 9, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("out of range: want ErrNotFound, got %v", err)
	}
}

func TestWrites(t *testing.T) {
	db, mock := newDB(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `book` (`author_id`, `title`) VALUES (?, ?)")).
		WithArgs(7, "Dune").
		WillReturnResult(sqlmock.NewResult(11, 1))
	id, err := Insert(ctx, db, testBook, map[string]any{"title": "Dune", "author": 7})
	if err != nil || id != 11 {
		t.Fatalf("Insert = %d, %v", id, err)
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `book` SET `title` = ? WHERE `id` = ?")).
		WithArgs("Dune II", 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := Update(ctx, db, testBook, 11, map[string]any{"title": "Dune II"}); err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `book` WHERE `id` = ?")).
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := Delete(ctx, db, testBook, 99); !IsNotFound(err) {
		t.Fatalf("Delete missing: %v", err)
	}

	if _, err := Insert(ctx, db, testBook, map[string]any{"isbn": "x"}); err == nil {
		t.Fatal("unknown field accepted by Insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetNotFound(t *testing.T) {
	db, mock := newDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `book`.* FROM `book` WHERE (`book`.`id` = ?) LIMIT 1 OFFSET 0")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := Get(context.Background(), db, testBook, 5, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
