package library

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ajaxviews/internal/acl"
	"github.com/yanizio/ajaxviews/internal/component"
	"github.com/yanizio/ajaxviews/internal/config"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/routing"
)

type nopRenderer struct{}

func (nopRenderer) Render(w io.Writer, page string, _ map[string]any) error {
	_, err := io.WriteString(w, page)
	return err
}

type nopFlash struct{}

func (nopFlash) Success(http.ResponseWriter, *http.Request, string)  {}
func (nopFlash) Pending(http.ResponseWriter, *http.Request) []string { return nil }

func mounted(t *testing.T) (chi.Router, *routing.Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	dbx := sqlx.NewDb(db, "sqlmock")

	names := routing.NewRegistry()
	env := &plugin.Env{
		DB:       dbx,
		Perms:    acl.NewStore(dbx),
		Renderer: nopRenderer{},
		URLs:     names,
		Flash:    nopFlash{},
		Signer:   form.NewSigner("test"),
		Views:    config.Defaults(),
	}
	d := component.Deps{Env: env, Names: names, Root: "../.."}

	c := &Component{}
	if err := c.Init(d); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r := chi.NewRouter()
	if err := c.Mount(r, d); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return r, names, mock
}

func TestMountRegistersNames(t *testing.T) {
	_, names, _ := mounted(t)
	cases := []struct {
		name string
		args []any
		want string
	}{
		{"book_list", nil, "/library/books/"},
		{"book_detail", []any{7}, "/library/books/7/"},
		{"delete_book", []any{7}, "/library/books/7/delete/"},
		{"edit_authors", nil, "/library/authors/edit/"},
		{"add_author_book", []any{3}, "/library/authors/3/books/add/"},
	}
	for _, tc := range cases {
		got, err := names.Reverse(tc.name, tc.args...)
		if err != nil || got != tc.want {
			t.Errorf("%s = %q, %v; want %q", tc.name, got, err, tc.want)
		}
	}
}

func TestChangingViewsRequireLogin(t *testing.T) {
	r, _, mock := mounted(t)
	for _, target := range []string{
		"/library/books/add/",
		"/library/books/7/edit/",
		"/library/books/7/delete/",
		"/library/authors/edit/",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: code = %d, want 401", target, rec.Code)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestRoutesDeclareEveryView(t *testing.T) {
	_, _, _ = mounted(t)
	routes, err := Routes(&plugin.Env{Views: config.Defaults()})
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes) != 9 {
		t.Fatalf("%d routes, want 9", len(routes))
	}
	for _, rt := range routes {
		if rt.View.Env == nil {
			t.Errorf("%s: env not bound", rt.View.Name)
		}
	}
}
