package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/config"
	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/query"
)

var (
	ptAuthor = &query.Model{Name: "pt_author", Table: "author", Fields: []query.Field{{Name: "name"}}}
	ptBook   = &query.Model{
		Name:  "pt_book",
		Table: "book",
		Fields: []query.Field{
			{Name: "title"},
			{Name: "pages", Type: query.TypeInt},
			{Name: "status"},
			{Name: "published", Type: query.TypeDate},
			{Name: "author", Type: query.TypeFK, Related: "pt_author"},
		},
		URLName: "book_detail",
	}

	bookForm = &form.FormDef{
		ID:    "pt/book",
		Model: "pt_book",
		Meta:  form.Meta{Headline: "Book", SuccessMessage: "Saved {title}."},
		Fields: []form.FieldDef{
			{Name: "title", Type: "text", Required: true, MaxLength: 40},
			{Name: "pages", Type: "number"},
			{Name: "skip_preview", Type: "checkbox", Virtual: true},
		},
	}
	confirmForm = &form.FormDef{
		ID:     "pt/confirm",
		Meta:   form.Meta{Headline: "Book"},
		Fields: []form.FieldDef{{Name: "confirm", Type: "checkbox", Required: true}},
	}
)

func init() {
	query.Register(ptAuthor)
	query.Register(ptBook)
}

/*──────────────────────────────── fakes ─────────────────────────────────────*/

type fakeRenderer struct {
	page string
	data map[string]any
}

func (r *fakeRenderer) Render(w io.Writer, page string, data map[string]any) error {
	r.page, r.data = page, data
	_, err := io.WriteString(w, "<html><body>"+page+"</body></html>")
	return err
}

// fakeURLs maps route names to fmt patterns with one %v for the pk.
type fakeURLs map[string]string

func (u fakeURLs) Reverse(name string, args ...any) (string, error) {
	p, ok := u[name]
	if !ok {
		return "", fmt.Errorf("no route %q", name)
	}
	return fmt.Sprintf(p, args...), nil
}

type fakePerms struct {
	allow    bool
	assigned []any
	removed  []any
}

func (p *fakePerms) HasModelPerm(_ context.Context, _ *auth.User, _, _ string) (bool, error) {
	return p.allow, nil
}

func (p *fakePerms) Assign(_ context.Context, _ *auth.User, _ string, id any) (bool, error) {
	p.assigned = append(p.assigned, id)
	return true, nil
}

func (p *fakePerms) Remove(_ context.Context, _ *auth.User, _ string, id any) (bool, error) {
	p.removed = append(p.removed, id)
	return true, nil
}

func (p *fakePerms) ObjectScope(u *auth.User, _, pkColumn string) (string, []any) {
	return pkColumn + " IN (SELECT object_id FROM acl_object_perm WHERE user_id = ?)", []any{u.ID}
}

type fakeFlash struct{ msgs []string }

func (f *fakeFlash) Success(_ http.ResponseWriter, _ *http.Request, msg string) {
	f.msgs = append(f.msgs, msg)
}

func (f *fakeFlash) Pending(http.ResponseWriter, *http.Request) []string { return nil }

/*──────────────────────────────── harness ───────────────────────────────────*/

type harness struct {
	env   *Env
	mock  sqlmock.Sqlmock
	rend  *fakeRenderer
	perms *fakePerms
	flash *fakeFlash
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
		db.Close()
	})
	h := &harness{
		mock:  mock,
		rend:  &fakeRenderer{},
		perms: &fakePerms{allow: true},
		flash: &fakeFlash{},
	}
	h.env = &Env{
		DB:       sqlx.NewDb(db, "sqlmock"),
		Perms:    h.perms,
		Renderer: h.rend,
		URLs: fakeURLs{
			"book_detail": "/books/%v/",
			"delete_book": "/books/%v/delete/",
		},
		Flash:  h.flash,
		Signer: form.NewSigner("test-signing-key"),
		Views:  config.Defaults(),
	}
	return h
}

func (h *harness) view(t *testing.T, v View) *View {
	t.Helper()
	out, err := NewView(h.env, v)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	return out
}

// serve runs one request through the plugin the way the views handler
// does and returns the recorder, the plugin, and the first error.
func serve(v *View, r *http.Request, params map[string]string) (*httptest.ResponseRecorder, Plugin, error) {
	w := httptest.NewRecorder()
	c := core.New(w, r, v.Name, v.AjaxView)
	for k, val := range params {
		c.Params[k] = val
	}
	p := v.Plugin.Create(v, c, v.Super(v, c))
	if err := p.Dispatch(); err != nil {
		return w, p, err
	}
	var err error
	switch r.Method {
	case http.MethodGet:
		err = p.Get()
	case http.MethodPost:
		err = p.Post()
	default:
		err = ErrMethodNotAllowed
	}
	return w, p, err
}

func get(target string, ajax bool) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if ajax {
		r.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	return r
}

func post(target string, body url.Values, ajax bool) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ajax {
		r.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	return r
}

// bookRows is a one-row result for the book table.
func bookRows(id int64, title string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "pages", "status", "author_id"}).
		AddRow(id, title, int64(100), "draft", int64(7))
}
