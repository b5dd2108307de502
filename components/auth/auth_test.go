package auth

import (
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanizio/ajaxviews/internal/component"
	"github.com/yanizio/ajaxviews/internal/config"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/routing"
	"github.com/yanizio/ajaxviews/internal/session"
)

const userQuery = `SELECT id, username, password_hash FROM app_user WHERE username = ?`

type pageRenderer struct{ data map[string]any }

func (p *pageRenderer) Render(w io.Writer, page string, data map[string]any) error {
	p.data = data
	_, err := io.WriteString(w, page)
	return err
}

type harness struct {
	router chi.Router
	mock   sqlmock.Sqlmock
	rend   *pageRenderer
	signer *form.Signer
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
	h := &harness{mock: mock, rend: &pageRenderer{}, signer: form.NewSigner("test")}
	d := component.Deps{
		Env: &plugin.Env{
			DB:       sqlx.NewDb(db, "sqlmock"),
			Renderer: h.rend,
			Signer:   h.signer,
			Views:    config.Defaults(),
		},
		Names:    routing.NewRegistry(),
		Sessions: session.NewManager(h.signer),
		Root:     "../..",
	}
	c := &Component{}
	if err := c.Init(d); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.router = chi.NewRouter()
	if err := c.Mount(h.router, d); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return h
}

func (h *harness) post(t *testing.T, vals url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if vals.Get("csrf_token") == "" {
		tok, err := h.signer.Token()
		if err != nil {
			t.Fatal(err)
		}
		vals.Set("csrf_token", tok)
	}
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(vals.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, r)
	return rec
}

func (h *harness) expectUser(t *testing.T, name, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h.mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(4, name, string(hash)))
}

func TestLoginGET(t *testing.T) {
	h := newHarness(t)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=/library/authors/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "auth/login.html" {
		t.Fatalf("code = %d, body = %q", rec.Code, rec.Body.String())
	}
	html, _ := h.rend.data["form_html"].(template.HTML)
	if !strings.Contains(string(html), `value="/library/authors/"`) {
		t.Fatalf("next not carried: %s", html)
	}
}

func TestLoginSuccess(t *testing.T) {
	h := newHarness(t)
	h.expectUser(t, "ann", "s3cret")

	rec := h.post(t, url.Values{"username": {"ann"}, "password": {"s3cret"}, "next": {"/library/authors/"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("code = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/library/authors/" {
		t.Fatalf("Location = %q", loc)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatal("no session cookie")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.expectUser(t, "ann", "s3cret")

	rec := h.post(t, url.Values{"username": {"ann"}, "password": {"nope"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if errs, _ := h.rend.data["errors"].([]string); len(errs) != 1 {
		t.Fatalf("errors = %v", h.rend.data["errors"])
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("session cookie set on failure")
	}
}

func TestLoginBadToken(t *testing.T) {
	h := newHarness(t)
	rec := h.post(t, url.Values{"username": {"ann"}, "password": {"x"}, "csrf_token": {"forged"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                   defaultNext,
		"/library/authors/":  "/library/authors/",
		"//evil.example/":    defaultNext,
		"https://evil.test/": defaultNext,
		`/\evil.example`:     defaultNext,
	}
	for in, want := range cases {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
