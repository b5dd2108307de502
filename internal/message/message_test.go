package message

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/yanizio/ajaxviews/internal/form"
)

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no flash cookie set")
	return nil
}

func TestSuccessThenPending(t *testing.T) {
	s := NewStore(form.NewSigner("k"))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/books/add/", nil)
	s.Success(rec, r, "Saved Dune.")
	s.Success(rec, r, "Saved Emma.")
	if n := len(rec.Header().Values("Set-Cookie")); n != 1 {
		t.Fatalf("%d Set-Cookie lines, want 1", n)
	}

	next := httptest.NewRequest(http.MethodGet, "/books/", nil)
	next.AddCookie(cookieFrom(t, rec))
	rec = httptest.NewRecorder()
	got := s.Pending(rec, next)
	if want := []string{"Saved Dune.", "Saved Emma."}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending = %v, want %v", got, want)
	}
	if c := cookieFrom(t, rec); c.MaxAge >= 0 {
		t.Fatalf("cookie not expired: %+v", c)
	}
}

func TestSuccessKeepsCarriedMessages(t *testing.T) {
	s := NewStore(form.NewSigner("k"))
	rec := httptest.NewRecorder()
	s.Success(rec, httptest.NewRequest(http.MethodPost, "/", nil), "first")

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(cookieFrom(t, rec))
	rec = httptest.NewRecorder()
	s.Success(rec, r, "second")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookieFrom(t, rec))
	if got := s.Pending(httptest.NewRecorder(), r); len(got) != 2 {
		t.Fatalf("Pending = %v", got)
	}
}

func TestPendingIgnoresForgedCookie(t *testing.T) {
	s := NewStore(form.NewSigner("k"))
	other := NewStore(form.NewSigner("other"))

	rec := httptest.NewRecorder()
	other.Success(rec, httptest.NewRequest(http.MethodPost, "/", nil), "hi")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookieFrom(t, rec))
	if got := s.Pending(httptest.NewRecorder(), r); got != nil {
		t.Fatalf("forged messages accepted: %v", got)
	}
}
