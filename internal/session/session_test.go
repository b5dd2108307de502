package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/form"
)

func login(t *testing.T, m *Manager, u *auth.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), u); err != nil {
		t.Fatalf("Login: %v", err)
	}
	cs := rec.Result().Cookies()
	if len(cs) != 1 {
		t.Fatalf("%d cookies set", len(cs))
	}
	return cs[0]
}

func TestMiddlewareAttachesUser(t *testing.T) {
	m := NewManager(form.NewSigner("k"))
	c := login(t, m, &auth.User{ID: 7, Username: "ann"})

	var got *auth.User
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got.ID != 7 || got.Username != "ann" {
		t.Fatalf("user = %+v", got)
	}
}

func TestUserRejects(t *testing.T) {
	m := NewManager(form.NewSigner("k"))
	valid := login(t, m, &auth.User{ID: 7, Username: "ann"})

	forged := *valid
	forged.Value = NewManager(form.NewSigner("other")).signer.Sign([]byte(`{"id":1,"exp":9999999999}`))

	expired := NewManager(form.NewSigner("k"))
	expired.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	old := login(t, expired, &auth.User{ID: 7})

	cases := map[string]*http.Cookie{
		"missing": nil,
		"forged":  &forged,
		"expired": old,
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if c != nil {
				r.AddCookie(c)
			}
			if u, ok := m.User(r); ok {
				t.Fatalf("accepted %+v", u)
			}
		})
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	NewManager(form.NewSigner("k")).Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 || c.Name != cookieName {
		t.Fatalf("cookie = %+v", c)
	}
}
