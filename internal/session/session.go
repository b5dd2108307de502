// internal/session/session.go
//
// Cookie sessions.
//
// Context
//   The view layer needs one thing from a session: who the user is, so
//   permission checks and object-permission grants have a subject.  The
//   session is a signed cookie named “ajaxviews_session” carrying the
//   user id, username, and expiry:
//
//      value = Signer.Sign( JSON {id, name, exp} )
//
//   Middleware verifies the cookie on every request and attaches the user
//   with auth.WithUser.  A missing, forged, or expired cookie leaves the
//   request anonymous.  Nothing is stored server-side, so logout only
//   clears the cookie; a copied cookie stays valid until it expires.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/form"
)

const (
	cookieName = "ajaxviews_session"
	lifetime   = 14 * 24 * time.Hour
)

type payload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Exp  int64  `json:"exp"`
}

// Manager issues and verifies session cookies.
type Manager struct {
	signer *form.Signer
	now    func() time.Time
}

// NewManager returns a Manager signing with s.
func NewManager(s *form.Signer) *Manager { return &Manager{signer: s, now: time.Now} }

// Login sets the session cookie for u.
//
// Callers invoke this after credential verification succeeds.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u *auth.User) error {
	exp := m.now().Add(lifetime)
	raw, err := json.Marshal(payload{ID: u.ID, Name: u.Username, Exp: exp.Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    m.signer.Sign(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // only send over HTTPS
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// User returns the user named by the session cookie.
//
// ok == false when the cookie is missing, forged, or expired.
func (m *Manager) User(r *http.Request) (u *auth.User, ok bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	raw, err := m.signer.Unsign(c.Value)
	if err != nil {
		return nil, false
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID <= 0 {
		return nil, false
	}
	if m.now().Unix() > p.Exp {
		return nil, false
	}
	return &auth.User{ID: p.ID, Username: p.Name}, true
}

// Middleware attaches the session user to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := m.User(r); ok {
			r = r.WithContext(auth.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}
