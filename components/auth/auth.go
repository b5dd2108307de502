// components/auth/auth.go
//
// Authentication component – login and logout.
//
// Context
// -------
// Users live in the `app_user` table with a bcrypt password hash.  A good
// login sets the session cookie through session.Manager and redirects to
// the posted `next` path, or "/library/books/".  The component also owns
// the permission schema the acl.Store reads.
//
//------------------------------------------------------------------------------

package auth

import (
	"bytes"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanizio/ajaxviews/internal/acl"
	iauth "github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/component"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/logger"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/session"
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

const defaultNext = "/library/books/"

// Component encapsulates login functionality.
type Component struct {
	env      *plugin.Env
	sessions *session.Manager
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Migrations returns the user table and the permission schema.
func (c *Component) Migrations() []string {
	return append([]string{
		`CREATE TABLE IF NOT EXISTS app_user (
			id            BIGINT AUTO_INCREMENT PRIMARY KEY,
			username      VARCHAR(150) NOT NULL UNIQUE,
			password_hash VARCHAR(100) NOT NULL
		)`,
	}, acl.Schema...)
}

// Init loads the login form definition.
func (c *Component) Init(d component.Deps) error {
	return form.RegisterForms([]string{d.Root})
}

// Mount routes /login and /logout at the root.
func (c *Component) Mount(r chi.Router, d component.Deps) error {
	if d.Sessions == nil {
		return errors.New("auth: no session manager")
	}
	c.env, c.sessions = d.Env, d.Sessions
	if err := d.Names.Add("login", "/login"); err != nil {
		return err
	}
	if err := d.Names.Add("logout", "/logout"); err != nil {
		return err
	}
	r.Get("/login", c.handleLoginGET)
	r.Post("/login", c.handleLoginPOST)
	r.Post("/logout", c.handleLogout)
	return nil
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleLoginGET(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, nil, nil)
}

func (c *Component) handleLoginPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !c.env.Signer.VerifyToken(r.PostForm.Get("csrf_token")) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	def, ok := form.GetFormDef("auth/login")
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	f := form.New(def, form.Kwargs{Data: r.PostForm})
	if !f.IsValid() {
		c.render(w, r, r.PostForm, nil)
		return
	}

	u, err := c.checkCredentials(r, f.Cleaned["username"].(string), f.Cleaned["password"].(string))
	if err != nil {
		logger.FromContext(r.Context()).Errorw("login lookup", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if u == nil {
		c.render(w, r, r.PostForm, []string{"Incorrect username or password."})
		return
	}

	if err := c.sessions.Login(w, r, u); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Infow("login", "user_id", u.ID)
	next, _ := f.Cleaned["next"].(string)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

func (c *Component) handleLogout(w http.ResponseWriter, r *http.Request) {
	c.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

/*──────────────────────── helpers ─────────────────────────────────────────*/

// checkCredentials returns the user, or nil for an unknown name or a
// wrong password.
func (c *Component) checkCredentials(r *http.Request, username, password string) (*iauth.User, error) {
	var row struct {
		ID   int64  `db:"id"`
		Name string `db:"username"`
		Hash string `db:"password_hash"`
	}
	err := c.env.DB.GetContext(r.Context(), &row,
		`SELECT id, username, password_hash FROM app_user WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.Hash), []byte(password)) != nil {
		return nil, nil
	}
	return &iauth.User{ID: row.ID, Username: row.Name}, nil
}

func (c *Component) render(w http.ResponseWriter, r *http.Request, data map[string][]string, errs []string) {
	def, ok := form.GetFormDef("auth/login")
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	tok, err := c.env.Signer.Token()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kw := form.Kwargs{
		CSRFToken: tok,
		Initial:   map[string]any{"next": r.URL.Query().Get("next")},
		Helper:    form.Helper{SaveButtonName: "Sign in", FormAction: "/login"},
	}
	if data != nil {
		kw.Data = data
	}
	f := form.New(def, kw)
	if f.IsBound() {
		f.IsValid()
	}

	var buf bytes.Buffer
	err = c.env.Renderer.Render(&buf, "auth/login.html", map[string]any{
		"headline":  def.Headline(),
		"form_html": form.Render(f),
		"errors":    errs,
		"page_size": def.Meta.FormSize,
		"user":      iauth.FromContext(r.Context()),
	})
	if err != nil {
		logger.FromContext(r.Context()).Errorw("render login", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return defaultNext
	}
	return next
}
