// internal/core/context.go
//
// Central per-request view context.
//
// Context
// -------
// Every view handler builds a *core.Context at dispatch and passes it to
// the plugin and its extensions.  It bundles:
//
//   - Request  — the original *http.Request (read-only).
//   - Writer   — convenience http.ResponseWriter.
//   - Params   — route params such as “pk” or “author_id”.
//   - Info     — parsed UA, AJAX flag, URL, and timestamp.
//   - User     — the authenticated user, or auth.Anonymous.
//   - JSONCfg  — the request-scoped config mapping sent back to the client.
//   - AjaxView — fixed per view type at declaration time.
//   - ModalID  — resolved once during dispatch; never reassigned after.
//   - ViewName — the route name the view is mounted under.
//
// Notes
// -----
// • A Context is owned by exactly one request.  No locking.
// • Oxford commas, two spaces after periods.
package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/requestinfo"
)

// Context is passed to plugins, extensions, and templates.
type Context struct {
	Request  *http.Request
	Writer   http.ResponseWriter
	Params   map[string]string
	Info     *requestinfo.RequestInfo
	User     *auth.User
	JSONCfg  JSONCfg
	AjaxView bool
	ModalID  string
	ViewName string
}

// New assembles a Context for one request.  Route params are copied out of
// chi's route context so later middleware cannot change them underneath.
func New(w http.ResponseWriter, r *http.Request, viewName string, ajaxView bool) *Context {
	params := map[string]string{}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		for i, k := range rc.URLParams.Keys {
			if k == "*" {
				continue
			}
			params[k] = rc.URLParams.Values[i]
		}
	}
	return &Context{
		Request:  r,
		Writer:   w,
		Params:   params,
		Info:     requestinfo.FromContext(r.Context()),
		User:     auth.FromContext(r.Context()),
		JSONCfg:  JSONCfg{},
		AjaxView: ajaxView,
		ViewName: viewName,
	}
}

// IsAjax reports whether the request came from the client-side loader.
func (c *Context) IsAjax() bool {
	if c.Info != nil {
		return c.Info.Ajax
	}
	return requestinfo.IsAjax(c.Request)
}

// Query returns the first value of a query-string parameter.
func (c *Context) Query(key string) string { return c.Request.URL.Query().Get(key) }

// Param returns a POST form value when present, else the query value.
// ParseForm errors are ignored here; body parsing is re-done by forms.
func (c *Context) Param(key string) string {
	if c.Request.Method == http.MethodPost {
		_ = c.Request.ParseForm()
		if v := c.Request.PostForm.Get(key); v != "" {
			return v
		}
	}
	return c.Query(key)
}
