// internal/plugin/super.go
//
// The fallback call chain.
//
// Context
// -------
// Super is what a view would do with no plugin in place: fetch the model
// queryset, look an object up by its `pk` route param, save a valid form
// and redirect, render a template, and so on.  Plugins customise a step and
// then fall back to super for the rest.  Generic is the stock
// implementation; a View may supply its own through View.Super.
//
// Generic calls back into the plugin for GetSuccessURL after a save, the
// way a class-based view's form_valid calls self.get_success_url.  The
// registry binds it to the plugin right after construction.

package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/query"
)

// Super is the behavior a plugin falls back to.
type Super interface {
	GetQueryset() (*query.Query, error)
	GetObject(q *query.Query) (query.Row, error)
	GetSuccessURL(obj query.Row) (string, error)
	FormValid(f *form.Form) error
	RenderToResponse(template string, d Data) error
	Redirect(url string) error
	JSON(v any) error
}

// Generic is the stock Super.
type Generic struct {
	view *View
	ctx  *core.Context
	host Plugin
}

// NewGeneric returns the stock fallback for one request.
func NewGeneric(v *View, c *core.Context) *Generic {
	return &Generic{view: v, ctx: c}
}

// Bind sets the plugin that receives call-backs.
func (g *Generic) Bind(p Plugin) { g.host = p }

// GetQueryset returns every live row of the view's model.
func (g *Generic) GetQueryset() (*query.Query, error) {
	if g.view.Model == nil {
		return nil, &ConfigError{View: g.view.Name, Msg: "missing model"}
	}
	return query.From(g.view.Model), nil
}

// GetObject finds the row whose primary key is the `pk` route param.
func (g *Generic) GetObject(q *query.Query) (query.Row, error) {
	pk, ok := g.ctx.Params["pk"]
	if !ok || pk == "" {
		return nil, &ConfigError{View: g.view.Name, Msg: "object lookup needs a pk route param"}
	}
	m := q.Model()
	q, err := q.Eq(m.PK, form.NormalizeID(pk))
	if err != nil {
		return nil, err
	}
	return q.First(g.ctx.Request.Context(), g.view.Env.DB)
}

// GetSuccessURL returns the object's canonical URL.
func (g *Generic) GetSuccessURL(obj query.Row) (string, error) {
	m := g.view.Model
	if obj == nil || m == nil || m.URLName == "" || g.view.Env.URLs == nil {
		return "", &ConfigError{View: g.view.Name, Msg: "no URL to redirect to; set a success URL or the model URL name"}
	}
	return g.view.Env.URLs.Reverse(m.URLName, obj[m.PK])
}

// FormValid saves the form and redirects to the plugin's success URL.
func (g *Generic) FormValid(f *form.Form) error {
	obj, err := saveForm(g.ctx.Request.Context(), g.view, f)
	if err != nil {
		return err
	}
	var url string
	if g.host != nil {
		g.host.SetObject(obj)
		url, err = g.host.GetSuccessURL()
	} else {
		url, err = g.GetSuccessURL(obj)
	}
	if err != nil {
		return err
	}
	return g.Redirect(url)
}

// RenderToResponse executes template with d.  Output is buffered so a
// template error still yields a clean error response.
func (g *Generic) RenderToResponse(template string, d Data) error {
	var buf bytes.Buffer
	if err := g.view.Env.Renderer.Render(&buf, template, d); err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	w := g.ctx.Writer
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

// Redirect sends a 302 to url.
func (g *Generic) Redirect(url string) error {
	http.Redirect(g.ctx.Writer, g.ctx.Request, url, http.StatusFound)
	return nil
}

// JSON writes v as a JSON response.
func (g *Generic) JSON(v any) error {
	w := g.ctx.Writer
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
