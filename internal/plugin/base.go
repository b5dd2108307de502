// internal/plugin/base.go
//
// Plugin contract, the base feature, and the modal layer.
//
// Context
// -------
// A hosting view never implements get, post, get_queryset, and friends
// itself; it hands the request to its plugin.  Features are layered by
// embedding (Base → ModalPlugin → DetailPlugin / FormPlugin → …).  Go
// embedding has no virtual dispatch, so every plugin keeps a `self`
// reference to the outermost value and calls overridable steps through it.
//
// Dispatch
// --------
// Base.Dispatch seeds json_cfg from the route params, then merges the
// `json_cfg` query parameter under the keep rule (truthy, false, or 0),
// then records `ajax_load`, `ajax_view`, and `view_name`.
//
// Notes
// -----
// • One plugin serves exactly one request; nothing here locks.
// • Oxford commas, two spaces after periods.

package plugin

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/logger"
	"github.com/yanizio/ajaxviews/internal/metrics"
	"github.com/yanizio/ajaxviews/internal/query"
)

// Data is the template context of one response.
type Data map[string]any

// Plugin is the per-request delegate of a View.
type Plugin interface {
	Dispatch() error
	Get() error
	Post() error
	GetContextData(d Data) (Data, error)
	GetQueryset() (*query.Query, error)
	GetSuccessURL() (string, error)

	Object() query.Row
	SetObject(obj query.Row)
	Context() *core.Context
	View() *View
	ModalID() string
	Extra() *Adapter

	setup(self Plugin, extra *Adapter)
}

// Base implements the base feature and the shared plumbing.
type Base struct {
	view   *View
	ctx    *core.Context
	super  Super
	extra  *Adapter
	self   Plugin
	object query.Row
}

func (b *Base) setup(self Plugin, extra *Adapter) {
	b.self = self
	b.extra = extra
}

func (b *Base) Object() query.Row       { return b.object }
func (b *Base) SetObject(obj query.Row) { b.object = obj }
func (b *Base) Context() *core.Context  { return b.ctx }
func (b *Base) View() *View             { return b.view }
func (b *Base) Extra() *Adapter         { return b.extra }
func (b *Base) ModalID() string         { return b.ctx.ModalID }
func (b *Base) env() *Env               { return b.view.Env }
func (b *Base) reqCtx() context.Context { return b.ctx.Request.Context() }
func (b *Base) log() *zap.SugaredLogger { return logger.FromContext(b.reqCtx()) }

// Dispatch fills json_cfg for the request.
func (b *Base) Dispatch() error {
	cfg := b.ctx.JSONCfg
	for k, v := range b.ctx.Params {
		cfg[k] = form.NormalizeID(v)
	}
	if err := cfg.MergeJSON(b.ctx.Query("json_cfg")); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if b.ctx.IsAjax() {
		cfg["ajax_load"] = true
	}
	if b.ctx.AjaxView {
		cfg["ajax_view"] = true
	}
	cfg["view_name"] = b.ctx.ViewName
	return nil
}

// Get renders the view template.
func (b *Base) Get() error {
	d, err := b.self.GetContextData(Data{})
	if err != nil {
		return err
	}
	return b.super.RenderToResponse(b.view.Template, d)
}

// Post is not served by the base feature.
func (b *Base) Post() error { return ErrMethodNotAllowed }

// GetContextData adds view_name, page_size, and the serialized json_cfg.
// The serialized form is also published for the AJAX middleware.
func (b *Base) GetContextData(d Data) (Data, error) {
	raw, err := b.ctx.JSONCfg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode json_cfg: %w", err)
	}
	core.PublishJSONCfg(b.reqCtx(), raw)

	d["view_name"] = b.ctx.JSONCfg["view_name"]
	d["page_size"] = b.view.PageSize
	d["json_cfg"] = template.JS(raw)
	d["user"] = b.ctx.User
	d["request"] = b.ctx.Info
	if b.env().Flash != nil && !b.ctx.IsAjax() {
		d["messages"] = b.env().Flash.Pending(b.ctx.Writer, b.ctx.Request)
	}
	return d, nil
}

// GetQueryset defers to super.
func (b *Base) GetQueryset() (*query.Query, error) { return b.super.GetQueryset() }

// GetSuccessURL defers to super.
func (b *Base) GetSuccessURL() (string, error) { return b.super.GetSuccessURL(b.object) }

// flash records a success message when msg is not blank.
func (b *Base) flash(msg string) {
	if msg == "" || b.env().Flash == nil {
		return
	}
	b.env().Flash.Success(b.ctx.Writer, b.ctx.Request, msg)
}

// ajaxWithoutModalParam is the "AJAX, not opened through ?modal_id" test
// several features use to pick the bare AJAX layout.
func (b *Base) ajaxWithoutModalParam() bool {
	return b.ctx.IsAjax() && b.ctx.Query("modal_id") == ""
}

// saveForm saves f once and counts the save.
func saveForm(ctx context.Context, v *View, f *form.Form) (query.Row, error) {
	if f.Object != nil {
		return f.Object, nil
	}
	obj, err := f.Save(ctx, v.Env.DB)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", f.Def.ID, err)
	}
	metrics.ObjectSavesTotal.WithLabelValues(v.Model.Name).Inc()
	return obj, nil
}

/*──────────────────────────────── modal ─────────────────────────────────────*/

// ModalPlugin resolves modal_id and swaps in the modal layout.
type ModalPlugin struct {
	Base
}

// Dispatch resolves modal_id once: the query parameter first, then a
// carried-over json_cfg value.  A leading "#" is stripped.
func (p *ModalPlugin) Dispatch() error {
	if err := p.Base.Dispatch(); err != nil {
		return err
	}
	id := strings.ReplaceAll(p.ctx.Query("modal_id"), "#", "")
	if id == "" {
		id = strings.ReplaceAll(p.ctx.JSONCfg.String("modal_id"), "#", "")
	}
	p.ctx.ModalID = id
	return nil
}

// GetContextData adds modal_id and the modal layout.
func (p *ModalPlugin) GetContextData(d Data) (Data, error) {
	d, err := p.Base.GetContextData(d)
	if err != nil {
		return nil, err
	}
	if id := p.ModalID(); id != "" {
		d["modal_id"] = id
		d["generic_template"] = p.view.ModalBaseTemplate
	}
	return d, nil
}
