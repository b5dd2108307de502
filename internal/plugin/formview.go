// internal/plugin/formview.go
//
// Form feature: create and update views over one model form.
//
// Context
// -------
// GetFormKwargs assembles the construction arguments: user, instance,
// fk choices, bound data, success URL, related-object ids from the route,
// and the modal form action.  Extensions refine them through the
// FormKwargsHook chain.
//
// Success-URL precedence
// ----------------------
// First present wins:
//
//  1. `success_url` in the POST body
//  2. `success_url` in the posted form_cfg
//  3. the form meta success URL, create views only (MetaSuccessURLer)
//  4. View.SuccessURL
//  5. super: the saved object's canonical URL
//
// A `hashtag` query parameter is appended as "#<hashtag>".
//
// Valid submissions
// -----------------
// The success message is formatted from the cleaned data and flashed,
// FormValidHook extensions run in order, then:
//
//   - modal forms save and answer {"success": true[, "json_cache": …]},
//     or redirect to "<success_url>?modal_id=<id>" when `modal_reload`
//     was posted;
//   - other forms fall back to super, which saves and redirects.

package plugin

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/query"
)

// FormPlugin serves model form views.
type FormPlugin struct {
	ModalPlugin
	def  *form.FormDef
	form *form.Form
}

func newFormPlugin(b Base) *FormPlugin {
	return &FormPlugin{ModalPlugin: ModalPlugin{Base: b}, def: b.view.Form}
}

// Form returns the form of the current response, or nil.
func (p *FormPlugin) Form() *form.Form { return p.form }

// Dispatch marks the view type and lets extensions load their object.
func (p *FormPlugin) Dispatch() error {
	if err := p.ModalPlugin.Dispatch(); err != nil {
		return err
	}
	p.ctx.JSONCfg["init_view_type"] = "formView"
	return Each(p.extra, func(h ObjectLoader) error { return h.LoadObject() })
}

// Get renders the unbound form.  An AJAX GET carrying `form_data` binds
// the query string to prefill the form; its errors are not shown.
func (p *FormPlugin) Get() error {
	kw, err := p.GetFormKwargs()
	if err != nil {
		return err
	}
	f := form.New(p.def, kw)
	if f.IsBound() {
		f.IsValid()
		f.ClearErrors()
	}
	return p.renderForm(f, p.view.Template)
}

// Post validates the submission.
func (p *FormPlugin) Post() error {
	if err := p.checkCSRF(); err != nil {
		return err
	}
	kw, err := p.GetFormKwargs()
	if err != nil {
		return err
	}
	f := form.New(p.def, kw)
	if !f.IsValid() {
		return p.FormInvalid(f)
	}
	return p.FormValid(f)
}

// GetFormKwargs assembles the form construction arguments.
func (p *FormPlugin) GetFormKwargs() (form.Kwargs, error) {
	c := p.ctx
	kw := form.Kwargs{
		User:     c.User,
		Instance: p.object,
		Initial:  map[string]any{},
	}
	choices, err := p.choices(p.def)
	if err != nil {
		return kw, err
	}
	kw.Choices = choices

	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			return kw, err
		}
		kw.Data = c.Request.PostForm
	}
	if p.view.CSRF {
		if kw.CSRFToken, err = p.env().Signer.Token(); err != nil {
			return kw, err
		}
	}
	if u, err := p.self.GetSuccessURL(); err == nil {
		kw.Helper.SuccessURL = u
	}
	if p.env().Views.FormRelatedObjectIDs {
		if ids := relatedObjIDs(c.Params); len(ids) > 0 {
			kw.RelatedObjIDs = ids
		}
	}
	if id := p.ModalID(); id != "" {
		kw.Helper.FormAction = c.Request.URL.Path + "?modal_id=" + url.QueryEscape(id)
		kw.Helper.ModalForm = true
	}
	if c.IsAjax() && c.Request.URL.Query().Has("form_data") {
		kw.Data = c.Request.URL.Query()
	}
	return Transform(p.extra, kw, func(h FormKwargsHook, kw form.Kwargs) (form.Kwargs, error) {
		return h.GetFormKwargs(kw)
	})
}

// FormValid flashes the success message, runs the extensions, and answers.
func (p *FormPlugin) FormValid(f *form.Form) error {
	p.form = f
	p.flash(form.FormatMessage(p.view.SuccessMessage, f.Cleaned))
	if err := Each(p.extra, func(h FormValidHook) error { return h.FormValid(f) }); err != nil {
		return err
	}
	return p.finish(f)
}

// FormInvalid re-renders the form with its errors.
func (p *FormPlugin) FormInvalid(f *form.Form) error {
	return p.renderForm(f, p.view.Template)
}

// finish sends the response for a valid, already-hooked form.
func (p *FormPlugin) finish(f *form.Form) error {
	id := p.ModalID()
	if id == "" {
		return p.super.FormValid(f)
	}
	obj, err := saveForm(p.reqCtx(), p.view, f)
	if err != nil {
		return err
	}
	p.SetObject(obj)
	if p.ctx.Request.PostForm.Get("modal_reload") != "" {
		u, err := p.self.GetSuccessURL()
		if err != nil {
			return err
		}
		return p.super.Redirect(u + "?modal_id=" + url.QueryEscape(id))
	}
	resp := map[string]any{"success": true}
	if f.JSONCache != nil {
		resp["json_cache"] = f.JSONCache
	}
	return p.super.JSON(resp)
}

// GetSuccessURL applies the precedence in the file comment.
func (p *FormPlugin) GetSuccessURL() (string, error) {
	u, err := p.successURL()
	if err != nil {
		return "", err
	}
	if h := p.ctx.Query("hashtag"); h != "" {
		u += "#" + h
	}
	return u, nil
}

func (p *FormPlugin) successURL() (string, error) {
	r := p.ctx.Request
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		if u := r.PostForm.Get("success_url"); u != "" {
			return u, nil
		}
		if cfg, err := form.ParseCfg(r.PostForm.Get("form_cfg")); err == nil && cfg.SuccessURL() != "" {
			return cfg.SuccessURL(), nil
		}
	}
	if u, ok := Property(p.extra, func(h MetaSuccessURLer) string { return h.MetaSuccessURL() }); ok && u != "" {
		return u, nil
	}
	if p.view.SuccessURL != "" {
		return p.view.SuccessURL, nil
	}
	return p.super.GetSuccessURL(p.object)
}

// GetContextData adds page_size, the headline, and extension context.
func (p *FormPlugin) GetContextData(d Data) (Data, error) {
	d, err := p.ModalPlugin.GetContextData(d)
	if err != nil {
		return nil, err
	}
	d["page_size"] = lo.Ternary(p.def.Meta.FormSize != "", p.def.Meta.FormSize, "sm")
	if p.env().Views.FormGenericHeadline {
		d["headline"] = p.headline(p.def)
	}
	if tpl := p.env().Views.GenericFormBaseTemplate; tpl != "" && d["generic_template"] == nil {
		d["generic_template"] = tpl
	}
	return Transform(p.extra, d, func(h ContextHook, d Data) (Data, error) {
		return h.GetContextData(d)
	})
}

// headline prefixes a meta headline with the extension's prefix; a full
// headline is used as written.
func (p *FormPlugin) headline(def *form.FormDef) string {
	if def.Meta.Headline == "" {
		return def.Meta.HeadlineFull
	}
	prefix, _ := Property(p.extra, func(h HeadlinePrefixer) string { return h.HeadlinePrefix() })
	return strings.TrimSpace(prefix + " " + def.Meta.Headline)
}

func (p *FormPlugin) renderForm(f *form.Form, template string) error {
	p.form = f
	d, err := p.self.GetContextData(Data{"form": f, "form_html": form.Render(f)})
	if err != nil {
		return err
	}
	return p.super.RenderToResponse(template, d)
}

func (p *FormPlugin) checkCSRF() error {
	if !p.view.CSRF {
		return nil
	}
	if !p.env().Signer.VerifyToken(p.ctx.Request.PostFormValue("csrf_token")) {
		return ErrForbidden
	}
	return nil
}

// choices loads the options of every fk field.
func (p *FormPlugin) choices(def *form.FormDef) (map[string][]form.Choice, error) {
	out := map[string][]form.Choice{}
	for _, fd := range def.Fields {
		if fd.Type != "fk" {
			continue
		}
		rel := query.Lookup(fd.Related)
		if rel == nil {
			return nil, &ConfigError{View: p.view.Name, Msg: "fk field " + fd.Name + " names unknown model " + fd.Related}
		}
		rows, err := query.From(rel).All(p.reqCtx(), p.env().DB)
		if err != nil {
			return nil, err
		}
		label := fd.RelatedLabel
		if label == "" && len(rel.Fields) > 0 {
			label = rel.Fields[0].Column
		}
		out[fd.Name] = lo.Map(rows, func(r query.Row, _ int) form.Choice {
			return form.Choice{Value: r.String(rel.PK), Label: r.String(label)}
		})
	}
	return out, nil
}

// relatedObjIDs collects route params named "<field>_id".
func relatedObjIDs(params map[string]string) map[string]any {
	out := map[string]any{}
	for k, v := range params {
		if strings.HasSuffix(k, "_id") {
			out[k] = form.NormalizeID(v)
		}
	}
	return out
}
