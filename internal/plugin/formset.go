// internal/plugin/formset.go
//
// Formset feature.
//
// Context
// -------
// Edits several rows of one model on one page.  Forms are prefixed
// `form-N-<field>` and counted by `form-TOTAL_FORMS`.  The save is all or
// nothing: every form validates and every row is written in one
// transaction, or the formset re-renders with its errors.

package plugin

import (
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/metrics"
	"github.com/yanizio/ajaxviews/internal/query"
)

// FormsetPlugin serves views that edit several rows of one model at once.
// With the update extension the formset is filled from GetQueryset; with
// create it starts with View.FormsetExtra blank forms.
type FormsetPlugin struct {
	FormPlugin
	formset *form.Formset
}

// Formset returns the formset of the current response, or nil.
func (p *FormsetPlugin) Formset() *form.Formset { return p.formset }

// Get renders the unbound formset.
func (p *FormsetPlugin) Get() error {
	fs, err := p.buildFormset()
	if err != nil {
		return err
	}
	return p.renderFormset(fs)
}

// Post validates every form and saves them in one transaction.
func (p *FormsetPlugin) Post() error {
	if err := p.checkCSRF(); err != nil {
		return err
	}
	fs, err := p.buildFormset()
	if err != nil {
		return err
	}
	if !fs.IsValid() {
		return p.renderFormset(fs)
	}
	return p.FormsetValid(fs)
}

// FormsetValid saves the formset, runs the extensions, and answers.
func (p *FormsetPlugin) FormsetValid(fs *form.Formset) error {
	saved, err := fs.Save(p.reqCtx(), p.env().DB)
	if err != nil {
		return err
	}
	metrics.ObjectSavesTotal.WithLabelValues(p.view.Model.Name).Add(float64(len(saved)))
	if err := Each(p.extra, func(h FormsetValidHook) error { return h.FormsetValid(fs) }); err != nil {
		return err
	}
	p.flash(form.FormatMessage(p.view.SuccessMessage, map[string]any{"count": len(saved)}))

	if p.ModalID() != "" {
		return p.super.JSON(map[string]any{"success": true})
	}
	u, err := p.self.GetSuccessURL()
	if err != nil {
		return err
	}
	return p.super.Redirect(u)
}

// buildFormset builds a formset from the form kwargs.  Editing views get
// one form per existing row.
func (p *FormsetPlugin) buildFormset() (*form.Formset, error) {
	kw, err := p.GetFormKwargs()
	if err != nil {
		return nil, err
	}
	kw.Instance = nil
	var instances []query.Row
	if edits, _ := Property(p.extra, func(h Editor) bool { return h.Edits() }); edits {
		q, err := p.self.GetQueryset()
		if err != nil {
			return nil, err
		}
		if instances, err = q.All(p.reqCtx(), p.env().DB); err != nil {
			return nil, err
		}
	}
	fs := form.NewFormset(p.def, kw, instances, p.view.FormsetExtra)
	p.formset = fs
	return fs, nil
}

func (p *FormsetPlugin) renderFormset(fs *form.Formset) error {
	p.formset = fs
	d, err := p.self.GetContextData(Data{"formset": fs, "form_html": form.RenderFormset(fs)})
	if err != nil {
		return err
	}
	return p.super.RenderToResponse(p.view.Template, d)
}
