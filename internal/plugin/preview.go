// internal/plugin/preview.go
//
// Preview feature: confirm-before-save over two forms.
//
// Stages
// ------
//
//	0 INITIAL  the primary model form is shown and posted
//	1 PREVIEW  the primary form validated; the confirmation (preview) form
//	           is shown with the primary form's cleaned data as model_data
//	2 DONE     the confirmation form validated; the primary form is
//	           rebuilt and saved
//
// The posted `preview_stage` names the stage of the form being submitted.
// INITIAL goes straight to DONE when the primary form's `skip_preview`
// field is set.  An invalid form re-renders its own stage.
//
// Carrying the primary form
// -------------------------
// The primary form's cleaned data is encoded as a query string and sealed
// (encrypted and authenticated) into the hidden `preview_model_form` field,
// so password fields never reach the page in clear.  On the PREVIEW post
// the payload is opened and bound to a fresh primary form.  A bad seal,
// or a rebuilt form that no longer validates, is ErrPreviewTampered: the
// data was changed in transit, not mistyped by the user.
//
// A GET with `preview_back` and a sealed payload re-displays the primary
// form bound to that data, so the user can edit before confirming.

package plugin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/metrics"
)

// Preview stages.
const (
	StageInitial = 0
	StagePreview = 1
	StageDone    = 2
)

var stageNames = map[int]string{StageInitial: "initial", StagePreview: "preview", StageDone: "done"}

// PreviewPlugin serves preview views.
type PreviewPlugin struct {
	FormPlugin
	stage     int
	modelForm *form.Form
	back      bool
}

// Stage returns the stage of the current response.
func (p *PreviewPlugin) Stage() int { return p.stage }

// Get renders the primary form, or re-displays it on preview_back.
func (p *PreviewPlugin) Get() error {
	p.stage = StageInitial
	p.back = p.ctx.Query("preview_back") != ""
	payload := p.ctx.Query("preview_model_form")
	if !p.back || payload == "" {
		return p.FormPlugin.Get()
	}
	f, err := p.rebuild(payload)
	if err != nil {
		return err
	}
	return p.renderForm(f, p.view.Template)
}

// Post advances the state machine.
func (p *PreviewPlugin) Post() error {
	if err := p.checkCSRF(); err != nil {
		return err
	}
	r := p.ctx.Request
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	stage := StageInitial
	if s := r.PostForm.Get("preview_stage"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: preview_stage %q", ErrBadRequest, s)
		}
		stage = n
	}

	switch stage {
	case StageInitial:
		kw, err := p.GetFormKwargs()
		if err != nil {
			return err
		}
		f := form.New(p.def, kw)
		if !f.IsValid() {
			p.stage = StageInitial
			return p.FormInvalid(f)
		}
		if skipPreview(f, r.PostForm.Get("skip_preview")) {
			return p.done(f, "")
		}
		return p.preview(f)

	case StagePreview:
		primary, err := p.rebuild(r.PostForm.Get("preview_model_form"))
		if err != nil {
			return err
		}
		kw, err := p.previewKwargs(primary)
		if err != nil {
			return err
		}
		kw.Data = r.PostForm
		pf := form.New(p.view.PreviewForm, kw)
		if !pf.IsValid() {
			p.stage = StagePreview
			p.modelForm = primary
			return p.renderForm(pf, p.view.PreviewTemplate)
		}
		return p.done(primary, r.PostForm.Get("success_message"))
	}
	return fmt.Errorf("%w: preview_stage %d", ErrBadRequest, stage)
}

// preview renders the confirmation form for a valid primary form.
func (p *PreviewPlugin) preview(primary *form.Form) error {
	kw, err := p.previewKwargs(primary)
	if err != nil {
		return err
	}
	p.stage = StagePreview
	p.modelForm = primary
	metrics.PreviewTransitionsTotal.WithLabelValues(stageNames[StagePreview]).Inc()
	return p.renderForm(form.New(p.view.PreviewForm, kw), p.view.PreviewTemplate)
}

// done saves the primary form.  msg, when set, replaces the formatted
// success message (the preview form posts it back pre-formatted).
func (p *PreviewPlugin) done(primary *form.Form, msg string) error {
	p.stage = StageDone
	p.form = primary
	metrics.PreviewTransitionsTotal.WithLabelValues(stageNames[StageDone]).Inc()

	if msg == "" {
		msg = form.FormatMessage(p.view.SuccessMessage, primary.Cleaned)
	}
	p.flash(msg)
	if err := Each(p.extra, func(h FormValidHook) error { return h.FormValid(primary) }); err != nil {
		return err
	}
	if p.ModalID() == "" && p.ctx.IsAjax() {
		obj, err := saveForm(p.reqCtx(), p.view, primary)
		if err != nil {
			return err
		}
		p.SetObject(obj)
		u, err := p.self.GetSuccessURL()
		if err != nil {
			return err
		}
		return p.super.JSON(map[string]any{"redirect": u})
	}
	return p.finish(primary)
}

// rebuild opens a sealed payload and binds it to a new primary form.
func (p *PreviewPlugin) rebuild(payload string) (*form.Form, error) {
	raw, err := p.env().Signer.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewTampered, err)
	}
	data, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewTampered, err)
	}
	kw, err := p.GetFormKwargs()
	if err != nil {
		return nil, err
	}
	kw.Data = data
	f := form.New(p.def, kw)
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrPreviewTampered, strings.Join(f.ErrorsFor(""), "; "))
	}
	return f, nil
}

// previewKwargs builds the confirmation form's arguments.
func (p *PreviewPlugin) previewKwargs(primary *form.Form) (form.Kwargs, error) {
	c := p.ctx
	kw := form.Kwargs{
		User:      c.User,
		Instance:  p.object,
		Initial:   map[string]any{},
		ModelData: primary.Cleaned,
	}
	if p.view.CSRF {
		tok, err := p.env().Signer.Token()
		if err != nil {
			return kw, err
		}
		kw.CSRFToken = tok
	}
	kw.SuccessMessage = form.FormatMessage(p.view.SuccessMessage, primary.Cleaned)

	signed, err := p.env().Signer.Seal([]byte(primary.Encode().Encode()))
	if err != nil {
		return kw, err
	}
	back := url.Values{"preview_back": {"1"}, "preview_model_form": {signed}}
	kw.Helper = form.Helper{
		SaveButtonName: "Confirm",
		BackButton:     true,
		FormClass:      "preview-form",
		FormAction:     c.Request.URL.Path,
		Hidden: map[string]string{
			"preview_stage":      strconv.Itoa(StagePreview),
			"preview_model_form": signed,
		},
	}
	if id := p.ModalID(); id != "" {
		kw.Helper.FormAction += "?modal_id=" + url.QueryEscape(id)
		kw.Helper.ModalForm = true
		back.Set("modal_id", id)
	}
	// The back link re-opens the primary form bound to the carried data.
	kw.Helper.SuccessURL = c.Request.URL.Path + "?" + back.Encode()
	return kw, nil
}

// GetContextData records the stage and the preview headline.
func (p *PreviewPlugin) GetContextData(d Data) (Data, error) {
	p.ctx.JSONCfg["preview_stage"] = p.stage
	if p.back {
		p.ctx.JSONCfg["page_size"] = p.def.Meta.FormSize
	}
	d, err := p.FormPlugin.GetContextData(d)
	if err != nil {
		return nil, err
	}
	if p.stage == StagePreview {
		if pd := p.view.PreviewForm; pd.Meta.Headline != "" {
			d["headline"] = strings.TrimSpace(p.env().Views.PreviewHeadlinePrefix + " " + pd.Meta.Headline)
		} else if pd.Meta.HeadlineFull != "" {
			d["headline"] = pd.Meta.HeadlineFull
		}
		if p.modelForm != nil {
			d["model_data"] = p.modelForm.Cleaned
		}
	}
	if p.back && p.ajaxWithoutModalParam() {
		d["generic_template"] = p.env().Views.AjaxBaseTemplate
	}
	return d, nil
}

// skipPreview reports whether the submission asked to bypass the
// confirmation stage, through a form field or a bare posted flag.
func skipPreview(f *form.Form, posted string) bool {
	if v, _ := f.Cleaned["skip_preview"].(bool); v {
		return true
	}
	return posted != "" && posted != "0" && !strings.EqualFold(posted, "false")
}
