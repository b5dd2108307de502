// internal/plugin/delete.go
//
// Delete feature.
//
// Context
// -------
// GET shows a confirmation page when View.DeleteConfirmation is set or the
// view requires a CSRF token, and deletes straight away otherwise.  POST
// always deletes, after the token check.  Before the row
// goes the plugin removes the file named by View.DeleteFileField (relative
// to Env.MediaRoot) and, with View.RevokePerm, the user's object
// permission.  A missing file is not an error.
//
// AJAX callers get {"success": true}.  Everyone else is flashed the
// success message and redirected to the `success_url` route or query
// param, then View.SuccessURL.  The redirect target is resolved before
// anything is removed.

package plugin

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/metrics"
	"github.com/yanizio/ajaxviews/internal/query"
)

// DeletePlugin serves delete views.
type DeletePlugin struct {
	ModalPlugin
}

// Get confirms or deletes.  A CSRF view never deletes on GET.
func (p *DeletePlugin) Get() error {
	obj, err := p.load()
	if err != nil {
		return err
	}
	if !*p.view.DeleteConfirmation && !p.view.CSRF {
		return p.delete(obj)
	}
	d, err := p.self.GetContextData(Data{"object": obj})
	if err != nil {
		return err
	}
	return p.super.RenderToResponse(p.view.Template, d)
}

// Post deletes.
func (p *DeletePlugin) Post() error {
	if p.view.CSRF && !p.env().Signer.VerifyToken(p.ctx.Request.PostFormValue("csrf_token")) {
		return ErrForbidden
	}
	obj, err := p.load()
	if err != nil {
		return err
	}
	return p.delete(obj)
}

// GetSuccessURL prefers the caller's success_url.
func (p *DeletePlugin) GetSuccessURL() (string, error) {
	if u := p.ctx.Param("success_url"); u != "" {
		return u, nil
	}
	if p.view.SuccessURL != "" {
		return p.view.SuccessURL, nil
	}
	return "", &ConfigError{View: p.view.Name, Msg: "delete view needs a success URL"}
}

// GetContextData adds the CSRF token for the confirmation form.
func (p *DeletePlugin) GetContextData(d Data) (Data, error) {
	d, err := p.ModalPlugin.GetContextData(d)
	if err != nil {
		return nil, err
	}
	if p.view.CSRF {
		tok, err := p.env().Signer.Token()
		if err != nil {
			return nil, err
		}
		d["csrf_token"] = tok
	}
	if u, err := p.self.GetSuccessURL(); err == nil {
		d["success_url"] = u
	}
	return d, nil
}

func (p *DeletePlugin) load() (query.Row, error) {
	q, err := p.self.GetQueryset()
	if err != nil {
		return nil, err
	}
	obj, err := p.super.GetObject(q)
	if err != nil {
		return nil, err
	}
	p.SetObject(obj)
	return obj, nil
}

func (p *DeletePlugin) delete(obj query.Row) error {
	m := p.view.Model
	c := p.ctx
	var next string
	if !c.IsAjax() {
		u, err := p.self.GetSuccessURL()
		if err != nil {
			return err
		}
		next = u
	}
	if col := p.view.DeleteFileField; col != "" {
		if name := obj.String(col); name != "" {
			path := filepath.Join(p.env().MediaRoot, filepath.Clean("/"+name))
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}
	if p.view.RevokePerm {
		if _, err := p.env().Perms.Remove(p.reqCtx(), c.User, m.Name, obj[m.PK]); err != nil {
			return err
		}
	}
	if err := query.Delete(p.reqCtx(), p.env().DB, m, obj[m.PK]); err != nil {
		return err
	}
	metrics.ObjectDeletesTotal.WithLabelValues(m.Name).Inc()
	p.log().Infow("object deleted", "model", m.Name, "pk", obj[m.PK])

	if c.IsAjax() {
		return p.super.JSON(map[string]any{"success": true})
	}
	p.flash(form.FormatMessage(p.view.SuccessMessage, obj))
	return p.super.Redirect(next)
}
