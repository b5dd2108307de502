// internal/plugin/detail.go
//
// Detail feature.
//
// Context
// -------
// Loads one object by the `pk` route param and renders it.  Modal requests
// also get `full_url` in json_cfg so the client can reopen the object as a
// full page.  With View.DeletedObjLookup the lookup includes soft-deleted
// rows.

package plugin

import (
	"github.com/yanizio/ajaxviews/internal/query"
)

// DetailPlugin serves single-object views, optionally inside a modal.
type DetailPlugin struct {
	ModalPlugin
}

// Dispatch records full_url for modal requests so the client can reload
// the same resource as a full page.
func (p *DetailPlugin) Dispatch() error {
	if err := p.ModalPlugin.Dispatch(); err != nil {
		return err
	}
	if p.ModalID() != "" {
		p.ctx.JSONCfg["full_url"] = p.ctx.Request.URL.RequestURI()
	}
	p.ctx.JSONCfg["init_view_type"] = "detailView"
	return nil
}

// Get loads the object and renders it.
func (p *DetailPlugin) Get() error {
	q, err := p.self.GetQueryset()
	if err != nil {
		return err
	}
	obj, err := p.super.GetObject(q)
	if err != nil {
		return err
	}
	p.SetObject(obj)

	d, err := p.self.GetContextData(Data{"object": obj})
	if err != nil {
		return err
	}
	return p.super.RenderToResponse(p.view.Template, d)
}

// GetQueryset includes soft-deleted rows when DeletedObjLookup is set.
func (p *DetailPlugin) GetQueryset() (*query.Query, error) {
	q, err := p.super.GetQueryset()
	if err != nil {
		return nil, err
	}
	if p.view.DeletedObjLookup {
		q = q.WithDeleted()
	}
	return q, nil
}

// GetContextData echoes disable_full_view and success_url from the query.
func (p *DetailPlugin) GetContextData(d Data) (Data, error) {
	d, err := p.ModalPlugin.GetContextData(d)
	if err != nil {
		return nil, err
	}
	if p.ajaxWithoutModalParam() {
		d["generic_template"] = p.env().Views.AjaxBaseTemplate
	}
	if p.ctx.Query("disable_full_view") != "" {
		d["disable_full_view"] = true
	}
	if u := p.ctx.Query("success_url"); u != "" {
		d["success_url"] = u
	}
	return d, nil
}
