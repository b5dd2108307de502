// internal/plugin/extensions.go
//
// Create and Update extensions.
//
// Context
// -------
// Extensions are small behavior units layered on a form, formset, or
// preview plugin.  Each holds back-references to its plugin (host), the
// view, and super, and implements only the hooks it needs.  Order matters:
// with ("form", "create"), Create's FormValid saves the object and assigns
// the user's permission before the plugin formats its response.
//
// Update derives a delete URL by naming convention: the route name with
// "edit_" replaced by "delete_", reversed with the object's pk.  The URL is
// dropped when reversal fails or the user lacks delete permission on the
// model, unless the model is listed in views.always_deletable.

package plugin

import (
	"strings"

	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/logger"
)

// ext is the shared back-reference block.
type ext struct {
	host  Plugin
	view  *View
	super Super
}

func (x ext) env() *Env { return x.view.Env }

/*──────────────────────────────── create ────────────────────────────────────*/

// CreateExt refines views that create objects.
type CreateExt struct{ ext }

func (e *CreateExt) Name() string { return "create" }

// HeadlinePrefix returns the configured create prefix ("Add").
func (e *CreateExt) HeadlinePrefix() string { return e.env().Views.CreateHeadlinePrefix }

// MetaSuccessURL returns the form meta success URL.
func (e *CreateExt) MetaSuccessURL() string { return e.view.Form.Meta.SuccessURL }

// FormValid saves the object and assigns the user's object permission
// when the form meta asks for it.
func (e *CreateExt) FormValid(f *form.Form) error {
	if !f.Def.Meta.AssignPerm {
		return nil
	}
	c := e.host.Context()
	obj, err := saveForm(c.Request.Context(), e.view, f)
	if err != nil {
		return err
	}
	e.host.SetObject(obj)
	m := e.view.Model
	_, err = e.env().Perms.Assign(c.Request.Context(), c.User, m.Name, obj[m.PK])
	return err
}

// FormsetValid assigns permissions on every saved object.
func (e *CreateExt) FormsetValid(fs *form.Formset) error {
	if !fs.Def.Meta.AssignPerm {
		return nil
	}
	c := e.host.Context()
	m := e.view.Model
	for _, obj := range fs.Saved {
		if _, err := e.env().Perms.Assign(c.Request.Context(), c.User, m.Name, obj[m.PK]); err != nil {
			return err
		}
	}
	return nil
}

// GetContextData marks the view as modal-only content.
func (e *CreateExt) GetContextData(d Data) (Data, error) {
	d["disable_full_view"] = true
	return d, nil
}

/*──────────────────────────────── update ────────────────────────────────────*/

// UpdateExt refines views that edit existing objects.
type UpdateExt struct{ ext }

func (e *UpdateExt) Name() string { return "update" }

// Edits marks the host as editing existing rows.
func (e *UpdateExt) Edits() bool { return true }

// HeadlinePrefix returns the configured update prefix ("Edit").
func (e *UpdateExt) HeadlinePrefix() string { return e.env().Views.UpdateHeadlinePrefix }

// LoadObject fetches the object named by the pk route param.  Formsets
// edit a queryset instead and skip this.
func (e *UpdateExt) LoadObject() error {
	if e.view.Feature() == FeatureFormset {
		return nil
	}
	q, err := e.host.GetQueryset()
	if err != nil {
		return err
	}
	obj, err := e.super.GetObject(q)
	if err != nil {
		return err
	}
	e.host.SetObject(obj)
	return nil
}

// GetFormKwargs renames the save button and adds the delete URL.
func (e *UpdateExt) GetFormKwargs(kw form.Kwargs) (form.Kwargs, error) {
	kw.Helper.SaveButtonName = "Update"
	u, err := e.deleteURL()
	if err != nil {
		return kw, err
	}
	kw.Helper.DeleteURL = u
	return kw, nil
}

func (e *UpdateExt) deleteURL() (string, error) {
	if e.view.DeleteURL != "" {
		return e.view.DeleteURL, nil
	}
	obj := e.host.Object()
	c := e.host.Context()
	if !*e.view.AutoDeleteURL || obj == nil || e.env().URLs == nil || !strings.Contains(c.ViewName, "edit_") {
		return "", nil
	}
	m := e.view.Model
	name := strings.Replace(c.ViewName, "edit_", "delete_", 1)
	u, err := e.env().URLs.Reverse(name, obj[m.PK])
	if err != nil {
		logger.FromContext(c.Request.Context()).Debugw("no delete route", "name", name, "err", err)
		return "", nil
	}
	if lo.Contains(e.env().Views.AlwaysDeletable, m.Name) {
		return u, nil
	}
	ok, err := e.env().Perms.HasModelPerm(c.Request.Context(), c.User, m.Name, "delete")
	if err != nil || !ok {
		return "", err
	}
	return u, nil
}

// GetContextData marks the view as modal-only content.
func (e *UpdateExt) GetContextData(d Data) (Data, error) {
	d["disable_full_view"] = true
	return d, nil
}
