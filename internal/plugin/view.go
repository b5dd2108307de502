// internal/plugin/view.go
//
// Declarative view definitions.
//
// Context
// -------
// A View is declared once, at program start, by a component:
//
//	plugin.MustView(env, plugin.View{
//		Name:   "edit_book",
//		Plugin: plugin.MustSelect("form", "update"),
//		Form:   bookForm,
//	})
//
// NewView resolves every optional field against the Views config block and
// checks the feature's required attributes, so a misdeclared view fails
// with a *ConfigError before the server starts.  After NewView returns, a
// View is immutable and shared by all requests.
//
// Filter declarations are checked lazily: a malformed entry surfaces as a
// *LookupError on the request that selects it.
//
// Defaults
// --------
//   - Model            form meta model for form features
//   - SuccessMessage   form meta success_message
//   - Template         per feature, see defaultTemplates
//   - PreviewTemplate  Template
//   - PaginateBy       views.paginate_by; negative disables pagination
//   - Distinct         true
//   - SuccessURL       required for delete views
//   - FilterSearchInputBy, ModalBaseTemplate, AutoDeleteURL,
//     DeleteConfirmation follow the config block of the same name.
//     Formset views never derive a delete URL.

package plugin

import (
	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/query"
)

// View is one declared view.
type View struct {
	Name     string   // route name, e.g. "edit_book"
	Plugin   Selector // zero value selects the base feature
	AjaxView bool     // a client-side module exists for this view

	Model       *query.Model
	Form        *form.FormDef
	PreviewForm *form.FormDef

	Template        string
	PreviewTemplate string
	PageSize        string // layout width hint for the client

	SuccessURL     string
	SuccessMessage string
	DeleteURL      string

	AutoDeleteURL      *bool
	DeleteConfirmation *bool

	PaginateBy          int
	FilterFields        []query.FilterField
	FilterUser          bool // list only objects the user holds an access permission on
	FilterSearchInputBy int
	Distinct            *bool // drop duplicate rows after a filter; nil is true
	DeletedObjLookup    bool  // detail views also find soft-deleted rows
	ModalBaseTemplate   string

	DeleteFileField string // delete views remove this file column's file
	RevokePerm      bool   // delete views revoke the user's object permission
	FormsetExtra    int    // blank forms appended to a formset

	CSRF bool // verify csrf_token on POST

	// Super builds the fallback behavior; nil selects NewGeneric.
	Super func(v *View, c *core.Context) Super

	Env *Env
}

var defaultTemplates = map[Feature]string{
	FeatureList:        "ajaxviews/object_list.html",
	FeatureDetail:      "ajaxviews/object_detail.html",
	FeatureForm:        "ajaxviews/generic_form.html",
	FeatureFormset:     "ajaxviews/generic_formset.html",
	FeatureFormPreview: "ajaxviews/generic_form.html",
	FeatureDelete:      "ajaxviews/confirm_delete.html",
}

// NewView validates v and resolves its defaults.
func NewView(env *Env, v View) (*View, error) {
	fail := func(msg string) (*View, error) { return nil, &ConfigError{View: v.Name, Msg: msg} }

	if env == nil {
		return fail("missing env")
	}
	if v.Name == "" {
		return fail("missing name")
	}
	v.Env = env
	feature := v.Plugin.Feature()

	switch feature {
	case FeatureForm, FeatureFormset, FeatureFormPreview:
		if v.Form == nil {
			return fail("missing form")
		}
		if v.Model == nil {
			v.Model = v.Form.QueryModel()
		}
		if v.Model == nil {
			return fail("form " + v.Form.ID + " has no registered model")
		}
		if v.SuccessMessage == "" {
			v.SuccessMessage = v.Form.Meta.SuccessMessage
		}
	case FeatureList, FeatureDetail, FeatureDelete:
		if v.Model == nil {
			return fail("missing model")
		}
		if feature == FeatureDelete && v.SuccessURL == "" {
			return fail("delete view needs a success URL")
		}
	case FeatureBase:
		if v.Template == "" {
			return fail("missing template")
		}
	}
	if feature == FeatureFormPreview && v.PreviewForm == nil {
		return fail("missing preview form")
	}

	if v.Template == "" {
		v.Template = defaultTemplates[feature]
	}
	if v.PreviewTemplate == "" {
		v.PreviewTemplate = v.Template
	}
	if v.PaginateBy == 0 {
		v.PaginateBy = env.Views.PaginateBy
	}
	if v.FilterSearchInputBy == 0 {
		v.FilterSearchInputBy = env.Views.FilterSearchInputBy
	}
	if v.ModalBaseTemplate == "" {
		v.ModalBaseTemplate = env.Views.ModalBaseTemplate
	}
	if v.AutoDeleteURL == nil {
		v.AutoDeleteURL = lo.ToPtr(env.Views.AutoDeleteURL && feature != FeatureFormset)
	}
	if v.Distinct == nil {
		v.Distinct = lo.ToPtr(true)
	}
	if v.DeleteConfirmation == nil {
		v.DeleteConfirmation = lo.ToPtr(env.Views.FormDeleteConfirmation)
	}
	if v.Super == nil {
		v.Super = func(v *View, c *core.Context) Super { return NewGeneric(v, c) }
	}
	return &v, nil
}

// MustView is NewView that panics on error.
func MustView(env *Env, v View) *View {
	out, err := NewView(env, v)
	if err != nil {
		panic(err)
	}
	return out
}

// Feature returns the view's selected feature.
func (v *View) Feature() Feature { return v.Plugin.Feature() }
