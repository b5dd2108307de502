// internal/form/form.go
//
// Forms subsystem: bound form instances.
//
// Context
//   A *Form is one FormDef bound to one request.  View plugins assemble a
//   Kwargs value (initial data, instance, helper options, related-object
//   ids), call New, and then drive IsValid → Save.
//
// Related-object ids
//   URL params ending in “_id” arrive in Kwargs.RelatedObjIDs.  For each
//   one whose stem names a form field (“author_id” → “author”) the value
//   becomes that field's initial value and the id is consumed.  Ids left
//   over travel in form_cfg.related_obj_ids so Save can still apply them.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/query"
)

// Helper carries the options the form-actions block renders.
type Helper struct {
	SaveButtonName string
	SuccessURL     string
	DeleteURL      string
	FormAction     string
	ModalForm      bool
	BackButton     bool
	FormClass      string            // extra CSS class, e.g. "preview-form"
	Hidden         map[string]string // extra hidden inputs, e.g. the preview stage
}

// Kwargs are the form construction arguments.
type Kwargs struct {
	Data           url.Values // bound data; nil for an unbound form
	Prefix         string     // formset prefix, e.g. "form-0"
	Initial        map[string]any
	Instance       query.Row // object being updated; nil on create
	User           *auth.User
	Choices        map[string][]Choice
	RelatedObjIDs  map[string]any
	ModelData      map[string]any // preview form: the primary form's cleaned data
	SuccessMessage string         // preview form: pre-formatted message, posted back
	CSRFToken      string
	Helper         Helper
}

// Form is a FormDef bound to one request.
type Form struct {
	Def       *FormDef
	Cfg       Cfg
	Errors    []ErrorField
	Cleaned   map[string]any
	JSONCache map[string]any
	Object    query.Row // set by Save

	kw        Kwargs
	validated bool
}

// New builds a form.  Related ids are consumed here; see the file comment.
func New(def *FormDef, kw Kwargs) *Form {
	f := &Form{Def: def, kw: kw, Cfg: Cfg{}}
	if f.kw.Initial == nil {
		f.kw.Initial = map[string]any{}
	}
	if f.kw.Helper.SaveButtonName == "" {
		f.kw.Helper.SaveButtonName = "Save"
	}

	if raw := f.value("form_cfg"); raw != "" {
		cfg, err := ParseCfg(raw)
		if err != nil {
			f.addError("", "Invalid form configuration.")
		} else {
			f.Cfg = cfg
		}
	}

	related := lo.MapValues(lo.Assign(f.Cfg.RelatedObjIDs(), kw.RelatedObjIDs),
		func(v any, _ string) any { return NormalizeID(v) })
	for key, v := range related {
		name := strings.TrimSuffix(key, "_id")
		if _, ok := def.Field(name); ok {
			f.kw.Initial[name] = v
			delete(related, key)
		}
	}
	delete(f.Cfg, CfgRelatedObjIDs)
	f.Cfg.MergeRelatedObjIDs(related)
	return f
}

// Kwargs returns the construction arguments as finally applied.
func (f *Form) Kwargs() Kwargs { return f.kw }

// Helper returns the form-actions options.
func (f *Form) Helper() Helper { return f.kw.Helper }

// Prefix returns the formset prefix, or "".
func (f *Form) Prefix() string { return f.kw.Prefix }

// ModelData returns the primary form's cleaned data on a preview form.
func (f *Form) ModelData() map[string]any { return f.kw.ModelData }

// SuccessMessage returns the pre-formatted preview success message.
func (f *Form) SuccessMessage() string { return f.kw.SuccessMessage }

// IsBound reports whether the form carries submitted data.
func (f *Form) IsBound() bool { return f.kw.Data != nil }

// key returns the submission key for a field name.
func (f *Form) key(name string) string {
	if f.kw.Prefix == "" {
		return name
	}
	return f.kw.Prefix + "-" + name
}

func (f *Form) raw(name string) (string, bool) {
	vs, ok := f.kw.Data[f.key(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (f *Form) value(name string) string {
	v, _ := f.raw(name)
	return v
}

func (f *Form) addError(name, msg string) {
	f.Errors = append(f.Errors, ErrorField{Name: name, Message: msg})
}

// IsValid cleans the bound data once and reports success.  Unbound forms
// are never valid.
func (f *Form) IsValid() bool {
	if !f.IsBound() {
		return false
	}
	if !f.validated {
		f.validated = true
		f.clean() // appends to any form_cfg error recorded by New
	}
	return len(f.Errors) == 0
}

// ErrorsFor returns the messages attached to one field ("" for form level).
func (f *Form) ErrorsFor(name string) []string {
	return lo.FilterMap(f.Errors, func(e ErrorField, _ int) (string, bool) {
		return e.Message, e.Name == name
	})
}

// ClearErrors drops validation errors; AJAX form_data GETs bind data only
// to prefill.
func (f *Form) ClearErrors() { f.Errors = nil }

// Value returns the display value of a field: bound data, then initial,
// then the instance column.
func (f *Form) Value(name string) string {
	if f.IsBound() {
		if v, ok := f.raw(name); ok {
			return v
		}
	}
	if v, ok := f.kw.Initial[name]; ok && v != nil {
		return fmt.Sprint(v)
	}
	if f.kw.Instance != nil {
		col := name
		if m := f.Def.QueryModel(); m != nil {
			if mf, ok := m.Field(name); ok {
				col = mf.Column
			}
		}
		return f.kw.Instance.String(col)
	}
	return ""
}

// Encode renders the cleaned data as url.Values that bind back to an
// equivalent form.  Nil values are omitted; false checkboxes too.
func (f *Form) Encode() url.Values {
	out := url.Values{}
	for _, fd := range f.Def.Fields {
		switch v := f.Cleaned[fd.Name].(type) {
		case nil:
		case bool:
			if v {
				out.Set(fd.Name, "on")
			}
		case int64:
			out.Set(fd.Name, strconv.FormatInt(v, 10))
		case float64:
			out.Set(fd.Name, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			out.Set(fd.Name, fmt.Sprint(v))
		}
	}
	if raw, err := f.Cfg.Encode(); err == nil && raw != "" {
		out.Set("form_cfg", raw)
	}
	return out
}

// ModelValues returns cleaned data restricted to saved model fields.
// Remaining related ids fill fk fields the form does not declare.
func (f *Form) ModelValues() map[string]any {
	m := f.Def.QueryModel()
	out := map[string]any{}
	if m == nil {
		return out
	}
	for _, fd := range f.Def.Fields {
		if fd.Virtual {
			continue
		}
		if _, ok := m.Field(fd.Name); ok {
			out[fd.Name] = f.Cleaned[fd.Name]
		}
	}
	for key, v := range f.Cfg.RelatedObjIDs() {
		name := strings.TrimSuffix(key, "_id")
		if mf, ok := m.Field(name); ok && mf.Type == query.TypeFK {
			if _, set := out[name]; !set {
				out[name] = v
			}
		}
	}
	return out
}

// Save inserts or updates the model row from cleaned data and records the
// saved row in f.Object.  The form must be valid.  A form saves once;
// later calls return the row already saved.
func (f *Form) Save(ctx context.Context, db sqlx.ExtContext) (query.Row, error) {
	if f.Object != nil {
		return f.Object, nil
	}
	if !f.IsValid() {
		return nil, fmt.Errorf("form %s: save of invalid form", f.Def.ID)
	}
	m := f.Def.QueryModel()
	if m == nil {
		return nil, fmt.Errorf("form %s: no model %q", f.Def.ID, f.Def.Model)
	}
	values := f.ModelValues()

	obj := query.Row{}
	if f.kw.Instance != nil {
		pk := f.kw.Instance[m.PK]
		if err := query.Update(ctx, db, m, pk, values); err != nil {
			return nil, err
		}
		for k, v := range f.kw.Instance {
			obj[k] = v
		}
	} else {
		id, err := query.Insert(ctx, db, m, values)
		if err != nil {
			return nil, err
		}
		obj[m.PK] = id
	}
	for name, v := range values {
		if mf, ok := m.Field(name); ok {
			obj[mf.Column] = v
		}
	}
	f.Object = obj

	if field := f.Cfg.AutoSelectField(); field != "" {
		f.JSONCache = map[string]any{
			"field": field,
			"pk":    obj[m.PK],
			"label": f.label(),
		}
	}
	return obj, nil
}

func (f *Form) label() string {
	name := f.Def.Meta.LabelField
	if name == "" && len(f.Def.Fields) > 0 {
		name = f.Def.Fields[0].Name
	}
	return fmt.Sprint(f.Cleaned[name])
}

// NormalizeID turns numeric ids from URLs or JSON into int64.  Other
// values pass through.
func NormalizeID(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	case int:
		return int64(t)
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
	}
	return v
}

var placeholderRE = regexp.MustCompile(`\{(\w+)\}`)

// FormatMessage substitutes {field} placeholders from data.  Unknown
// placeholders are left as written.
func FormatMessage(tmpl string, data map[string]any) string {
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, ok := data[m[1:len(m)-1]]
		if !ok {
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
