// internal/plugin/registry.go
//
// Feature selection and per-request plugin construction.
//
// Context
// -------
// A Selector names one feature (base, list, detail, form, formset,
// formpreview, delete) plus ordered extension names (create, update).
// Select checks the names against the closed sets and returns a
// *ConfigError for anything else, so the check happens while views are
// declared.  Create then wires a fresh plugin for one request: the plugin
// gets the view, the request context, and super; each extension gets the
// plugin, the view, and super, in declaration order.
//
// Create performs no I/O and touches no shared state.

package plugin

import (
	"fmt"

	"github.com/yanizio/ajaxviews/internal/core"
)

// Feature names a plugin kind.
type Feature string

const (
	FeatureBase        Feature = "base"
	FeatureList        Feature = "list"
	FeatureDetail      Feature = "detail"
	FeatureForm        Feature = "form"
	FeatureFormset     Feature = "formset"
	FeatureFormPreview Feature = "formpreview"
	FeatureDelete      Feature = "delete"
)

var features = map[Feature]func(b Base) Plugin{
	FeatureBase:        func(b Base) Plugin { return &b },
	FeatureList:        func(b Base) Plugin { return &ListPlugin{Base: b} },
	FeatureDetail:      func(b Base) Plugin { return &DetailPlugin{ModalPlugin: ModalPlugin{Base: b}} },
	FeatureForm:        func(b Base) Plugin { return newFormPlugin(b) },
	FeatureFormset:     func(b Base) Plugin { return &FormsetPlugin{FormPlugin: *newFormPlugin(b)} },
	FeatureFormPreview: func(b Base) Plugin { return &PreviewPlugin{FormPlugin: *newFormPlugin(b)} },
	FeatureDelete:      func(b Base) Plugin { return &DeletePlugin{ModalPlugin: ModalPlugin{Base: b}} },
}

var extensions = map[string]func(x ext) Extension{
	"create": func(x ext) Extension { return &CreateExt{ext: x} },
	"update": func(x ext) Extension { return &UpdateExt{ext: x} },
}

// Selector is a validated feature + extension declaration.
type Selector struct {
	feature    Feature
	extensions []string
}

// Select validates a declaration.  An empty feature selects base.
func Select(feature string, exts ...string) (Selector, error) {
	f := Feature(feature)
	if f == "" {
		f = FeatureBase
	}
	if _, ok := features[f]; !ok {
		return Selector{}, &ConfigError{Msg: fmt.Sprintf("plugin %s not supported", feature)}
	}
	for _, name := range exts {
		if _, ok := extensions[name]; !ok {
			return Selector{}, &ConfigError{Msg: fmt.Sprintf("extension plugin %s not supported", name)}
		}
	}
	return Selector{feature: f, extensions: append([]string(nil), exts...)}, nil
}

// MustSelect is Select that panics on error.
func MustSelect(feature string, exts ...string) Selector {
	s, err := Select(feature, exts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Feature returns the selected feature; the zero Selector is base.
func (s Selector) Feature() Feature {
	if s.feature == "" {
		return FeatureBase
	}
	return s.feature
}

// Extensions returns the extension names in declaration order.
func (s Selector) Extensions() []string { return append([]string(nil), s.extensions...) }

// binder is implemented by supers that call back into the plugin.
type binder interface {
	Bind(p Plugin)
}

// Create builds the plugin and extension chain for one request.
func (s Selector) Create(v *View, c *core.Context, super Super) Plugin {
	b := Base{view: v, ctx: c, super: super}
	p := features[s.Feature()](b)

	exts := make([]Extension, 0, len(s.extensions))
	for _, name := range s.extensions {
		exts = append(exts, extensions[name](ext{host: p, view: v, super: super}))
	}
	p.setup(p, NewAdapter(exts...))
	if sb, ok := super.(binder); ok {
		sb.Bind(p)
	}
	return p
}
