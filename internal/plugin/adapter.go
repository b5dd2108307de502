// internal/plugin/adapter.go
//
// Delegation adapter over a plugin's extension chain.
//
// Context
// -------
// A plugin owns an ordered list of extensions (Create, Update, …).  Each
// extension implements any subset of the hook interfaces below.  The
// adapter walks the list in declaration order and calls every extension
// that implements the requested hook; extensions never see each other.
//
// Three call modes
// ----------------
//   - Transform  threads one value through the chain.  Each implementing
//     extension receives the current value and returns the next one.  An
//     extension stops the chain by returning the sentinel Halt; the value
//     it returned alongside Halt becomes the final result and no later
//     extension runs.  Zero values (0, "", nil maps) never stop the chain.
//   - Each       is side-effect mode.  Every implementing extension runs;
//     the first error aborts the walk and is returned.
//   - Property   returns the value of the first implementing extension.
//
// A hook no extension implements is not an error: Transform hands the
// input back unchanged, Each does nothing, Property reports ok == false.

package plugin

import (
	"errors"

	"github.com/yanizio/ajaxviews/internal/form"
)

// Halt stops a Transform chain.  The adapter never returns it.
var Halt = errors.New("plugin: halt extension chain")

// Extension is a composable refinement of a plugin.
type Extension interface {
	Name() string
}

/*──────────────────────────── hook interfaces ───────────────────────────────*/

// FormKwargsHook refines form construction arguments (transform).
type FormKwargsHook interface {
	GetFormKwargs(kw form.Kwargs) (form.Kwargs, error)
}

// ContextHook refines template context data (transform).
type ContextHook interface {
	GetContextData(d Data) (Data, error)
}

// FormValidHook runs after a form validated, before the response (side effect).
type FormValidHook interface {
	FormValid(f *form.Form) error
}

// FormsetValidHook runs after a formset saved (side effect).
type FormsetValidHook interface {
	FormsetValid(fs *form.Formset) error
}

// ObjectLoader loads the object a view acts on during dispatch (side effect).
type ObjectLoader interface {
	LoadObject() error
}

// HeadlinePrefixer exposes the headline prefix (property).
type HeadlinePrefixer interface {
	HeadlinePrefix() string
}

// MetaSuccessURLer exposes the form meta success URL (property).
type MetaSuccessURLer interface {
	MetaSuccessURL() string
}

// Editor marks extensions that edit existing objects (property).
type Editor interface {
	Edits() bool
}

/*──────────────────────────────── adapter ───────────────────────────────────*/

// Adapter dispatches hooks over an ordered extension chain.
type Adapter struct {
	exts []Extension
}

// NewAdapter wraps exts; order is preserved exactly.
func NewAdapter(exts ...Extension) *Adapter {
	return &Adapter{exts: exts}
}

// Extensions returns the chain in declaration order.
func (a *Adapter) Extensions() []Extension {
	if a == nil {
		return nil
	}
	return a.exts
}

// Transform threads param through every extension implementing H.
func Transform[H any, T any](a *Adapter, param T, call func(H, T) (T, error)) (T, error) {
	for _, e := range a.Extensions() {
		h, ok := e.(H)
		if !ok {
			continue
		}
		next, err := call(h, param)
		if errors.Is(err, Halt) {
			return next, nil
		}
		if err != nil {
			return param, err
		}
		param = next
	}
	return param, nil
}

// Each calls every extension implementing H, stopping at the first error.
func Each[H any](a *Adapter, call func(H) error) error {
	for _, e := range a.Extensions() {
		if h, ok := e.(H); ok {
			if err := call(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// Property returns get applied to the first extension implementing H.
func Property[H any, V any](a *Adapter, get func(H) V) (V, bool) {
	for _, e := range a.Extensions() {
		if h, ok := e.(H); ok {
			return get(h), true
		}
	}
	var zero V
	return zero, false
}
