// internal/view/render.go
//
// Central view engine: template lookup, layout composition, func-map
// injection, and an LRU of parsed *template.Template* sets.
//
// Layouts
// -------
// A page template fills blocks ({{ define "content" }} … {{ end }}) that a
// layout declares ({{ block "content" . }}{{ end }}).  The layout is picked
// per response from data["generic_template"], which the view plugins set
// to the modal base, the bare AJAX base, or a generic form base.  Without
// one the default layout ("ajaxviews/base.html") is used.  The pair is
// parsed as one set and the layout is executed.
//
// Lookup precedence (first hit wins) for a name "<comp>/<file>":
//  1. templates/<comp>/<file>
//  2. components/<comp>/templates/<file>
//
// Caching
// -------
// Parsed sets are cached per (layout, page) pair.  Concurrent misses on
// the same pair parse once through singleflight.  With Reload set the
// cache is bypassed so template edits show up without a restart.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/ajaxviews/internal/cache"
)

// DefaultLayout wraps pages that do not name a layout.
const DefaultLayout = "ajaxviews/base.html"

// Resolver reverses named routes for the "url" template func.
type Resolver interface {
	Reverse(name string, args ...any) (string, error)
}

// Options configures a Renderer.
type Options struct {
	TemplatesDir  string   // <root>/templates
	ComponentsDir string   // <root>/components
	StaticURL     string   // prefix for the "static" func
	URLs          Resolver // optional; "url" fails without it
	Reload        bool     // parse on every render
}

// Renderer executes page templates inside their layout.
type Renderer struct {
	opts  Options
	sets  *cache.LRU[string, *template.Template]
	group singleflight.Group
}

// New returns a Renderer.  Tweak the cache capacity when perf-testing.
func New(o Options) *Renderer {
	if o.StaticURL == "" {
		o.StaticURL = "/static/"
	}
	return &Renderer{opts: o, sets: cache.New[string, *template.Template](512)}
}

// Render executes page inside the layout named by data["generic_template"].
func (r *Renderer) Render(w io.Writer, page string, data map[string]any) error {
	layout, _ := data["generic_template"].(string)
	if layout == "" {
		layout = DefaultLayout
	}
	t, err := r.load(layout, page)
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(w, layout, data)
}

// Purge drops every cached set.
func (r *Renderer) Purge() { r.sets.Purge() }

//
// internal: load
//

// load returns the parsed (layout, page) set from cache or disk.
func (r *Renderer) load(layout, page string) (*template.Template, error) {
	key := layout + "|" + page
	if !r.opts.Reload {
		if t, ok := r.sets.Get(key); ok {
			return t, nil
		}
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		t, err := r.parse(layout, page)
		if err != nil {
			return nil, err
		}
		if !r.opts.Reload {
			r.sets.Add(key, t)
		}
		zap.S().Debugw("template set parsed", "layout", layout, "page", page)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

// parse reads layout and page into one set named by their logical names.
// The page is parsed last so its block definitions win.
func (r *Renderer) parse(layout, page string) (*template.Template, error) {
	root := template.New(layout).Funcs(r.funcMap())
	names := []string{layout}
	if page != layout {
		names = append(names, page)
	}
	for _, name := range names {
		path, err := r.find(name)
		if err != nil {
			return nil, err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		t := root
		if name != layout {
			t = root.New(name)
		}
		if _, err := t.Parse(string(src)); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
	}
	return root, nil
}

// find resolves a logical name to a file using the lookup precedence.
func (r *Renderer) find(name string) (string, error) {
	clean := filepath.Clean("/" + name)[1:]
	paths := []string{filepath.Join(r.opts.TemplatesDir, clean)}
	if comp, file, ok := strings.Cut(clean, string(filepath.Separator)); ok && r.opts.ComponentsDir != "" {
		paths = append(paths, filepath.Join(r.opts.ComponentsDir, comp, "templates", file))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("template %s: %w", name, os.ErrNotExist)
}

//
// func-map builders
//

func (r *Renderer) funcMap() template.FuncMap {
	fm := template.FuncMap{
		"dict":   dict,
		"static": r.static,
		"url":    r.url,
		"add":    func(a, b int) int { return a + b },
	}
	for k, v := range uaFuncMap() { // UA helpers (browser/os parsing)
		fm[k] = v
	}
	return fm
}

func (r *Renderer) static(p string) string {
	return strings.TrimSuffix(r.opts.StaticURL, "/") + "/" + strings.TrimPrefix(p, "/")
}

func (r *Renderer) url(name string, args ...any) (string, error) {
	if r.opts.URLs == nil {
		return "", fmt.Errorf("url %s: no resolver", name)
	}
	return r.opts.URLs.Reverse(name, args...)
}

//
// helpers
//

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
