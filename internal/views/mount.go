package views

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/routing"
)

// Route binds a chi pattern to a declared view.  Use wraps the view's
// handler, outermost first.
type Route struct {
	Pattern string
	View    *plugin.View
	Use     []func(http.Handler) http.Handler
}

// Mount routes every view under prefix and records its full pattern under
// the view name, so plugins can reverse it.  Views answer GET, HEAD, and
// POST; PUT and DELETE reach the handler and get a 405 from there.
func Mount(r chi.Router, names *routing.Registry, prefix string, routes ...Route) error {
	for _, rt := range routes {
		if err := names.Add(rt.View.Name, routing.BuildPath(prefix, rt.Pattern)); err != nil {
			return err
		}
	}
	sub := chi.NewRouter()
	for _, rt := range routes {
		var h http.Handler = Handler(rt.View)
		for i := len(rt.Use) - 1; i >= 0; i-- {
			h = rt.Use[i](h)
		}
		for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete} {
			sub.Method(m, rt.Pattern, h)
		}
	}
	if prefix == "" || prefix == "/" {
		r.Mount("/", sub)
		return nil
	}
	r.Mount(routing.BuildPath(prefix, ""), sub)
	return nil
}
