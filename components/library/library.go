// components/library/library.go
//
// Library component: authors and books.
//
// Context
// -------
// A small catalogue that exercises every view feature:
//
//	/library/books/                   book_list        list with filters
//	/library/books/add/               add_book         create form
//	/library/books/preview/           preview_book     create with preview
//	/library/books/{pk}/              book_detail      detail, modal aware
//	/library/books/{pk}/edit/         edit_book        update form
//	/library/books/{pk}/delete/       delete_book      delete
//	/library/authors/                 author_list      list
//	/library/authors/edit/            edit_authors     formset over all authors
//	/library/authors/{author_id}/books/add/
//	                                  add_author_book  create, author preset
//
// Form definitions live in forms/*.yaml and load during Init.  Views that
// change data require a signed-in user with the model permission.
//
//------------------------------------------------------------------------------

package library

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ajaxviews/internal/acl"
	"github.com/yanizio/ajaxviews/internal/component"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/query"
	"github.com/yanizio/ajaxviews/internal/views"
)

// Prefix is where the component mounts.
const Prefix = "/library"

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Component serves the catalogue.
type Component struct{}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "library" }

// Migrations returns the author and book schema.
func (c *Component) Migrations() []string { return migrations }

// Init loads the YAML form definitions of every component.
func (c *Component) Init(d component.Deps) error {
	return form.RegisterForms([]string{d.Root})
}

// Mount declares the views and routes them under Prefix.
func (c *Component) Mount(r chi.Router, d component.Deps) error {
	routes, err := Routes(d.Env)
	if err != nil {
		return err
	}
	if store, ok := d.Env.Perms.(*acl.Store); ok {
		for i, rt := range routes {
			if action, guarded := actions[rt.View.Name]; guarded {
				routes[i].Use = append(routes[i].Use, store.RequirePermission(rt.View.Model.Name, action))
			}
		}
	}
	return views.Mount(r, d.Names, Prefix, routes...)
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Views ────────────────────────────────────────*/

// actions names the model permission each data-changing view requires.
var actions = map[string]string{
	"add_book":        "add",
	"preview_book":    "add",
	"add_author_book": "add",
	"edit_book":       "change",
	"delete_book":     "delete",
	"edit_authors":    "change",
}

func formDef(id string) (*form.FormDef, error) {
	fd, ok := form.GetFormDef(id)
	if !ok {
		return nil, fmt.Errorf("library: form %s not loaded", id)
	}
	return fd, nil
}

// Routes declares every library view against env.
func Routes(env *plugin.Env) ([]views.Route, error) {
	bookForm, err := formDef("library/book")
	if err != nil {
		return nil, err
	}
	confirmForm, err := formDef("library/book_confirm")
	if err != nil {
		return nil, err
	}
	authorForm, err := formDef("library/author")
	if err != nil {
		return nil, err
	}

	decl := []struct {
		pattern string
		view    plugin.View
	}{
		{"/books/", plugin.View{
			Name:     "book_list",
			Plugin:   plugin.MustSelect("list"),
			AjaxView: true,
			Model:    Book,
			Template: "library/book_list.html",
			FilterFields: []query.FilterField{
				query.Values("title"),
				query.Values("author__name"),
				query.Choices("status", statusLabels),
				query.Date("published"),
				query.ExcludeFilter("pages"),
				query.Exclude("cover"),
			},
		}},
		{"/books/add/", plugin.View{
			Name:   "add_book",
			Plugin: plugin.MustSelect("form", "create"),
			Form:   bookForm,
			CSRF:   true,
		}},
		{"/books/preview/", plugin.View{
			Name:        "preview_book",
			Plugin:      plugin.MustSelect("formpreview", "create"),
			Form:        bookForm,
			PreviewForm: confirmForm,
			CSRF:        true,
		}},
		{"/books/{pk}/", plugin.View{
			Name:     "book_detail",
			Plugin:   plugin.MustSelect("detail"),
			Model:    Book,
			Template: "library/book_detail.html",
		}},
		{"/books/{pk}/edit/", plugin.View{
			Name:   "edit_book",
			Plugin: plugin.MustSelect("form", "update"),
			Form:   bookForm,
			CSRF:   true,
		}},
		{"/books/{pk}/delete/", plugin.View{
			Name:            "delete_book",
			Plugin:          plugin.MustSelect("delete"),
			Model:           Book,
			SuccessURL:      Prefix + "/books/",
			SuccessMessage:  "Deleted {title}.",
			DeleteFileField: "cover",
			RevokePerm:      true,
			CSRF:            true,
		}},
		{"/authors/", plugin.View{
			Name:   "author_list",
			Plugin: plugin.MustSelect("list"),
			Model:  Author,
			FilterFields: []query.FilterField{
				query.Values("name"),
				query.Date("born"),
			},
		}},
		{"/authors/edit/", plugin.View{
			Name:         "edit_authors",
			Plugin:       plugin.MustSelect("formset", "update"),
			Form:         authorForm,
			SuccessURL:   Prefix + "/authors/",
			FormsetExtra: 2,
			CSRF:         true,
		}},
		{"/authors/{author_id}/books/add/", plugin.View{
			Name:   "add_author_book",
			Plugin: plugin.MustSelect("form", "create"),
			Form:   bookForm,
			CSRF:   true,
		}},
	}

	routes := make([]views.Route, 0, len(decl))
	for _, d := range decl {
		v, err := plugin.NewView(env, d.view)
		if err != nil {
			return nil, err
		}
		routes = append(routes, views.Route{Pattern: d.pattern, View: v})
	}
	return routes, nil
}
