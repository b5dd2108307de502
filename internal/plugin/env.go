// internal/plugin/env.go
//
// Collaborators shared by every view.
//
// Context
// -------
// Plugins never reach for globals.  cmd/web builds one *Env at startup
// (database handle, permission store, renderer, URL resolver, flash
// store, signer, and the Views config block) and every View carries a
// pointer to it.  Tests build an Env from fakes and a sqlmock handle.
//
// Notes
// -----
// • Env is read-only after construction and safe for concurrent use.
// • Oxford commas, two spaces after periods.

package plugin

import (
	"context"
	"io"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ajaxviews/internal/auth"
	"github.com/yanizio/ajaxviews/internal/config"
	"github.com/yanizio/ajaxviews/internal/form"
)

// Permissions is the permission delegate; *acl.Store implements it.
type Permissions interface {
	HasModelPerm(ctx context.Context, u *auth.User, model, action string) (bool, error)
	Assign(ctx context.Context, u *auth.User, model string, objectID any) (bool, error)
	Remove(ctx context.Context, u *auth.User, model string, objectID any) (bool, error)
	ObjectScope(u *auth.User, model, pkColumn string) (string, []any)
}

// Renderer executes a page template; *view.Renderer implements it.
type Renderer interface {
	Render(w io.Writer, page string, data map[string]any) error
}

// Resolver reverses named routes; *routing.Registry implements it.
type Resolver interface {
	Reverse(name string, args ...any) (string, error)
}

// Flasher stores one-shot success messages; *message.Store implements it.
// Pending returns the messages carried in from an earlier response and
// marks them read.
type Flasher interface {
	Success(w http.ResponseWriter, r *http.Request, msg string)
	Pending(w http.ResponseWriter, r *http.Request) []string
}

// Env bundles the collaborators and the Views configuration.
type Env struct {
	DB        *sqlx.DB
	Perms     Permissions
	Renderer  Renderer
	URLs      Resolver
	Flash     Flasher
	Signer    *form.Signer
	Views     config.Views
	MediaRoot string // base directory of uploaded files
}
