// internal/plugin/errors.go
//
// Error taxonomy for view declaration and request handling.
//
// Notes
// -----
// • views.Status maps these to HTTP codes.
// • ErrPreviewTampered covers a forged or stale preview payload, not a
//   user typo.

package plugin

import (
	"errors"
	"fmt"

	"github.com/yanizio/ajaxviews/internal/query"
)

// ConfigError reports a misdeclared view: an unknown feature or extension
// name, or a missing required attribute.  It is raised while views are
// built, before any request is served.
type ConfigError struct {
	View string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.View == "" {
		return "plugin: " + e.Msg
	}
	return fmt.Sprintf("plugin: view %s: %s", e.View, e.Msg)
}

// LookupError reports a malformed filter declaration or selection.
type LookupError = query.LookupError

var (
	// ErrPreviewTampered means the primary form carried through the
	// preview stage failed its seal check or no longer validates.
	ErrPreviewTampered = errors.New("plugin: preview model form did not validate")

	// ErrBadRequest wraps malformed request parameters such as json_cfg.
	ErrBadRequest = errors.New("plugin: bad request")

	// ErrForbidden is returned when a CSRF-protected view gets a bad token.
	ErrForbidden = errors.New("plugin: forbidden")

	// ErrMethodNotAllowed is returned by entry points a feature does not serve.
	ErrMethodNotAllowed = errors.New("plugin: method not allowed")
)
