// internal/routing/slug.go
//
// Path helpers.
//
// • BuildPath(parent, child) ─ joins a mount prefix and a route pattern with
//   a single “/” and guarantees exactly one leading slash.  A trailing slash
//   on child is kept, since views are routed as “/books/{pk}/”.
//
// Notes
// -----
// • Patterns are chi patterns; `{name}` and `{name:regex}` segments pass
//   through untouched.

package routing

import (
	"strings"
)

// BuildPath joins parent + child ensuring exactly one leading slash and no
// duplicate separators.
func BuildPath(parent, child string) string {
	trailing := strings.HasSuffix(child, "/")
	parent = strings.Trim(parent, "/")
	child = strings.Trim(child, "/")

	var out string
	switch {
	case parent == "" && child == "":
		return "/"
	case parent == "":
		out = "/" + child
	case child == "":
		out = "/" + parent
	default:
		out = "/" + parent + "/" + child
	}
	if trailing {
		out += "/"
	}
	return out
}
