// internal/routing/names.go
//
// Named routes.
//
// Context
// -------
// Views redirect by route name ("book_detail") rather than by path, and the
// update extension derives a delete URL from its own name.  Components add
// each view's full pattern here while mounting; Reverse fills the pattern's
// `{param}` segments positionally.
//
//	r.Add("book_detail", "/library/books/{pk:[0-9]+}/")
//	r.Reverse("book_detail", 42) // "/library/books/42/"
//
// Notes
// -----
// • Argument values are path-escaped.  Regex constraints are not checked.
// • Safe for concurrent use; routes are added at start-up and read per request.

package routing

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Registry maps route names to chi patterns.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: map[string]string{}}
}

// Add records name → pattern.  A duplicate name is an error.
func (g *Registry) Add(name, pattern string) error {
	if name == "" {
		return fmt.Errorf("routing: empty route name for %q", pattern)
	}
	if strings.Contains(pattern, "*") {
		return fmt.Errorf("routing: route %s: wildcard patterns cannot be reversed", name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, dup := g.routes[name]; dup {
		return fmt.Errorf("routing: route %s already maps to %q", name, prev)
	}
	g.routes[name] = pattern
	return nil
}

// Pattern returns the pattern registered under name.
func (g *Registry) Pattern(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.routes[name]
	return p, ok
}

// Reverse builds the path of name from positional args.
func (g *Registry) Reverse(name string, args ...any) (string, error) {
	pattern, ok := g.Pattern(name)
	if !ok {
		return "", fmt.Errorf("routing: no route named %q", name)
	}

	var b strings.Builder
	used := 0
	for rest := pattern; rest != ""; {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := closing(rest, open)
		if end < 0 {
			return "", fmt.Errorf("routing: route %s: unbalanced pattern %q", name, pattern)
		}
		b.WriteString(rest[:open])
		if used >= len(args) {
			return "", fmt.Errorf("routing: route %s needs more than %d argument(s)", name, len(args))
		}
		b.WriteString(url.PathEscape(fmt.Sprint(args[used])))
		used++
		rest = rest[end+1:]
	}
	if used != len(args) {
		return "", fmt.Errorf("routing: route %s takes %d argument(s), got %d", name, used, len(args))
	}
	return b.String(), nil
}

// closing returns the index of the brace matching s[open], allowing nested
// braces inside regex constraints such as {year:[0-9]{4}}.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
