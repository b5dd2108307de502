// internal/core/slot.go
//
// Per-request hand-off of the serialized json_cfg from the view to the
// AJAX middleware.
//
// The middleware installs an empty slot before calling the router.  The
// view publishes the final json_cfg into it while rendering; the
// middleware reads it back after the handler returns and embeds it in the
// page.  Without an installed slot PublishJSONCfg is a no-op.

package core

import "context"

type slotKey struct{}

type slot struct{ raw string }

// WithJSONCfgSlot returns a context carrying an empty json_cfg slot.
func WithJSONCfgSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, slotKey{}, &slot{})
}

// PublishJSONCfg stores raw in the request's slot.
func PublishJSONCfg(ctx context.Context, raw string) {
	if s, ok := ctx.Value(slotKey{}).(*slot); ok {
		s.raw = raw
	}
}

// PublishedJSONCfg returns what the view published, or "".
func PublishedJSONCfg(ctx context.Context) string {
	if s, ok := ctx.Value(slotKey{}).(*slot); ok {
		return s.raw
	}
	return ""
}
