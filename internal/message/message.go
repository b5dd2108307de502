// internal/message/message.go
//
// Flash messages.
//
// Context
//   Form, formset, preview, and delete views report success with a
//   one-shot message shown on the next full page ("Saved Dune.").  The
//   messages travel in a signed cookie, so they survive the redirect that
//   follows a successful POST without any server-side session store:
//
//      ajaxviews_messages = Signer.Sign( JSON []string )
//
//   Success appends to the messages already pending on the request and to
//   any set earlier in the same response.  Pending returns the carried
//   messages and expires the cookie.  A cookie that fails verification is
//   dropped silently; it can only come from an old key or from tampering.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/ajaxviews/internal/form"
)

// CookieName is the flash cookie.
const CookieName = "ajaxviews_messages"

// maxMessages bounds the cookie; older messages are dropped first.
const maxMessages = 8

// Store reads and writes flash messages.
type Store struct {
	signer *form.Signer
}

// NewStore returns a Store signing with s.
func NewStore(s *form.Signer) *Store { return &Store{signer: s} }

// Success queues msg for the next page.
func (s *Store) Success(w http.ResponseWriter, r *http.Request, msg string) {
	msgs := s.fromResponse(w)
	if msgs == nil {
		msgs = s.fromRequest(r)
	}
	msgs = append(msgs, msg)
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		zap.S().Errorw("flash encode", "err", err)
		return
	}
	s.set(w, r, &http.Cookie{Name: CookieName, Value: s.signer.Sign(raw)})
}

// Pending returns the messages the request carries and expires the cookie.
func (s *Store) Pending(w http.ResponseWriter, r *http.Request) []string {
	msgs := s.fromRequest(r)
	if len(msgs) > 0 && s.fromResponse(w) == nil {
		s.set(w, r, &http.Cookie{Name: CookieName, MaxAge: -1})
	}
	return msgs
}

func (s *Store) set(w http.ResponseWriter, r *http.Request, c *http.Cookie) {
	c.Path = "/"
	c.HttpOnly = true
	c.Secure = r.TLS != nil
	c.SameSite = http.SameSiteLaxMode

	// One flash cookie per response: replace an earlier Set-Cookie.
	h := w.Header()
	kept := h.Values("Set-Cookie")[:0:0]
	for _, line := range h.Values("Set-Cookie") {
		if old, err := http.ParseSetCookie(line); err == nil && old.Name == CookieName {
			continue
		}
		kept = append(kept, line)
	}
	h.Del("Set-Cookie")
	for _, line := range kept {
		h.Add("Set-Cookie", line)
	}
	http.SetCookie(w, c)
}

func (s *Store) fromRequest(r *http.Request) []string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	return s.decode(c.Value)
}

// fromResponse returns messages set earlier in this response, or nil.
func (s *Store) fromResponse(w http.ResponseWriter) []string {
	for _, line := range w.Header().Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil || c.Name != CookieName || c.MaxAge < 0 {
			continue
		}
		return s.decode(c.Value)
	}
	return nil
}

func (s *Store) decode(v string) []string {
	raw, err := s.signer.Unsign(v)
	if err != nil {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}
