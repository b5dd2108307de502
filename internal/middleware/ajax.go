// internal/middleware/ajax.go
//
// AJAX page middleware.
//
// Context
// -------
// Every full-page (non-AJAX) HTML response gets two scripts inserted right
// before its last `</body>`:
//
//	<script id="config" type="application/json">{json_cfg}</script>
//	<script src="{static}require.js" data-main="{static}{main}"></script>
//
// The first hands the view's json_cfg to the client loader, the second
// boots the loader's main module (`views.require_main_name`).  The view
// publishes its json_cfg through core.PublishJSONCfg; a page rendered by
// anything else gets "{}".
//
// AJAX requests, redirects, non-HTML bodies, and bodies without `</body>`
// pass through untouched.  Modified bodies have Content-Length recomputed.
//
// Notes
// -----
// • The response is buffered for non-AJAX requests only.
// • json_cfg arrives encoded by encoding/json, which already escapes `<`,
//   `>`, and `&`, so it cannot close the script element early.
// • Oxford commas, two spaces after periods.

package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/requestinfo"
)

var bodyClose = []byte("</body>")

// Ajax returns the page middleware.  mainName is the client main module,
// staticURL the prefix the loader is served under.
func Ajax(mainName, staticURL string) func(http.Handler) http.Handler {
	if !strings.HasSuffix(staticURL, "/") {
		staticURL += "/"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(core.WithJSONCfgSlot(r.Context()))
			if requestinfo.IsAjax(r) {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferWriter{header: http.Header{}}
			next.ServeHTTP(buf, r)

			body := buf.body.Bytes()
			if injectable(buf) {
				cfg := core.PublishedJSONCfg(r.Context())
				if cfg == "" {
					cfg = "{}"
				}
				body = insertScripts(body, scripts(cfg, mainName, staticURL))
				buf.header.Set("Content-Length", strconv.Itoa(len(body)))
			}

			dst := w.Header()
			for k, v := range buf.header {
				dst[k] = v
			}
			w.WriteHeader(buf.statusCode())
			_, _ = w.Write(body)
		})
	}
}

func injectable(b *bufferWriter) bool {
	code := b.statusCode()
	if code >= 300 && code < 400 {
		return false
	}
	ct := b.header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(b.body.Bytes())
	}
	return strings.HasPrefix(ct, "text/html") && bytes.Contains(b.body.Bytes(), bodyClose)
}

func scripts(cfg, mainName, staticURL string) []byte {
	return []byte(fmt.Sprintf(
		`<script id="config" type="application/json">%s</script>`+"\n"+
			`<script src="%srequire.js" data-main="%s%s"></script>`+"\n",
		cfg, staticURL, staticURL, mainName))
}

// insertScripts places s before the last </body> in body.
func insertScripts(body, s []byte) []byte {
	i := bytes.LastIndex(body, bodyClose)
	if i < 0 {
		return body
	}
	out := make([]byte, 0, len(body)+len(s))
	out = append(out, body[:i]...)
	out = append(out, s...)
	return append(out, body[i:]...)
}

// bufferWriter captures a response so the middleware can rewrite it.
type bufferWriter struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func (b *bufferWriter) Header() http.Header         { return b.header }
func (b *bufferWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferWriter) WriteHeader(code int) {
	if b.code == 0 {
		b.code = code
	}
}

func (b *bufferWriter) statusCode() int {
	if b.code == 0 {
		return http.StatusOK
	}
	return b.code
}
