// internal/views/handler.go
//
// HTTP adapter for declared views.
//
// Context
// -------
// A hosting view owns no behavior.  Handler builds the per-request
// core.Context, asks the view's Selector for a fresh plugin, runs Dispatch,
// and routes GET / HEAD to Get and POST to Post.  Whatever the plugin
// returns is mapped onto a status code here, in one place:
//
//	query not-found                         404
//	*LookupError, tampered preview, bad req 400
//	ErrForbidden, acl.ErrNoPermission       403
//	ErrMethodNotAllowed                     405
//	*ConfigError and anything else          500
//
// AJAX callers get {"error": "..."} JSON; browsers get plain text.  The
// text of a 500 never leaves the log.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package views

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yanizio/ajaxviews/internal/acl"
	"github.com/yanizio/ajaxviews/internal/core"
	"github.com/yanizio/ajaxviews/internal/logger"
	"github.com/yanizio/ajaxviews/internal/metrics"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/query"
	"github.com/yanizio/ajaxviews/internal/requestinfo"
)

// Handler serves v.
func Handler(v *plugin.View) http.HandlerFunc {
	feature := string(v.Feature())
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		c := core.New(sw, r, v.Name, v.AjaxView)
		p := v.Plugin.Create(v, c, v.Super(v, c))

		err := p.Dispatch()
		if err == nil {
			switch r.Method {
			case http.MethodGet, http.MethodHead:
				err = p.Get()
			case http.MethodPost:
				err = p.Post()
			default:
				err = plugin.ErrMethodNotAllowed
			}
		}
		if err != nil {
			writeError(sw, r, v, err)
		}
		metrics.ViewRequestsTotal.WithLabelValues(feature, r.Method, strconv.Itoa(sw.Status())).Inc()
	}
}

// Status maps a plugin error onto an HTTP status code.
func Status(err error) int {
	var (
		lookup *plugin.LookupError
		cfg    *plugin.ConfigError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &cfg):
		return http.StatusInternalServerError
	case query.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &lookup),
		errors.Is(err, plugin.ErrPreviewTampered),
		errors.Is(err, plugin.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, plugin.ErrForbidden), errors.Is(err, acl.ErrNoPermission):
		return http.StatusForbidden
	case errors.Is(err, plugin.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func writeError(w *statusWriter, r *http.Request, v *plugin.View, err error) {
	code := Status(err)
	log := logger.FromContext(r.Context()).With("view", v.Name, "status", code)
	msg := http.StatusText(code)
	if code >= http.StatusInternalServerError {
		log.Errorw("view failed", "err", err)
	} else {
		log.Infow("view rejected request", "err", err)
		msg = err.Error()
	}

	if w.wrote {
		// Headers are gone; the log line is all we can do.
		return
	}
	if code == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", "GET, HEAD, POST")
	}
	if requestinfo.IsAjax(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}
	http.Error(w, msg, code)
}

// statusWriter remembers the status code for metrics and error handling.
type statusWriter struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.code, w.wrote = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.code, w.wrote = http.StatusOK, true
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the code sent, or 200 when nothing was written.
func (w *statusWriter) Status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
