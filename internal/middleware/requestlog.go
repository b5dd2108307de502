// internal/middleware/requestlog.go
//
// Request-id and access-log middleware.
//
// Context
// -------
// RequestLog sits first in the chain.  It reuses an incoming X-Request-Id
// or mints a UUID, echoes it on the response, and stores a child logger
// (request_id, method, path) in the request context for logger.FromContext.
// After the handler returns it logs status and latency: INFO for normal
// traffic, WARN for 5xx.

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/ajaxviews/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestLog returns the access-log middleware writing through base.
func RequestLog(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			l := base.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			sw := &codeWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(logger.WithContext(r.Context(), l)))

			log := l.Infow
			if sw.status() >= http.StatusInternalServerError {
				log = l.Warnw
			}
			log("request",
				"status", sw.status(),
				"bytes", sw.n,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// codeWriter records the status code and body size.
type codeWriter struct {
	http.ResponseWriter
	code int
	n    int
}

func (c *codeWriter) WriteHeader(code int) {
	if c.code == 0 {
		c.code = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *codeWriter) Write(p []byte) (int, error) {
	if c.code == 0 {
		c.code = http.StatusOK
	}
	n, err := c.ResponseWriter.Write(p)
	c.n += n
	return n, err
}

func (c *codeWriter) status() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}

func (c *codeWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }
