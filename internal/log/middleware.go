// SPDX-License-Identifier: MIT

package log

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.written += n
	return n, err
}

// Middleware returns an HTTP middleware that assigns a request ID, stores it
// in the request context, and logs one line per request with latency and
// status. Device poll endpoints run at debug level to keep hourly wake cycles
// from drowning the log.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-Id")
			if rid == "" {
				rid = uuid.NewString()
			}
			ctx := ContextWithRequestID(r.Context(), rid)
			w.Header().Set("X-Request-Id", rid)

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			logger := FromContext(ctx)
			evt := logger.Info()
			if isDevicePoll(r.URL.Path) {
				evt = logger.Debug()
			}
			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.written).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

func isDevicePoll(path string) bool {
	switch path {
	case "/api/current.json", "/api/image.bin":
		return true
	}
	return false
}
