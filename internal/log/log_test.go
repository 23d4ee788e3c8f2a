// SPDX-License-Identifier: MIT

package log

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))

	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck // nil ctx tolerated on purpose
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	assert.NotEmpty(t, seen, "handler must see a generated request id")
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestMiddlewarePropagatesIncomingRequestID(t *testing.T) {
	var seen string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("X-Request-Id", "upstream-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-7", seen)
	assert.Equal(t, "upstream-7", rec.Header().Get("X-Request-Id"))
}

func TestStatusWriterDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}

	n, err := sw.Write([]byte("ok"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, http.StatusOK, sw.status)
	assert.Equal(t, 2, sw.written)
}

func TestStatusWriterKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}

	sw.WriteHeader(http.StatusNotFound)
	sw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusNotFound, sw.status)
}

func TestIsDevicePoll(t *testing.T) {
	assert.True(t, isDevicePoll("/api/current.json"))
	assert.True(t, isDevicePoll("/api/image.bin"))
	assert.False(t, isDevicePoll("/api/history"))
}

func TestWithComponent(t *testing.T) {
	// Mostly a smoke test: the child logger must be usable without panicking
	// even before Configure runs explicitly.
	logger := WithComponent("test")
	logger.Debug().Msg("hello")

	ctxLogger := WithComponentFromContext(ContextWithRequestID(context.Background(), "r1"), "test")
	ctxLogger.Debug().Msg("hello")
}
