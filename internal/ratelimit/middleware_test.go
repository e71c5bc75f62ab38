package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leadtrack/pkg/platform/middleware/metadata"
	"leadtrack/pkg/testutil"
)

func TestPerIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("rejects once the address is over its limit", func(t *testing.T) {
		h := metadata.ClientMetadata(PerIP(NewWindow(1, time.Minute), logger)(ok))

		req := testutil.NewRequest(t, http.MethodPost, "/api/tracking")
		req.RemoteAddr = "203.0.113.7:5000"
		first := testutil.DoRequest(h, req)
		testutil.AssertStatus(t, first, http.StatusNoContent)
		assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

		req = testutil.NewRequest(t, http.MethodPost, "/api/tracking")
		req.RemoteAddr = "203.0.113.7:5001"
		second := testutil.DoRequest(h, req)
		testutil.AssertStatusAndError(t, second, http.StatusTooManyRequests, "rate_limit_exceeded")
		assert.Equal(t, "60", second.Header().Get("Retry-After"))

		req = testutil.NewRequest(t, http.MethodPost, "/api/tracking")
		req.RemoteAddr = "198.51.100.2:5000"
		testutil.AssertStatus(t, testutil.DoRequest(h, req), http.StatusNoContent)
	})

	t.Run("nil limiter passes through", func(t *testing.T) {
		h := PerIP(nil, logger)(ok)
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodPost, "/api/tracking"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	})
}
