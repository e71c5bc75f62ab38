package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"leadtrack/pkg/platform/httputil"
	request "leadtrack/pkg/platform/middleware/request"
	"leadtrack/pkg/requestcontext"
)

type exceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// PerIP limits requests by the client IP the metadata middleware recorded.
// A nil limiter disables the check.
func PerIP(limiter *Window, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result := limiter.Allow(ctx, "ip:"+requestcontext.ClientIP(ctx))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				logger.WarnContext(ctx, "tracking rate limit exceeded",
					"request_id", request.GetRequestID(ctx),
					"device", requestcontext.DeviceClass(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "too many lookups from this address, try again later",
					RetryAfter:       result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
