// Package device classifies the calling client from its User-Agent so the
// tracking flow can report lookups per device class.
package device

import (
	"net/http"

	"github.com/mssola/useragent"

	"leadtrack/pkg/requestcontext"
)

// Device classes.
const (
	ClassBot     = "bot"
	ClassMobile  = "mobile"
	ClassDesktop = "desktop"
	ClassUnknown = "unknown"
)

// Classify maps a User-Agent header to a device class.
func Classify(userAgent string) string {
	if userAgent == "" {
		return ClassUnknown
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return ClassBot
	case ua.Mobile():
		return ClassMobile
	}
	if name, _ := ua.Browser(); name == "" {
		return ClassUnknown
	}
	return ClassDesktop
}

// Middleware stores the device class in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDeviceClass(r.Context(), Classify(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
