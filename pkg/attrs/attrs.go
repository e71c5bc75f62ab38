// Package attrs reads values back out of slog-style key/value argument lists,
// so a single attribute list can feed both the log line and the audit event.
package attrs

import (
	"fmt"
	"log/slog"
)

// ExtractString returns the value logged under key, or "" when absent.
// Values may be strings, fmt.Stringers or slog.Attr entries.
func ExtractString(kv []any, key string) string {
	for i := 0; i < len(kv); i++ {
		if a, ok := kv[i].(slog.Attr); ok {
			if a.Key == key {
				return a.Value.String()
			}
			continue
		}
		k, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			continue
		}
		i++
		if k != key {
			continue
		}
		switch v := kv[i].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}
