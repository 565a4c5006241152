package guard

import (
	"net/http"
	"strings"
)

// ClientIP resolves the caller address from proxy headers: first entry of
// X-Forwarded-For, then X-Real-IP, then the CDN header. Without any of them
// the caller shares the "unknown" bucket.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	return "unknown"
}
