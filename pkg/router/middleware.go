package router

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/saludstaffing/applykit/pkg/limits"
	"github.com/saludstaffing/applykit/pkg/logging"
)

// Recovery turns a panic in a handler into a 500 and logs the stack.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logging.L(r.Context()).Error("handler panic",
						logging.String("panic", fmt.Sprint(rec)),
						logging.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultContentSecurityPolicy allows only same-origin scripts. Pages
// carry an inline stylesheet and the step progress is an inline custom
// property, so inline styles stay allowed.
const DefaultContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// SecureHeadersConfig lists the headers SecureHeaders sets. Empty values
// are skipped.
type SecureHeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// HSTSMaxAge is sent only over HTTPS. Zero disables HSTS.
	HSTSMaxAge time.Duration
}

// DefaultSecureHeadersConfig returns the policy used for the careers site.
func DefaultSecureHeadersConfig() SecureHeadersConfig {
	return SecureHeadersConfig{
		ContentSecurityPolicy: DefaultContentSecurityPolicy,
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		HSTSMaxAge:            365 * 24 * time.Hour,
	}
}

// SecureHeaders sets the default security headers.
func SecureHeaders() Middleware {
	return SecureHeadersWithConfig(DefaultSecureHeadersConfig())
}

// SecureHeadersWithConfig sets the headers in config on every response.
func SecureHeadersWithConfig(config SecureHeadersConfig) Middleware {
	static := [][2]string{
		{"Content-Security-Policy", config.ContentSecurityPolicy},
		{"X-Frame-Options", config.FrameOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Permissions-Policy", config.PermissionsPolicy},
		{"X-Content-Type-Options", "nosniff"},
	}
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(int(config.HSTSMaxAge.Seconds())) + "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range static {
				if kv[1] != "" {
					h.Set(kv[0], kv[1])
				}
			}
			if hsts != "" && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a per-client token bucket.
func RateLimit(requestsPerSecond int) Middleware {
	return rateLimit(requestsPerSecond, nil)
}

// rateLimit is RateLimit with a hook run for every refused request.
func rateLimit(requestsPerSecond int, onDeny func(*http.Request)) Middleware {
	buckets := limits.NewTokenBucket(float64(requestsPerSecond), requestsPerSecond)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !buckets.Allow(limits.ClientIP(r)) {
				if onDeny != nil {
					onDeny(r)
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
