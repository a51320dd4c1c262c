package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes the headers emitted for matching origins. The public
// booking page is served from a different origin than the API, so the public
// routes need this even though the provider dashboard may not.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights and stamps CORS headers. With no allowed
// origins configured it is a no-op.
func WithCORS(p CORSPolicy) Middleware {
	if len(p.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := strings.Join(trimList(p.AllowedMethods), ", ")
	headerList := strings.Join(trimList(p.AllowedHeaders), ", ")
	origins := trimList(p.AllowedOrigins)
	maxAge := int(p.MaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow, ok := matchOrigin(origin, origins, p.AllowCredentials)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			if p.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headerList != "" {
				h.Set("Access-Control-Allow-Headers", headerList)
			}
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	for _, candidate := range allowed {
		if candidate == "*" {
			if allowCredentials {
				return origin, true
			}
			return "*", true
		}
		if strings.EqualFold(candidate, origin) {
			return origin, true
		}
	}
	return "", false
}
