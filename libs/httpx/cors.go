package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists what browser clients on other origins may do. A "*" origin allows any
// origin; with AllowCredentials the caller's origin is echoed instead of "*".
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsRules struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	exposed     string
	credentials bool
	maxAge      string
}

func (p CORSPolicy) compile() corsRules {
	rules := corsRules{
		origins:     map[string]struct{}{},
		methods:     strings.Join(trimList(p.AllowedMethods), ", "),
		headers:     strings.Join(trimList(p.AllowedHeaders), ", "),
		exposed:     strings.Join(trimList(p.ExposedHeaders), ", "),
		credentials: p.AllowCredentials,
	}
	for _, o := range trimList(p.AllowedOrigins) {
		if o == "*" {
			rules.anyOrigin = true
			continue
		}
		rules.origins[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		rules.maxAge = strconv.Itoa(secs)
	}
	return rules
}

func (c corsRules) allowOrigin(origin string) (string, bool) {
	if _, ok := c.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	if !c.anyOrigin {
		return "", false
	}
	if c.credentials {
		return origin, true
	}
	return "*", true
}

// WithCORS answers preflight requests from allowed origins with 204 and decorates other
// cross-origin responses. Without allowed origins it does nothing.
func WithCORS(p CORSPolicy) Middleware {
	rules := p.compile()
	if !rules.anyOrigin && len(rules.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			allowed, ok := "", false
			if origin != "" {
				allowed, ok = rules.allowOrigin(origin)
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", allowed)
			if rules.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				if rules.exposed != "" {
					h.Set("Access-Control-Expose-Headers", rules.exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if rules.methods != "" {
				h.Set("Access-Control-Allow-Methods", rules.methods)
			}
			if rules.headers != "" {
				h.Set("Access-Control-Allow-Headers", rules.headers)
			}
			if rules.maxAge != "" {
				h.Set("Access-Control-Max-Age", rules.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SplitList parses a comma-separated env value such as CORS_ALLOWED_ORIGINS.
func SplitList(raw string) []string {
	return trimList(strings.Split(raw, ","))
}
