package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig controls which browser origins may call the API.
type CORSConfig struct {
	// AllowOrigins lists accepted origins. "*" or an empty list accepts any.
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig accepts any origin. Dashboards on the LAN read poses and
// the event stream directly.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", "Accept", "Origin", "Last-Event-ID", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        86400,
	}
}

type corsHeaders struct {
	origins []string
	methods string
	headers string
	expose  string
	maxAge  string
}

func newCORSHeaders(config CORSConfig) corsHeaders {
	return corsHeaders{
		origins: config.AllowOrigins,
		methods: strings.Join(config.AllowMethods, ", "),
		headers: strings.Join(config.AllowHeaders, ", "),
		expose:  strings.Join(config.ExposeHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
}

// origin returns the Access-Control-Allow-Origin value for a request origin,
// or "" when the origin is not allowed.
func (c corsHeaders) origin(requested string) string {
	if len(c.origins) == 0 || slices.Contains(c.origins, "*") {
		return "*"
	}
	if requested != "" && slices.Contains(c.origins, requested) {
		return requested
	}
	return ""
}

func (c corsHeaders) apply(set func(name, value string), requested string, preflight bool) {
	allow := c.origin(requested)
	if allow == "" {
		return
	}
	set("Access-Control-Allow-Origin", allow)
	if allow != "*" {
		set("Vary", "Origin")
	}
	if c.expose != "" {
		set("Access-Control-Expose-Headers", c.expose)
	}
	if preflight {
		set("Access-Control-Allow-Methods", c.methods)
		set("Access-Control-Allow-Headers", c.headers)
		set("Access-Control-Max-Age", c.maxAge)
	}
}

// NewCORSMiddleware adds CORS headers to every huma operation.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	h := newCORSHeaders(config)
	return func(ctx huma.Context, next func(huma.Context)) {
		h.apply(ctx.SetHeader, ctx.Header("Origin"), false)
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests on the mux. Huma only sees
// requests that matched an operation, so OPTIONS never reaches the
// middleware.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	h := newCORSHeaders(config)
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		h.apply(w.Header().Set, r.Header.Get("Origin"), true)
		w.WriteHeader(http.StatusNoContent)
	})
}
