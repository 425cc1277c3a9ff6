// Package middleware provides endpoint processors for the API route.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/rpcgate/endpoint"
)

// APIHeaders sets response headers suited to a JSON API and answers CORS
// preflight requests.
//
// Defaults from NewAPIHeaders:
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains
//   - Referrer-Policy: no-referrer
//   - X-Content-Type-Options: nosniff
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Cross-Origin-Resource-Policy: same-origin
//   - Cache-Control: no-store
type APIHeaders struct {
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds. 0 disables it.
	HSTSMaxAge int

	// Static headers, written as is. Empty values are skipped.
	Static map[string]string

	// CORS is nil when cross-origin calls are not allowed.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowedOrigins lists exact origins, or "*" for any origin.
	AllowedOrigins []string

	// AllowedHeaders defaults to Content-Type and Authorization.
	AllowedHeaders []string

	// ExposedHeaders lets browsers read the timing and route headers.
	ExposedHeaders []string

	// MaxAge is how long a preflight result may be cached, in seconds.
	MaxAge int
}

// HeadersOption configures APIHeaders.
type HeadersOption func(*APIHeaders)

// NewAPIHeaders creates an APIHeaders processor with the defaults above.
func NewAPIHeaders(opts ...HeadersOption) *APIHeaders {
	p := &APIHeaders{
		HSTSMaxAge: 31536000,
		Static: map[string]string{
			"Referrer-Policy":              "no-referrer",
			"X-Content-Type-Options":       "nosniff",
			"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
			"Cross-Origin-Resource-Policy": "same-origin",
			"Cache-Control":                "no-store",
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithoutHSTS disables Strict-Transport-Security, for plain HTTP deployments.
func WithoutHSTS() HeadersOption {
	return func(p *APIHeaders) {
		p.HSTSMaxAge = 0
	}
}

// WithHeader sets or, with an empty value, removes a static header.
func WithHeader(name, value string) HeadersOption {
	return func(p *APIHeaders) {
		p.Static[http.CanonicalHeaderKey(name)] = value
	}
}

// WithAllowedOrigins enables CORS for the given origins. No origins leaves
// CORS disabled.
func WithAllowedOrigins(origins ...string) HeadersOption {
	return func(p *APIHeaders) {
		if len(origins) == 0 {
			p.CORS = nil
			return
		}
		p.CORS = &CORSConfig{
			AllowedOrigins: origins,
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{"X-Api-Time", "X-Exec-Time", "X-Api-Endpoint"},
			MaxAge:         3600,
		}
	}
}

// Process implements endpoint.Processor.
func (p *APIHeaders) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if p.HSTSMaxAge > 0 {
		h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(p.HSTSMaxAge)+"; includeSubDomains")
	}
	for name, value := range p.Static {
		if value != "" {
			h.Set(name, value)
		}
	}

	if p.CORS != nil && p.CORS.apply(w, r) {
		// Preflight.
		return endpoint.Error(http.StatusNoContent, "", nil)
	}
	return next(w, r)
}

// apply writes CORS headers for a cross-origin request and reports whether r
// is a preflight that should be answered without calling the endpoint.
func (c *CORSConfig) apply(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	h := w.Header()
	h.Add("Vary", "Origin")

	switch {
	case slices.Contains(c.AllowedOrigins, "*"):
		h.Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(c.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
	default:
		return false
	}
	if len(c.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposedHeaders, ", "))
	}

	if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
		return false
	}
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	if len(c.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(c.AllowedHeaders, ", "))
	}
	if c.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
	return true
}

var _ endpoint.Processor = (*APIHeaders)(nil)
