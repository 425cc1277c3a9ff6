package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/rpcgate/endpoint"
)

func okNext(called *bool) func(http.ResponseWriter, *http.Request) error {
	return func(http.ResponseWriter, *http.Request) error {
		*called = true
		return nil
	}
}

func TestAPIHeaders_Defaults(t *testing.T) {
	p := NewAPIHeaders()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/", nil)

	var called bool
	if err := p.Process(w, r, okNext(&called)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !called {
		t.Fatal("next was not called")
	}

	want := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"Referrer-Policy":              "no-referrer",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Cross-Origin-Resource-Policy": "same-origin",
		"Cache-Control":                "no-store",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s: got %q, want %q", name, got, value)
		}
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers set without CORS config")
	}
}

func TestAPIHeaders_Options(t *testing.T) {
	p := NewAPIHeaders(WithoutHSTS(), WithHeader("cache-control", ""), WithHeader("X-Robots-Tag", "none"))
	w := httptest.NewRecorder()
	var called bool
	if err := p.Process(w, httptest.NewRequest(http.MethodPost, "/", nil), okNext(&called)); err != nil {
		t.Fatal(err)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS: got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control: got %q", got)
	}
	if got := w.Header().Get("X-Robots-Tag"); got != "none" {
		t.Errorf("X-Robots-Tag: got %q", got)
	}
}

func TestAPIHeaders_CORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantNext   bool
	}{
		{"no origin header", []string{"https://app.example"}, http.MethodPost, "", false, "", true},
		{"allowed origin", []string{"https://app.example"}, http.MethodPost, "https://app.example", false, "https://app.example", true},
		{"disallowed origin", []string{"https://app.example"}, http.MethodPost, "https://evil.example", false, "", true},
		{"wildcard", []string{"*"}, http.MethodPost, "https://any.example", false, "*", true},
		{"preflight", []string{"https://app.example"}, http.MethodOptions, "https://app.example", true, "https://app.example", false},
		{"preflight disallowed", []string{"https://app.example"}, http.MethodOptions, "https://evil.example", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAPIHeaders(WithAllowedOrigins(tt.origins...))
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/api/v1/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				r.Header.Set("Access-Control-Request-Method", "POST")
			}

			var called bool
			err := p.Process(w, r, okNext(&called))
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin: got %q, want %q", got, tt.wantOrigin)
			}

			var ee *endpoint.EndpointError
			isPreflight := errors.As(err, &ee) && ee.Status == http.StatusNoContent
			if isPreflight != !tt.wantNext {
				t.Errorf("preflight short-circuit = %v (err %v)", isPreflight, err)
			}
			if isPreflight && w.Header().Get("Access-Control-Allow-Methods") != "POST, OPTIONS" {
				t.Errorf("Allow-Methods: got %q", w.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestAPIHeaders_PreflightThroughHandler(t *testing.T) {
	h := endpoint.Handler(func(http.ResponseWriter, *http.Request, struct{}) (endpoint.Renderer, error) {
		t.Error("endpoint called for preflight")
		return &endpoint.NoContentRenderer{}, nil
	}, NewAPIHeaders(WithAllowedOrigins("https://app.example")))

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Max-Age") != "3600" {
		t.Errorf("Max-Age: got %q", w.Header().Get("Access-Control-Max-Age"))
	}
}
