package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/rpcgate/endpoint"
	"github.com/mnehpets/rpcgate/logging"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Format: logging.FormatJSON, Output: &buf})

	h := endpoint.Handler(func(http.ResponseWriter, *http.Request, struct{}) (endpoint.Renderer, error) {
		return &endpoint.StringRenderer{Status: http.StatusAccepted, Body: "ok"}, nil
	}, NewRequestLogger(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v: %q", err, buf.String())
	}
	if rec["msg"] != "http request" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["status"] != float64(http.StatusAccepted) {
		t.Errorf("status = %v", rec["status"])
	}
	if rec["path"] != "/api/v1/" || rec["method"] != "POST" {
		t.Errorf("path/method = %v %v", rec["path"], rec["method"])
	}
}

func TestRequestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Format: logging.FormatJSON, Output: &buf})

	h := endpoint.Handler(func(http.ResponseWriter, *http.Request, struct{}) (endpoint.Renderer, error) {
		return nil, endpoint.Error(http.StatusTeapot, "short and stout", nil)
	}, NewRequestLogger(logger))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v", rec["level"])
	}
}

func TestRequestLogger_NilLogger(t *testing.T) {
	p := &RequestLogger{}
	var called bool
	if err := p.Process(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), okNext(&called)); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("next not called")
	}
}
