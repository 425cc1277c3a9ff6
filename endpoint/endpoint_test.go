package endpoint

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type headerProcessor struct {
	Key   string
	Value string
}

func (hp headerProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	w.Header().Set(hp.Key, hp.Value)
	return next(w, r)
}

func TestHandler_ProcessorsThenRenderer(t *testing.T) {
	var order []string
	p := func(name string) Processor {
		return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
			order = append(order, name)
			return next(w, r)
		})
	}
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		order = append(order, "endpoint")
		return &StringRenderer{Body: "ok"}, nil
	}, p("a"), headerProcessor{Key: "X-Test", Value: "1"}, p("b"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "a,b,endpoint" {
		t.Errorf("order = %q", got)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Test") != "1" {
		t.Error("processor header missing")
	}
}

func TestHandler_JSONRenderer(t *testing.T) {
	h := HandleFunc(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return &JSONRenderer{Value: map[string]string{"a": "<b>"}}, nil
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"a":"<b>"}` {
		t.Errorf("body = %q", got)
	}
}

func TestHandler_BytesRenderer_CopiesHeaders(t *testing.T) {
	h := HandleFunc(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return &BytesRenderer{
			ContentType: "application/json",
			Header:      http.Header{"X-Api-Time": []string{"1.5"}},
			Body:        []byte(`{}`),
		}, nil
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "{}" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Api-Time") != "1.5" {
		t.Error("header not copied")
	}
}

func TestHandler_NilEndpoint_Is500(t *testing.T) {
	h := &EndpointHandler[struct{}]{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestHandler_NilRenderer_Is500(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return nil, nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestHandler_NilProcessor_Is500(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return &StringRenderer{Body: "unreachable"}, nil
	}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestHandler_EndpointError_FromProcessor(t *testing.T) {
	called := false
	deny := ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
		return Error(http.StatusForbidden, "nope", nil)
	})
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		called = true
		return &StringRenderer{Body: "ok"}, nil
	}, deny)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if called {
		t.Error("endpoint ran after processor error")
	}
	if rec.Code != http.StatusForbidden || strings.TrimSpace(rec.Body.String()) != "nope" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandler_EndpointError_EmptyMessage_UsesStatusText(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return nil, Error(http.StatusTeapot, "", nil)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != http.StatusText(http.StatusTeapot) {
		t.Errorf("body = %q", got)
	}
}

func TestHandler_NoContentError_WritesNoBody(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return nil, Error(http.StatusNoContent, "", nil)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandler_PlainError_Is500(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return nil, errors.New("boom")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestHandler_RendererErrorBeforeWrite_Is500(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return RendererFunc(func(http.ResponseWriter, *http.Request) error {
			return errors.New("render failed")
		}), nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestHandler_PanicIsRecovered(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		panic("kaboom")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestStatusOf_AfterNext(t *testing.T) {
	var seen int
	p := ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
		err := next(w, r)
		seen = StatusOf(w)
		return err
	})
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return &StringRenderer{Status: http.StatusAccepted, Body: "x"}, nil
	}, p)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen != http.StatusAccepted {
		t.Errorf("StatusOf = %d, want %d", seen, http.StatusAccepted)
	}
}

func TestEndpointError_UnwrapAndNoDoubleWrap(t *testing.T) {
	cause := errors.New("cause")
	err := Error(http.StatusBadRequest, "bad", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not preserved")
	}
	if again := Error(http.StatusInternalServerError, "other", err); again != err {
		t.Error("EndpointError was wrapped twice")
	}
}
