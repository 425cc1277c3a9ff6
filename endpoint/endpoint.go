// Package endpoint turns typed handler functions into http.Handlers.
//
// A request passes through three phases:
//
//  1. Processors run in order, each deciding whether to continue the chain.
//  2. The request is decoded into a typed params value (see Unmarshal) and
//     passed to the EndpointFunc, which returns a Renderer.
//  3. The Renderer writes status, headers and body.
//
// Errors returned from any phase are written as plain-text HTTP errors; an
// *EndpointError selects the status code.
package endpoint

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mnehpets/rpcgate/logging"
)

// EndpointError is an error that maps directly to an HTTP status code.
type EndpointError struct {
	Status int
	// Message is written as the response body. Empty means the status text.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.message()
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *EndpointError) message() string {
	if e.Message != "" {
		return e.Message
	}
	if msg := http.StatusText(e.Status); msg != "" {
		return msg
	}
	return "unknown error"
}

// Error creates an EndpointError. An err that already is one is returned as is.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderer writes a response. It must call WriteHeader.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Processor is middleware that runs before the endpoint. It may set headers
// but must not call WriteHeader or write a body; to stop the chain it returns
// without calling next, usually with an error.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc holds the business logic of an endpoint. params is decoded from
// the request before the call.
type EndpointFunc[P any] func(w http.ResponseWriter, r *http.Request, params P) (Renderer, error)

// EndpointHandler is the http.Handler for an EndpointFunc.
type EndpointHandler[P any] struct {
	Endpoint   EndpointFunc[P]
	Processors []Processor

	// Logger receives render failures and recovered panics. Nil discards them.
	Logger *slog.Logger
}

// Handler constructs an EndpointHandler, inferring P from fn.
func Handler[P any](fn EndpointFunc[P], processors ...Processor) *EndpointHandler[P] {
	return &EndpointHandler[P]{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc adapts an EndpointFunc into an http.HandlerFunc.
func HandleFunc[P any](fn EndpointFunc[P], processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

// WithLogger sets h.Logger and returns h.
func (h *EndpointHandler[P]) WithLogger(l *slog.Logger) *EndpointHandler[P] {
	h.Logger = l
	return h
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler[P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.OrNop(h.Logger)
	if h.Endpoint == nil {
		http.Error(w, "endpoint: nil EndpointFunc", http.StatusInternalServerError)
		return
	}

	chain := h.terminal
	for i := len(h.Processors) - 1; i >= 0; i-- {
		p, next := h.Processors[i], chain
		if p == nil {
			http.Error(w, "endpoint: nil processor", http.StatusInternalServerError)
			return
		}
		chain = func(w http.ResponseWriter, r *http.Request) error {
			return p.Process(w, r, next)
		}
	}

	rw := &statusWriter{ResponseWriter: w}
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "endpoint panic", "path", r.URL.Path, "panic", rec)
				err = fmt.Errorf("endpoint: panic: %v", rec)
			}
		}()
		return chain(rw, r)
	}()
	if err == nil {
		return
	}
	if rw.wroteHeader {
		// Too late for an error response; the renderer already started writing.
		logger.ErrorContext(r.Context(), "endpoint render failed", "path", r.URL.Path, "error", err)
		return
	}

	status, message := http.StatusInternalServerError, err.Error()
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		if ee.Status >= 100 {
			status = ee.Status
		}
		message = ee.message()
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	http.Error(w, message, status)
}

// terminal decodes params, calls the endpoint and renders its result.
func (h *EndpointHandler[P]) terminal(w http.ResponseWriter, r *http.Request) error {
	var params P
	if err := Unmarshal(r, &params); err != nil {
		return err
	}
	renderer, err := h.Endpoint(w, r, params)
	if err != nil {
		return err
	}
	if renderer == nil {
		return errors.New("endpoint: nil renderer")
	}
	if c, ok := renderer.(io.Closer); ok {
		defer c.Close()
	}
	return renderer.Render(w, r)
}

// statusWriter records whether the response has started.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if !sw.wroteHeader {
		sw.status = status
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Status returns the status written so far, or 0.
func (sw *statusWriter) Status() int {
	return sw.status
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// StatusOf returns the status code written to w so far, if w was wrapped by an
// EndpointHandler. Processors use it after next returns.
func StatusOf(w http.ResponseWriter) int {
	for {
		switch t := w.(type) {
		case interface{ Status() int }:
			return t.Status()
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return 0
		}
	}
}
