package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnehpets/rpcgate/auth"
	"github.com/mnehpets/rpcgate/jsonrpc"
)

// HeaderExecTime carries the call duration in milliseconds.
const HeaderExecTime = "X-Exec-Time"

// DefaultMaxParamLength is the longest string parameter, in characters, kept
// verbatim in Entry.Request.
const DefaultMaxParamLength = 5120

// Option configures Hook.
type Option func(*hook)

// WithMaxParamLength sets the stripping threshold. n <= 0 keeps everything.
func WithMaxParamLength(n int) Option {
	return func(h *hook) {
		h.maxParamLength = n
	}
}

// WithClock sets the time source for Entry.Time.
func WithClock(now func() time.Time) Option {
	return func(h *hook) {
		h.now = now
	}
}

type hook struct {
	sink           Sink
	maxParamLength int
	now            func() time.Time
}

// Hook returns a post-dispatch hook that writes an Entry for every call to
// sink and stamps X-Exec-Time on the response. A sink failure is returned to
// the dispatcher, which logs it; the caller still gets its response.
func Hook(sink Sink, opts ...Option) jsonrpc.PostDispatchHook {
	h := &hook{
		sink:           sink,
		maxParamLength: DefaultMaxParamLength,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sink == nil {
		h.sink = Discard
	}
	return h
}

func (h *hook) AfterDispatch(ctx context.Context, resp *jsonrpc.Response) error {
	e, err := h.entry(resp)
	if err != nil {
		return err
	}
	resp.Header().Set(HeaderExecTime, jsonrpc.FormatMillis(e.Duration))
	if err := h.sink.Write(ctx, e); err != nil {
		return fmt.Errorf("audit: write %s: %w", e.TraceID, err)
	}
	return nil
}

func (h *hook) entry(resp *jsonrpc.Response) (Entry, error) {
	req := resp.Request()
	e := Entry{
		TraceID:  uuid.NewString(),
		Time:     h.now().UTC(),
		Duration: resp.Duration(),
	}
	e.Service, e.Method, _ = strings.Cut(req.Method(), ".")
	if p, ok := auth.ProjectOf(req); ok {
		e.ProjectCode = p.Code
	}

	e.Request = json.RawMessage("[]")
	if params := req.RawParams(); len(params) > 0 {
		stripped, err := strip(params, h.maxParamLength, 2)
		if err != nil {
			return Entry{}, fmt.Errorf("audit: dump params: %w", err)
		}
		e.Request = stripped
	}

	if rpcErr := resp.Error(); rpcErr != nil {
		e.ResponseType = ResponseError
		raw, err := json.Marshal(rpcErr)
		if err != nil {
			return Entry{}, err
		}
		e.Response = raw
	} else {
		e.ResponseType = ResponseSuccess
		e.Response = resp.ResultJSON()
		if e.Response == nil {
			e.Response = json.RawMessage("null")
		}
	}
	return e, nil
}
