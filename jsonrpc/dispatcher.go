package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mnehpets/rpcgate/logging"
)

// Dispatcher runs the call pipeline: parse, pre-dispatch hooks, resolve,
// bind, invoke, post-dispatch hooks.
type Dispatcher struct {
	registry *Registry
	locator  Locator
	pre      []PreDispatchHook
	post     []PostDispatchHook
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPreDispatch appends pre-dispatch hooks. They run in order.
func WithPreDispatch(hooks ...PreDispatchHook) Option {
	return func(d *Dispatcher) {
		d.pre = append(d.pre, hooks...)
	}
}

// WithPostDispatch appends post-dispatch hooks. They run in order.
func WithPostDispatch(hooks ...PostDispatchHook) Option {
	return func(d *Dispatcher) {
		d.post = append(d.post, hooks...)
	}
}

// WithLogger sets the logger for internal failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a Dispatcher over reg and seals reg.
func NewDispatcher(reg *Registry, loc Locator, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: reg, locator: loc}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrNop(d.logger)
	reg.seal()
	return d
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch handles one call. It never fails: every error ends up in the
// returned Response, which is ready to be finalized with Wire.
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request, body []byte) *Response {
	req := &Request{}
	resp := newResponse(req)

	if err := d.call(ctx, r, body, req, resp); err != nil {
		d.fail(ctx, resp, err)
	}

	for _, h := range d.post {
		if err := guard(func() error { return h.AfterDispatch(ctx, resp) }); err != nil {
			d.logger.ErrorContext(ctx, "jsonrpc post-dispatch hook failed",
				"method", req.Method(),
				"error", err,
			)
		}
	}
	return resp
}

func (d *Dispatcher) call(ctx context.Context, r *http.Request, body []byte, req *Request, resp *Response) error {
	if err := req.parse(r, body); err != nil {
		return err
	}
	for _, h := range d.pre {
		if err := guard(func() error { return h.BeforeDispatch(ctx, req) }); err != nil {
			return err
		}
	}

	target, ok := d.registry.Resolve(req.Method())
	if !ok {
		return InvalidMethodError("Method not found")
	}
	svc, err := d.locator.Get(target.Service)
	if err != nil {
		return fmt.Errorf("locate %s: %w", target.Service, err)
	}
	args, err := bind(target.Method, req, resp)
	if err != nil {
		return err
	}

	var result any
	err = guard(func() error {
		var err error
		result, err = target.Method.Invoke(ctx, svc, args)
		return err
	})
	if err != nil {
		return err
	}
	if err := resp.SetResult(result); err != nil {
		return fmt.Errorf("encode result of %s: %w", req.Method(), err)
	}
	return nil
}

// fail records err on resp. JSON-RPC errors are expected and passed through;
// anything else, including a nil *JSONRPCError boxed in a non-nil error, is
// logged and reported as a generic internal error.
func (d *Dispatcher) fail(ctx context.Context, resp *Response, err error) {
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) && rpcErr != nil {
		resp.SetError(rpcErr)
		return
	}
	d.logger.ErrorContext(ctx, "jsonrpc internal error",
		"method", resp.Request().Method(),
		"error", err,
	)
	resp.SetError(InternalError(""))
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jsonrpc: panic: %v", r)
		}
	}()
	return fn()
}
