package jsonrpc

import (
	"context"
	"errors"
	"fmt"
)

// ErrServiceNotFound is returned by a Locator that has no such service.
var ErrServiceNotFound = errors.New("jsonrpc: service not found")

// Locator materializes the service instance named by a Target.
type Locator interface {
	Get(serviceID string) (any, error)
}

// Container is a map-backed Locator.
type Container struct {
	services map[string]any
}

// NewContainer creates an empty Container.
func NewContainer() *Container {
	return &Container{services: make(map[string]any)}
}

// Provide stores svc under ServiceID(svc) and returns the id.
func (c *Container) Provide(svc any) string {
	id := ServiceID(svc)
	c.services[id] = svc
	return id
}

// Get implements Locator.
func (c *Container) Get(serviceID string) (any, error) {
	svc, ok := c.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	return svc, nil
}

// Mount provides each service to c and registers its methods with reg.
func Mount(reg *Registry, c *Container, services ...Service) {
	for _, svc := range services {
		reg.RegisterService(c.Provide(svc), svc)
	}
}

// PreDispatchHook runs after the request is parsed and before the method is
// resolved. It may attach objects with AddObject, or abort the call by
// returning an error; a *JSONRPCError is sent to the caller as is.
type PreDispatchHook interface {
	BeforeDispatch(ctx context.Context, req *Request) error
}

// PreDispatchFunc adapts a function to a PreDispatchHook.
type PreDispatchFunc func(ctx context.Context, req *Request) error

func (f PreDispatchFunc) BeforeDispatch(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// PostDispatchHook runs once per call after the outcome is known, including
// failed and unparseable calls, and before the response is finalized.
type PostDispatchHook interface {
	AfterDispatch(ctx context.Context, resp *Response) error
}

// PostDispatchFunc adapts a function to a PostDispatchHook.
type PostDispatchFunc func(ctx context.Context, resp *Response) error

func (f PostDispatchFunc) AfterDispatch(ctx context.Context, resp *Response) error {
	return f(ctx, resp)
}
