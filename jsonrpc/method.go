package jsonrpc

import (
	"context"
	"fmt"
	"reflect"
)

// ParamKind says how the binder fills a declared parameter.
type ParamKind int

const (
	// ParamValue is filled from the request params, by name or by position.
	ParamValue ParamKind = iota
	// ParamRequest receives the live *Request.
	ParamRequest
	// ParamResponse receives the live *Response.
	ParamResponse
	// ParamObject receives the request side-table object of Param.Type.
	ParamObject
)

// Param declares one method parameter.
type Param struct {
	Name string
	Kind ParamKind

	// Type is the side-table key for ParamObject.
	Type reflect.Type

	// Optional value params are omitted from Args when the request lacks them.
	Optional bool
}

// ValueParam declares a required parameter read from the request params.
func ValueParam(name string) Param {
	return Param{Name: name, Kind: ParamValue}
}

// OptionalParam declares a parameter that may be absent from the request.
func OptionalParam(name string) Param {
	return Param{Name: name, Kind: ParamValue, Optional: true}
}

// RequestParam declares a parameter that receives the *Request.
func RequestParam(name string) Param {
	return Param{Name: name, Kind: ParamRequest}
}

// ResponseParam declares a parameter that receives the *Response.
func ResponseParam(name string) Param {
	return Param{Name: name, Kind: ParamResponse}
}

// ObjectParam declares a parameter that receives the object of type T
// attached to the request with AddObject.
func ObjectParam[T any](name string) Param {
	return Param{Name: name, Kind: ParamObject, Type: reflect.TypeFor[T]()}
}

// Invoker calls a method on a located service instance.
type Invoker func(ctx context.Context, svc any, args Args) (any, error)

// Method is the binding descriptor of one callable API method.
type Method struct {
	// Name is the method name as written on the service, e.g. "getProfile".
	Name   string
	Params []Param
	Invoke Invoker
}

// NewMethod builds a Method from a method expression such as
// (*UserAPIService).GetProfile.
func NewMethod[S any](name string, fn func(S, context.Context, Args) (any, error), params ...Param) Method {
	return Method{
		Name:   name,
		Params: params,
		Invoke: func(ctx context.Context, svc any, args Args) (any, error) {
			s, ok := svc.(S)
			if !ok {
				return nil, fmt.Errorf("jsonrpc: service %T cannot serve method %q", svc, name)
			}
			return fn(s, ctx, args)
		},
	}
}

// Service is implemented by API services. APIMethods is the table of methods
// the service exposes; it is read once when the service is registered.
type Service interface {
	APIMethods() []Method
}
