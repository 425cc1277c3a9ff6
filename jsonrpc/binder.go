package jsonrpc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

var (
	requestType  = reflect.TypeFor[*Request]()
	responseType = reflect.TypeFor[*Response]()
)

// Args is the bound argument list of a call, one slot per declared Param.
// Value slots hold json.RawMessage; omitted optional params leave a nil slot.
type Args struct {
	params []Param
	values []any
}

// bind resolves every declared parameter of m against req.
//
// Injected parameters never consume a positional slot. The positional cursor
// advances only when a value parameter is found, and any param left at the
// cursor afterwards is reported as too many parameters.
func bind(m Method, req *Request, resp *Response) (Args, error) {
	args := Args{params: m.Params, values: make([]any, len(m.Params))}
	cursor := 0
	for i, p := range m.Params {
		switch p.Kind {
		case ParamRequest:
			args.values[i] = req
		case ParamResponse:
			args.values[i] = resp
		case ParamObject:
			switch {
			case p.Type == requestType:
				args.values[i] = req
			case p.Type == responseType:
				args.values[i] = resp
			default:
				obj, ok := req.object(p.Type)
				if !ok {
					return Args{}, InvalidMethodError("Method definition is incorrect")
				}
				args.values[i] = obj
			}
		case ParamValue:
			key := p.Name
			if !req.named {
				key = strconv.Itoa(cursor)
			}
			if v, ok := req.params[key]; ok {
				args.values[i] = v
				cursor++
			} else if !p.Optional {
				return Args{}, InvalidMethodError(fmt.Sprintf("Undefined parameter %q", key))
			}
		default:
			return Args{}, InvalidMethodError("Method definition is incorrect")
		}
	}
	if cursor > 0 {
		if _, extra := req.params[strconv.Itoa(cursor)]; extra {
			return Args{}, InvalidMethodError("Too many parameters")
		}
	}
	return args, nil
}

// Len returns the number of declared parameters.
func (a Args) Len() int {
	return len(a.values)
}

// Has reports whether slot i was bound.
func (a Args) Has(i int) bool {
	return i >= 0 && i < len(a.values) && a.values[i] != nil
}

// Raw returns the JSON value bound to slot i, or nil if it is not a bound
// value parameter.
func (a Args) Raw(i int) json.RawMessage {
	if !a.Has(i) {
		return nil
	}
	raw, _ := a.values[i].(json.RawMessage)
	return raw
}

// Decode unmarshals value slot i into v. An omitted optional slot leaves v
// untouched, so callers set defaults beforehand. A value of the wrong shape is
// an InvalidParamError.
func (a Args) Decode(i int, v any) error {
	if !a.Has(i) {
		return nil
	}
	raw, ok := a.values[i].(json.RawMessage)
	if !ok {
		return fmt.Errorf("jsonrpc: argument %d is not a value parameter", i)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return InvalidParamErrorf("Invalid parameter %q", a.name(i))
	}
	return nil
}

// Int decodes slot i as an int.
func (a Args) Int(i int) (int, error) {
	var n int
	err := a.Decode(i, &n)
	return n, err
}

// String decodes slot i as a string.
func (a Args) String(i int) (string, error) {
	var s string
	err := a.Decode(i, &s)
	return s, err
}

func (a Args) name(i int) string {
	if i < len(a.params) && a.params[i].Name != "" {
		return a.params[i].Name
	}
	return strconv.Itoa(i)
}

// Arg returns injected slot i as T: the *Request, the *Response or a
// side-table object.
func Arg[T any](a Args, i int) (T, bool) {
	if !a.Has(i) {
		var zero T
		return zero, false
	}
	v, ok := a.values[i].(T)
	return v, ok
}
