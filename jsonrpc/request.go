package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// acceptedMediaTypes are the Content-Type values a request may carry.
var acceptedMediaTypes = []string{"application/json", "application/json-rpc"}

// Request is one parsed JSON-RPC call. It lives for a single dispatch; hooks
// may attach context objects to it before parameters are bound.
type Request struct {
	httpReq *http.Request
	id      json.RawMessage
	method  string
	raw     json.RawMessage
	keys    []string
	params  map[string]json.RawMessage
	named   bool
	objects map[reflect.Type]any
}

// ParseRequest validates the transport and decodes body into a Request.
// Failures are *JSONRPCError values of kind parse or invalid request.
func ParseRequest(r *http.Request, body []byte) (*Request, error) {
	req := &Request{}
	if err := req.parse(r, body); err != nil {
		return nil, err
	}
	return req, nil
}

func (req *Request) parse(r *http.Request, body []byte) error {
	req.httpReq = r
	if r == nil {
		return ParseError("Invalid HTTP request")
	}
	if r.Method != http.MethodPost {
		return ParseError("Invalid HTTP method. Allowed methods: " + http.MethodPost)
	}
	if !acceptedMediaType(r.Header.Get("Content-Type")) {
		return ParseError("Content-Type should be application/json")
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) || isEmptyJSON(body) {
		return ParseError("Invalid request body, should be valid json")
	}
	if body[0] != '{' {
		return InvalidRequestError("Invalid request body, should be an object")
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return ParseError("Invalid request body, should be valid json")
	}

	id, ok := env["id"]
	if !ok || isEmptyJSON(id) {
		return InvalidRequestError("Invalid request body, should include id")
	}
	rawMethod, ok := env["method"]
	if !ok || isEmptyJSON(rawMethod) {
		return InvalidRequestError("Invalid request body, should include method")
	}
	var method string
	if err := json.Unmarshal(rawMethod, &method); err != nil {
		return InvalidRequestError("Invalid request body, method should be a string")
	}
	params, ok := env["params"]
	if !ok || string(params) == "null" {
		return InvalidRequestError("Invalid request body, should include params")
	}
	keys, values, err := decodeParams(params)
	if err != nil {
		return InvalidRequestError("Invalid request body, params should be an array or an object")
	}

	req.id = id
	req.method = method
	req.raw = params
	req.keys = keys
	req.params = values
	req.named = len(keys) > 0 && keys[0] != "0"
	return nil
}

// decodeParams flattens params into keys in document order plus a lookup map.
// Array elements are keyed by their decimal index.
func decodeParams(raw json.RawMessage) ([]string, map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) > 0 && raw[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, nil, err
		}
		keys := make([]string, len(list))
		values := make(map[string]json.RawMessage, len(list))
		for i, v := range list {
			keys[i] = strconv.Itoa(i)
			values[keys[i]] = v
		}
		return keys, values, nil
	case len(raw) > 0 && raw[0] == '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, nil, err
		}
		var keys []string
		values := make(map[string]json.RawMessage)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, nil, errors.New("jsonrpc: non-string object key")
			}
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return nil, nil, err
			}
			if _, dup := values[key]; !dup {
				keys = append(keys, key)
			}
			values[key] = v
		}
		return keys, values, nil
	default:
		return nil, nil, errors.New("jsonrpc: params must be an array or an object")
	}
}

// isEmptyJSON reports whether raw is a falsy JSON value: null, false, 0, "",
// "0", [] or {}.
func isEmptyJSON(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == "" || t == "0"
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func acceptedMediaType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, accepted := range acceptedMediaTypes {
		if strings.EqualFold(mt, accepted) {
			return true
		}
	}
	return false
}

// HTTPRequest returns the transport request. It is set even when parsing failed.
func (req *Request) HTTPRequest() *http.Request {
	return req.httpReq
}

// ID returns the raw request id, or nil before a successful parse.
func (req *Request) ID() json.RawMessage {
	return req.id
}

// Method returns the dotted method name, or "" before a successful parse.
func (req *Request) Method() string {
	return req.method
}

// IsNamed reports whether params were sent as an object keyed by name.
func (req *Request) IsNamed() bool {
	return req.named
}

// ParamKeys returns the param keys in the order they were sent. Positional
// params are keyed "0", "1", ...
func (req *Request) ParamKeys() []string {
	return slices.Clone(req.keys)
}

// Param returns the raw value stored under key.
func (req *Request) Param(key string) (json.RawMessage, bool) {
	v, ok := req.params[key]
	return v, ok
}

// RawParams returns params exactly as received.
func (req *Request) RawParams() json.RawMessage {
	return req.raw
}

// AddObject attaches v to the request under its static type T, replacing any
// object of the same type. Methods receive it through ObjectParam[T].
func AddObject[T any](req *Request, v T) {
	if req.objects == nil {
		req.objects = make(map[reflect.Type]any)
	}
	req.objects[reflect.TypeFor[T]()] = v
}

// GetObject returns the object of type T attached to the request.
func GetObject[T any](req *Request) (T, bool) {
	v, ok := req.objects[reflect.TypeFor[T]()].(T)
	return v, ok
}

func (req *Request) object(t reflect.Type) (any, bool) {
	v, ok := req.objects[t]
	return v, ok
}
