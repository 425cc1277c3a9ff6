package jsonrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// HeaderAPITime carries the time from response construction to finalization.
const HeaderAPITime = "X-Api-Time"

// Response accumulates the outcome of one call. The elapsed time runs from
// construction until Wire is first called.
type Response struct {
	req    *Request
	start  time.Time
	header http.Header

	result     any
	resultJSON json.RawMessage
	err        *JSONRPCError

	once    sync.Once
	elapsed time.Duration
	wire    []byte
	done    bool
}

func newResponse(req *Request) *Response {
	return &Response{
		req:    req,
		start:  time.Now(),
		header: make(http.Header),
	}
}

// Request returns the request this response answers.
func (resp *Response) Request() *Request {
	return resp.req
}

// Header holds extra HTTP headers written with the response. Post-dispatch
// hooks use it to stamp observability headers.
func (resp *Response) Header() http.Header {
	return resp.header
}

// SetResult records a successful result. It fails if v cannot be encoded as JSON.
func (resp *Response) SetResult(v any) error {
	raw, err := encodeJSON(v)
	if err != nil {
		return err
	}
	resp.result = v
	resp.resultJSON = raw
	return nil
}

// SetError records err. Once set, Result reports nil.
func (resp *Response) SetError(err *JSONRPCError) {
	resp.err = &JSONRPCError{Code: err.Code, Message: err.Message}
}

// Result returns the recorded result, or nil if an error was set.
func (resp *Response) Result() any {
	if resp.err != nil {
		return nil
	}
	return resp.result
}

// ResultJSON returns the encoded result, or nil if an error was set.
func (resp *Response) ResultJSON() json.RawMessage {
	if resp.err != nil {
		return nil
	}
	return resp.resultJSON
}

// Error returns the recorded error, if any.
func (resp *Response) Error() *JSONRPCError {
	return resp.err
}

// Duration returns the elapsed time, frozen once the response is finalized.
func (resp *Response) Duration() time.Duration {
	if resp.done {
		return resp.elapsed
	}
	return time.Since(resp.start)
}

type successEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type errorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *JSONRPCError   `json:"error"`
}

// Wire finalizes the response and returns its JSON encoding. The first call
// stops the clock and sets the X-Api-Time header; later calls return the same
// bytes.
func (resp *Response) Wire() []byte {
	resp.once.Do(resp.finalize)
	return resp.wire
}

func (resp *Response) finalize() {
	resp.elapsed = time.Since(resp.start)
	resp.done = true

	id := json.RawMessage("null")
	if resp.req != nil && resp.req.id != nil {
		id = resp.req.id
	}

	var v any
	if resp.err != nil {
		v = errorEnvelope{JSONRPC: "2.0", ID: id, Error: resp.err}
	} else {
		result := resp.resultJSON
		if result == nil {
			result = json.RawMessage("null")
		}
		v = successEnvelope{JSONRPC: "2.0", ID: id, Result: result}
	}
	// Both envelopes hold only pre-validated raw JSON, strings and ints.
	resp.wire, _ = encodeJSON(v)
	resp.wire = append(resp.wire, '\n')
	resp.header.Set(HeaderAPITime, FormatMillis(resp.elapsed))
}

// FormatMillis renders d as fractional milliseconds, e.g. "12.5".
func FormatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', -1, 64)
}

// encodeJSON marshals v without escaping HTML characters.
func encodeJSON(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
