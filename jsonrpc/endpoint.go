package jsonrpc

import (
	"net/http"

	"github.com/mnehpets/rpcgate/endpoint"
)

// HeaderAPIEndpoint carries the route pattern that served the call.
const HeaderAPIEndpoint = "X-Api-Endpoint"

// rpcParams holds the raw body. It is parsed by the dispatcher rather than
// the endpoint decoder, since malformed JSON must become a JSON-RPC parse
// error instead of an HTTP 400.
type rpcParams struct {
	Body []byte `body:"" maxLength:"1048576"`
}

// Endpoint serves JSON-RPC calls. Pass it to endpoint.Handler:
//
//	mux.Handle("/api/v1/", endpoint.Handler(d.Endpoint, processors...))
//
// Every call, successful or not, is answered with HTTP 200 and a JSON-RPC
// envelope. The exception is a body over 1 MiB: the endpoint decoder rejects
// it with HTTP 413 before Dispatch runs, so post-dispatch hooks never see it.
func (d *Dispatcher) Endpoint(_ http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	resp := d.Dispatch(r.Context(), r, params.Body)
	if r.Pattern != "" {
		resp.Header().Set(HeaderAPIEndpoint, r.Pattern)
	}
	body := resp.Wire()
	return &endpoint.BytesRenderer{
		ContentType: "application/json",
		Header:      resp.Header(),
		Body:        body,
	}, nil
}
