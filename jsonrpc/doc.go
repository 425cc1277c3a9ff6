// Package jsonrpc dispatches JSON-RPC 2.0 calls made over HTTP to registered
// service methods.
//
// # Services and methods
//
// A service declares the methods it exposes in a table:
//
//	type UserAPIService struct{ db *store.DB }
//
//	func (s *UserAPIService) APIMethods() []jsonrpc.Method {
//	    return []jsonrpc.Method{
//	        jsonrpc.NewMethod("getProfile", (*UserAPIService).GetProfile,
//	            jsonrpc.ValueParam("user_id")),
//	    }
//	}
//
//	func (s *UserAPIService) GetProfile(ctx context.Context, args jsonrpc.Args) (any, error) {
//	    id, err := args.Int(0)
//	    ...
//	}
//
// Methods are keyed "service.method": the service's type name without its
// "ApiService"/"APIService" suffix and the method name, both converted to
// snake case. The method above is called as "user.get_profile".
//
//	reg := jsonrpc.NewRegistry()
//	c := jsonrpc.NewContainer()
//	jsonrpc.Mount(reg, c, &UserAPIService{db: db})
//	d := jsonrpc.NewDispatcher(reg, c)
//	http.Handle("/api/v1/", endpoint.Handler(d.Endpoint))
//
// # Parameters
//
// Params may be sent as an array (positional) or an object (named). An
// object whose first key is "0" is treated as positional. Each declared
// Param is bound in order:
//
//   - RequestParam and ResponseParam receive the live *Request/*Response.
//   - ObjectParam[T] receives the object of type T attached by a hook with
//     AddObject; a missing object is a "Method definition is incorrect" error.
//   - ValueParam and OptionalParam read the next positional value, or the
//     value with the param's name. Injected params do not use up a position.
//
// Unbound required values and leftover positional values are reported with
// code -32601.
//
// # Hooks
//
// PreDispatchHooks run after parsing and may attach objects or reject the
// call. PostDispatchHooks run for every call, including failed ones, and see
// the final Response before it is written.
//
// # Errors
//
// Methods and hooks return *JSONRPCError for caller-visible failures:
//
//	return nil, jsonrpc.InvalidParamError("User not found")
//
// Any other error, or a panic, is logged and answered with code -32603 and
// the message "Internal error".
package jsonrpc
