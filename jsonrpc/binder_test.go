package jsonrpc

import (
	"errors"
	"net/http"
	"testing"
)

func mustParse(t *testing.T, body string) *Request {
	t.Helper()
	req, rpcErr := parse(t, http.MethodPost, "application/json", body)
	if rpcErr != nil {
		t.Fatalf("parse %s: %v", body, rpcErr)
	}
	return req
}

func TestBind(t *testing.T) {
	greet := Method{
		Name: "greet",
		Params: []Param{
			RequestParam("req"),
			ValueParam("name"),
			ObjectParam[*principal]("caller"),
			OptionalParam("greeting"),
		},
	}

	tests := []struct {
		name       string
		body       string
		withCaller bool
		wantErr    string
		wantName   string
		wantGreet  string
		wantHasOpt bool
	}{
		{name: "positional", body: `{"id":1,"method":"x.greet","params":["ada","hi"]}`, withCaller: true, wantName: "ada", wantGreet: "hi", wantHasOpt: true},
		{name: "positional without optional", body: `{"id":1,"method":"x.greet","params":["ada"]}`, withCaller: true, wantName: "ada", wantGreet: "hello"},
		{name: "named", body: `{"id":1,"method":"x.greet","params":{"greeting":"yo","name":"bob"}}`, withCaller: true, wantName: "bob", wantGreet: "yo", wantHasOpt: true},
		{name: "too many", body: `{"id":1,"method":"x.greet","params":["ada","hi","extra"]}`, withCaller: true, wantErr: "Too many parameters"},
		{name: "missing positional", body: `{"id":1,"method":"x.greet","params":[]}`, withCaller: true, wantErr: `Undefined parameter "0"`},
		{name: "missing named", body: `{"id":1,"method":"x.greet","params":{"greeting":"yo"}}`, withCaller: true, wantErr: `Undefined parameter "name"`},
		{name: "missing object", body: `{"id":1,"method":"x.greet","params":["ada"]}`, wantErr: "Method definition is incorrect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustParse(t, tt.body)
			if tt.withCaller {
				AddObject(req, &principal{name: "svc"})
			}
			resp := newResponse(req)
			args, err := bind(greet, req, resp)
			if tt.wantErr != "" {
				var rpcErr *JSONRPCError
				if !errors.As(err, &rpcErr) {
					t.Fatalf("got %v, want %q", err, tt.wantErr)
				}
				if rpcErr.Code != CodeMethodNotFound || rpcErr.Message != tt.wantErr {
					t.Errorf("got (%d, %q), want (%d, %q)", rpcErr.Code, rpcErr.Message, CodeMethodNotFound, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			if got, ok := Arg[*Request](args, 0); !ok || got != req {
				t.Error("request not injected")
			}
			if got, ok := Arg[*principal](args, 2); !ok || got.name != "svc" {
				t.Error("caller not injected")
			}
			name, err := args.String(1)
			if err != nil || name != tt.wantName {
				t.Errorf("name = %q, %v; want %q", name, err, tt.wantName)
			}
			greeting := "hello"
			if err := args.Decode(3, &greeting); err != nil {
				t.Fatal(err)
			}
			if greeting != tt.wantGreet {
				t.Errorf("greeting = %q, want %q", greeting, tt.wantGreet)
			}
			if args.Has(3) != tt.wantHasOpt {
				t.Errorf("Has(3) = %v, want %v", args.Has(3), tt.wantHasOpt)
			}
		})
	}
}

func TestBind_InjectionDoesNotConsumePosition(t *testing.T) {
	m := Method{Params: []Param{ResponseParam("resp"), ValueParam("a"), RequestParam("req"), ValueParam("b")}}
	req := mustParse(t, `{"id":1,"method":"x.y","params":[10,20]}`)
	resp := newResponse(req)

	args, err := bind(m, req, resp)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := args.Int(1)
	b, _ := args.Int(3)
	if a != 10 || b != 20 {
		t.Errorf("a, b = %d, %d", a, b)
	}
	if got, ok := Arg[*Response](args, 0); !ok || got != resp {
		t.Error("response not injected")
	}
}

func TestBind_ObjectParamOfRequestType(t *testing.T) {
	m := Method{Params: []Param{ObjectParam[*Request]("req")}}
	req := mustParse(t, `{"id":1,"method":"x.y","params":[]}`)
	args, err := bind(m, req, newResponse(req))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := Arg[*Request](args, 0); got != req {
		t.Error("request not injected for ObjectParam[*Request]")
	}
}

func TestBind_ExtraParamsWithNoValueParams(t *testing.T) {
	// Leftovers are only detected once at least one value was consumed.
	m := Method{Params: []Param{RequestParam("req")}}
	req := mustParse(t, `{"id":1,"method":"x.y","params":["unused"]}`)
	if _, err := bind(m, req, newResponse(req)); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestArgs_DecodeWrongType(t *testing.T) {
	m := Method{Params: []Param{ValueParam("user_id")}}
	req := mustParse(t, `{"id":1,"method":"x.y","params":{"user_id":"abc"}}`)
	args, err := bind(m, req, newResponse(req))
	if err != nil {
		t.Fatal(err)
	}
	_, err = args.Int(0)
	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidParams {
		t.Fatalf("got %v, want invalid params", err)
	}
	if rpcErr.Message != `Invalid parameter "user_id"` {
		t.Errorf("message = %q", rpcErr.Message)
	}
}
