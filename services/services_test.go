package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mnehpets/rpcgate/auth"
	"github.com/mnehpets/rpcgate/jsonrpc"
	"github.com/mnehpets/rpcgate/store"
)

type envelope struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t       *testing.T
	db      *store.DB
	d       *jsonrpc.Dispatcher
	system  *SystemAPIService
	project *auth.Project
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{t: t, db: db}
	reg := jsonrpc.NewRegistry()
	c := jsonrpc.NewContainer()
	svcs := All(db, reg)
	h.system = svcs[1].(*SystemAPIService)
	jsonrpc.Mount(reg, c, svcs...)

	attach := jsonrpc.PreDispatchFunc(func(_ context.Context, req *jsonrpc.Request) error {
		if h.project != nil {
			jsonrpc.AddObject(req, h.project)
		}
		return nil
	})
	h.d = jsonrpc.NewDispatcher(reg, c, jsonrpc.WithPreDispatch(attach))
	return h
}

func (h *harness) call(body string) envelope {
	h.t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	resp := h.d.Dispatch(r.Context(), r, []byte(body))

	var env envelope
	if err := json.Unmarshal(resp.Wire(), &env); err != nil {
		h.t.Fatalf("bad envelope: %v", err)
	}
	return env
}

func (h *harness) result(body string, v any) {
	h.t.Helper()
	env := h.call(body)
	if env.Error != nil {
		h.t.Fatalf("%s: error %d %q", body, env.Error.Code, env.Error.Message)
	}
	if err := json.Unmarshal(env.Result, v); err != nil {
		h.t.Fatalf("%s: result %s: %v", body, env.Result, err)
	}
}

func (h *harness) fails(body string, code int, message string) {
	h.t.Helper()
	env := h.call(body)
	if env.Error == nil {
		h.t.Fatalf("%s: expected error, got result %s", body, env.Result)
	}
	if env.Error.Code != code || env.Error.Message != message {
		h.t.Errorf("%s: got (%d, %q), want (%d, %q)", body, env.Error.Code, env.Error.Message, code, message)
	}
}

func TestUserAPIService(t *testing.T) {
	h := newHarness(t)

	h.fails(`{"id":1,"method":"user.get_profile","params":{"user_id":42}}`, jsonrpc.CodeInvalidParams, "User not found")
	h.fails(`{"id":1,"method":"user.get_profile","params":{"user_id":"x"}}`, jsonrpc.CodeInvalidParams, `Invalid parameter "user_id"`)
	h.fails(`{"id":1,"method":"user.get_profile","params":[0]}`, jsonrpc.CodeInvalidParams, "user_id must be a positive integer")
	h.fails(`{"id":1,"method":"user.get_profile","params":{}}`, jsonrpc.CodeMethodNotFound, `Undefined parameter "0"`)

	var u store.User
	h.result(`{"id":2,"method":"user.update_profile","params":{"user_id":42,"name":" Ada ","email":"ada@example.com"}}`, &u)
	if u.ID != 42 || u.Name != "Ada" || u.Email != "ada@example.com" {
		t.Errorf("created = %+v", u)
	}

	// Email omitted: kept.
	h.result(`{"id":3,"method":"user.update_profile","params":[42,"Ada Lovelace"]}`, &u)
	if u.Name != "Ada Lovelace" || u.Email != "ada@example.com" {
		t.Errorf("updated = %+v", u)
	}

	h.result(`{"id":4,"method":"user.get_profile","params":[42]}`, &u)
	if u.Name != "Ada Lovelace" {
		t.Errorf("fetched = %+v", u)
	}

	h.fails(`{"id":5,"method":"user.update_profile","params":[42,"  "]}`, jsonrpc.CodeInvalidParams, "Name must not be empty")
	h.fails(`{"id":6,"method":"user.update_profile","params":[42,"Ada","Ada <ada@example.com>"]}`, jsonrpc.CodeInvalidParams, `Invalid email "Ada <ada@example.com>"`)
	h.fails(`{"id":7,"method":"user.update_profile","params":[42,"Ada","a@b.c","extra"]}`, jsonrpc.CodeMethodNotFound, "Too many parameters")
}

func TestSystemAPIService(t *testing.T) {
	h := newHarness(t)
	h.system.now = func() time.Time {
		return time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("X", 3600))
	}

	var s string
	h.result(`{"id":1,"method":"system.ping","params":[]}`, &s)
	if s != "pong" {
		t.Errorf("ping = %q", s)
	}

	tests := []struct {
		params string
		want   string
	}{
		{`[]`, `"2026-10-18T08:30:00Z"`},
		{`{"format":"date"}`, `"2026-10-18"`},
		{`["RFC1123"]`, `"Sun, 18 Oct 2026 08:30:00 UTC"`},
		{`["unix"]`, `1792312200`},
	}
	for _, tt := range tests {
		env := h.call(`{"id":1,"method":"system.time","params":` + tt.params + `}`)
		if env.Error != nil || string(env.Result) != tt.want {
			t.Errorf("time %s = %s (%v), want %s", tt.params, env.Result, env.Error, tt.want)
		}
	}
	h.fails(`{"id":1,"method":"system.time","params":["iso"]}`, jsonrpc.CodeInvalidParams, `Unknown time format "iso"`)

	var methods []string
	h.result(`{"id":1,"method":"system.methods","params":[]}`, &methods)
	want := []string{
		"project.echo", "project.info",
		"system.methods", "system.ping", "system.time",
		"user.get_profile", "user.update_profile",
	}
	if !reflect.DeepEqual(methods, want) {
		t.Errorf("methods = %v, want %v", methods, want)
	}
}

func TestProjectAPIService(t *testing.T) {
	h := newHarness(t)

	h.fails(`{"id":1,"method":"project.info","params":[]}`, jsonrpc.CodeMethodNotFound, "Method definition is incorrect")

	h.project = &auth.Project{ID: 3, Code: "acme", Name: "Acme"}
	var p auth.Project
	h.result(`{"id":1,"method":"project.info","params":[]}`, &p)
	if p.Code != "acme" || p.Name != "Acme" || p.ID != 3 {
		t.Errorf("info = %+v", p)
	}

	var echo struct {
		RequestID json.RawMessage `json:"request_id"`
		Value     json.RawMessage `json:"value"`
	}
	h.result(`{"id":"abc","method":"project.echo","params":{"value":{"a": [1, 2]}}}`, &echo)
	if string(echo.RequestID) != `"abc"` || string(echo.Value) != `{"a":[1,2]}` {
		t.Errorf("echo = %s %s", echo.RequestID, echo.Value)
	}
}
