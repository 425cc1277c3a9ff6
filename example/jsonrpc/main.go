// Example jsonrpc serves a calculator over JSON-RPC without authentication
// or storage.
//
//	curl -s localhost:8080/rpc -H 'Content-Type: application/json' \
//	  -d '{"id":1,"method":"math.add","params":[2,3]}'
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/mnehpets/rpcgate/endpoint"
	"github.com/mnehpets/rpcgate/jsonrpc"
	"github.com/mnehpets/rpcgate/logging"
	"github.com/mnehpets/rpcgate/middleware"
)

type MathApiService struct{}

func (m *MathApiService) APIMethods() []jsonrpc.Method {
	return []jsonrpc.Method{
		jsonrpc.NewMethod("add", (*MathApiService).Add, jsonrpc.ValueParam("a"), jsonrpc.ValueParam("b")),
		jsonrpc.NewMethod("divide", (*MathApiService).Divide, jsonrpc.ValueParam("a"), jsonrpc.ValueParam("b")),
	}
}

func (m *MathApiService) Add(_ context.Context, args jsonrpc.Args) (any, error) {
	var a, b float64
	if err := args.Decode(0, &a); err != nil {
		return nil, err
	}
	if err := args.Decode(1, &b); err != nil {
		return nil, err
	}
	return a + b, nil
}

func (m *MathApiService) Divide(_ context.Context, args jsonrpc.Args) (any, error) {
	var a, b float64
	if err := args.Decode(0, &a); err != nil {
		return nil, err
	}
	if err := args.Decode(1, &b); err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, jsonrpc.InvalidParamError("Division by zero")
	}
	return a / b, nil
}

func main() {
	logger := logging.New(logging.Config{Level: logging.LevelDebug})

	reg := jsonrpc.NewRegistry()
	c := jsonrpc.NewContainer()
	jsonrpc.Mount(reg, c, &MathApiService{})
	d := jsonrpc.NewDispatcher(reg, c, jsonrpc.WithLogger(logger))

	http.Handle("/rpc", endpoint.Handler(d.Endpoint, middleware.NewRequestLogger(logger)))

	logger.Info("starting server", "addr", ":8080", "methods", reg.Methods())
	if err := http.ListenAndServe(":8080", nil); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
