package services

import (
	"context"
	"encoding/json"

	"github.com/mnehpets/rpcgate/auth"
	"github.com/mnehpets/rpcgate/jsonrpc"
)

// ProjectAPIService lets a caller inspect its own credentials.
type ProjectAPIService struct{}

func (s *ProjectAPIService) APIMethods() []jsonrpc.Method {
	return []jsonrpc.Method{
		jsonrpc.NewMethod("info", (*ProjectAPIService).Info,
			jsonrpc.ObjectParam[*auth.Project]("project"),
		),
		jsonrpc.NewMethod("echo", (*ProjectAPIService).Echo,
			jsonrpc.RequestParam("request"),
			jsonrpc.ValueParam("value"),
		),
	}
}

// Info returns the calling project.
func (s *ProjectAPIService) Info(_ context.Context, args jsonrpc.Args) (any, error) {
	p, _ := jsonrpc.Arg[*auth.Project](args, 0)
	return p, nil
}

type echoResult struct {
	RequestID json.RawMessage `json:"request_id"`
	Value     json.RawMessage `json:"value"`
}

// Echo returns value unchanged along with the request id.
func (s *ProjectAPIService) Echo(_ context.Context, args jsonrpc.Args) (any, error) {
	req, _ := jsonrpc.Arg[*jsonrpc.Request](args, 0)
	return echoResult{RequestID: req.ID(), Value: args.Raw(1)}, nil
}
