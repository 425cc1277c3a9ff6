package services

import (
	"context"
	"strings"
	"time"

	"github.com/mnehpets/rpcgate/jsonrpc"
)

// SystemAPIService answers health and introspection calls.
type SystemAPIService struct {
	reg *jsonrpc.Registry
	now func() time.Time
}

func NewSystemAPIService(reg *jsonrpc.Registry) *SystemAPIService {
	return &SystemAPIService{reg: reg, now: time.Now}
}

func (s *SystemAPIService) APIMethods() []jsonrpc.Method {
	return []jsonrpc.Method{
		jsonrpc.NewMethod("ping", (*SystemAPIService).Ping),
		jsonrpc.NewMethod("time", (*SystemAPIService).Time, jsonrpc.OptionalParam("format")),
		jsonrpc.NewMethod("methods", (*SystemAPIService).Methods),
	}
}

func (s *SystemAPIService) Ping(context.Context, jsonrpc.Args) (any, error) {
	return "pong", nil
}

var timeFormats = map[string]string{
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"rfc1123":     time.RFC1123,
	"date":        time.DateOnly,
	"datetime":    time.DateTime,
}

// Time returns the server time in UTC. format is one of the names in
// timeFormats, or "unix" / "unix_ms" for a number. It defaults to rfc3339.
func (s *SystemAPIService) Time(_ context.Context, args jsonrpc.Args) (any, error) {
	format := "rfc3339"
	if err := args.Decode(0, &format); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	switch f := strings.ToLower(format); f {
	case "unix":
		return now.Unix(), nil
	case "unix_ms":
		return now.UnixMilli(), nil
	default:
		layout, ok := timeFormats[f]
		if !ok {
			return nil, jsonrpc.InvalidParamErrorf("Unknown time format %q", format)
		}
		return now.Format(layout), nil
	}
}

// Methods lists every callable method name.
func (s *SystemAPIService) Methods(context.Context, jsonrpc.Args) (any, error) {
	return s.reg.Methods(), nil
}
