// Package auth identifies the calling project from a bearer credential and
// attaches it to JSON-RPC requests.
//
// Two credential kinds are supported: opaque API keys issued by rpcgate
// (KeyAuthenticator) and JWTs from an OpenID Connect provider
// (OIDCAuthenticator). BearerHook plugs either into a jsonrpc.Dispatcher.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mnehpets/rpcgate/jsonrpc"
)

var (
	// ErrUnknownCredential means the bearer token does not identify a project.
	ErrUnknownCredential = errors.New("auth: unknown credential")

	// ErrProjectNotFound is returned by a ProjectStore with no matching project.
	ErrProjectNotFound = errors.New("auth: project not found")
)

// Project is an API client. Services receive it through
// jsonrpc.ObjectParam[*auth.Project].
type Project struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectStore looks up projects.
type ProjectStore interface {
	ProjectByKeyHash(ctx context.Context, hash string) (*Project, error)
	ProjectByCode(ctx context.Context, code string) (*Project, error)
}

// Authenticator resolves a bearer token to a project. It returns an error
// wrapping ErrUnknownCredential when the token is well-formed but matches
// nothing; other errors are treated as internal failures.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Project, error)
}

// AuthenticatorFunc adapts a function to an Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*Project, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*Project, error) {
	return f(ctx, token)
}

const bearerPrefix = "Bearer "

// BearerHook returns a pre-dispatch hook that requires an
// "Authorization: Bearer <token>" header and attaches the authenticated
// *Project to the request.
func BearerHook(authn Authenticator) jsonrpc.PreDispatchHook {
	return jsonrpc.PreDispatchFunc(func(ctx context.Context, req *jsonrpc.Request) error {
		header := req.HTTPRequest().Header.Get("Authorization")
		if header == "" {
			return jsonrpc.InvalidRequestError("Authorization header is required")
		}
		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok {
			return jsonrpc.InvalidRequestError("Only Bearer authentication accepted")
		}

		p, err := authn.Authenticate(ctx, strings.TrimSpace(token))
		if errors.Is(err, ErrUnknownCredential) {
			return jsonrpc.InvalidRequestError("Project not found")
		}
		if err != nil {
			return err
		}
		jsonrpc.AddObject(req, p)
		return nil
	})
}

// ProjectOf returns the project attached by BearerHook, if any.
func ProjectOf(req *jsonrpc.Request) (*Project, bool) {
	p, ok := jsonrpc.GetObject[*Project](req)
	return p, ok && p != nil
}
