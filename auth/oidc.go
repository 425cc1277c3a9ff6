package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DefaultProjectClaim is the JWT claim holding the project code.
const DefaultProjectClaim = "project"

// OIDCAuthenticator accepts JWTs issued by an OpenID Connect provider. The
// token's project claim names the calling project by code.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	projects ProjectStore
	claim    string
}

type oidcSettings struct {
	claim  string
	config oidc.Config
}

// OIDCOption configures an OIDCAuthenticator.
type OIDCOption func(*oidcSettings)

// WithProjectClaim reads the project code from claim instead of "project".
func WithProjectClaim(claim string) OIDCOption {
	return func(s *oidcSettings) {
		if claim != "" {
			s.claim = claim
		}
	}
}

// WithSkipIssuerCheck disables issuer validation in the token verifier.
// Use this for providers that issue tokens with a per-tenant issuer.
func WithSkipIssuerCheck() OIDCOption {
	return func(s *oidcSettings) {
		s.config.SkipIssuerCheck = true
	}
}

func newSettings(opts []OIDCOption) *oidcSettings {
	s := &oidcSettings{claim: DefaultProjectClaim}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOIDCAuthenticator creates an OIDCAuthenticator around an existing
// verifier. Options that configure the verifier are ignored.
func NewOIDCAuthenticator(verifier *oidc.IDTokenVerifier, projects ProjectStore, opts ...OIDCOption) *OIDCAuthenticator {
	return &OIDCAuthenticator{
		verifier: verifier,
		projects: projects,
		claim:    newSettings(opts).claim,
	}
}

// DiscoverOIDC queries issuer's discovery document and returns an
// authenticator that accepts tokens whose audience is clientID.
func DiscoverOIDC(ctx context.Context, issuer, clientID string, projects ProjectStore, opts ...OIDCOption) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", issuer, err)
	}
	s := newSettings(opts)
	s.config.ClientID = clientID
	return &OIDCAuthenticator{
		verifier: provider.Verifier(&s.config),
		projects: projects,
		claim:    s.claim,
	}, nil
}

// Authenticate implements Authenticator.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, token string) (*Project, error) {
	idToken, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCredential, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCredential, err)
	}
	code, _ := claims[a.claim].(string)
	if code == "" {
		return nil, fmt.Errorf("%w: token has no %q claim", ErrUnknownCredential, a.claim)
	}

	p, err := a.projects.ProjectByCode(ctx, code)
	if errors.Is(err, ErrProjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCredential, code)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup project %q: %w", code, err)
	}
	return p, nil
}

var _ Authenticator = (*OIDCAuthenticator)(nil)
