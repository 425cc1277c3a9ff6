package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnehpets/rpcgate/audit"
	"github.com/mnehpets/rpcgate/auth"
	"github.com/mnehpets/rpcgate/config"
	"github.com/mnehpets/rpcgate/endpoint"
	"github.com/mnehpets/rpcgate/jsonrpc"
	"github.com/mnehpets/rpcgate/logging"
	"github.com/mnehpets/rpcgate/middleware"
	"github.com/mnehpets/rpcgate/services"
	"github.com/mnehpets/rpcgate/store"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the gateway until interrupted.
type ServeCmd struct {
	Listen string `help:"Override the listen address."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	logger := logging.New(cfg.Logging())

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := newHandler(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("rpcgate listening", "addr", cfg.Listen, "route", cfg.Route, "version", version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newHandler assembles the gateway: services, dispatcher hooks, endpoint
// processors and routes.
func newHandler(ctx context.Context, cfg *config.Config, db *store.DB, logger *slog.Logger) (http.Handler, error) {
	authn, err := newAuthenticator(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	reg := jsonrpc.NewRegistry()
	c := jsonrpc.NewContainer()
	jsonrpc.Mount(reg, c, services.All(db, reg)...)

	opts := []jsonrpc.Option{jsonrpc.WithLogger(logger)}
	if rl := cfg.RateLimit; rl.AddressRPS > 0 {
		// Ahead of BearerHook so failed credential attempts are throttled.
		opts = append(opts, jsonrpc.WithPreDispatch(auth.NewRateLimiter(rl.AddressRPS, rl.AddressBurst, auth.KeyByAddress())))
	}
	opts = append(opts, jsonrpc.WithPreDispatch(auth.BearerHook(authn)))
	if rl := cfg.RateLimit; rl.RPS > 0 {
		opts = append(opts, jsonrpc.WithPreDispatch(auth.NewRateLimiter(rl.RPS, rl.Burst)))
	}
	switch cfg.Audit.Sink {
	case config.SinkSQLite:
		opts = append(opts, jsonrpc.WithPostDispatch(audit.Hook(db, audit.WithMaxParamLength(cfg.Audit.MaxParamLength))))
	case config.SinkLog:
		opts = append(opts, jsonrpc.WithPostDispatch(audit.Hook(audit.NewLogSink(logger), audit.WithMaxParamLength(cfg.Audit.MaxParamLength))))
	}
	d := jsonrpc.NewDispatcher(reg, c, opts...)

	processors := []endpoint.Processor{
		middleware.NewRequestLogger(logger),
		middleware.NewAPIHeaders(middleware.WithAllowedOrigins(cfg.CORS.AllowedOrigins...)),
	}

	mux := http.NewServeMux()
	// No method in the pattern: other verbs reach the dispatcher and get a
	// JSON-RPC parse error instead of a bare 405.
	mux.Handle(cfg.Route, endpoint.Handler(d.Endpoint, processors...).WithLogger(logger))
	mux.Handle("GET /healthz", endpoint.Handler(health(db)).WithLogger(logger))
	return mux, nil
}

func newAuthenticator(ctx context.Context, cfg *config.Config, db *store.DB) (auth.Authenticator, error) {
	var keys, tokens auth.Authenticator
	if cfg.Auth.KeySecret != "" {
		keys = auth.NewKeyAuthenticator([]byte(cfg.Auth.KeySecret), db)
	}
	if o := cfg.Auth.OIDC; o.Issuer != "" {
		a, err := auth.DiscoverOIDC(ctx, o.Issuer, o.ClientID, db, auth.WithProjectClaim(o.ProjectClaim))
		if err != nil {
			return nil, err
		}
		tokens = a
	}

	switch {
	case keys != nil && tokens != nil:
		return auth.ByPrefix(keys, tokens), nil
	case keys != nil:
		return keys, nil
	case tokens != nil:
		return tokens, nil
	}
	return nil, fmt.Errorf("no authentication configured: set auth.key_secret or auth.oidc.issuer")
}

type healthStatus struct {
	Status string `json:"status"`
}

func health(db *store.DB) endpoint.EndpointFunc[struct{}] {
	return func(_ http.ResponseWriter, r *http.Request, _ struct{}) (endpoint.Renderer, error) {
		if err := db.Ping(r.Context()); err != nil {
			return nil, endpoint.Error(http.StatusServiceUnavailable, "database unavailable", err)
		}
		return &endpoint.JSONRenderer{Value: healthStatus{Status: "ok"}}, nil
	}
}
