// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefdesk/briefdesk/pkg/api"
	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/auth/credential"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	authmw "github.com/briefdesk/briefdesk/pkg/auth/middleware"
	"github.com/briefdesk/briefdesk/pkg/auth/policy"
	"github.com/briefdesk/briefdesk/pkg/auth/session"
	"github.com/briefdesk/briefdesk/pkg/auth/token"
	"github.com/briefdesk/briefdesk/pkg/config"
	"github.com/briefdesk/briefdesk/pkg/db"
	"github.com/briefdesk/briefdesk/pkg/logger"
	"github.com/briefdesk/briefdesk/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BriefDesk backend server",
	Long: `Start the BriefDesk backend server. The server waits for Postgres to
become reachable, then listens for HTTP traffic until interrupted.`,
	RunE: runServe,
}

const (
	dbWaitMaxTries = 10
	dbPingTimeout  = 5 * time.Second
)

func init() {
	flags := serveCmd.Flags()
	flags.String("address", config.DefaultAddress, "Address to listen on")
	flags.String("db-url", "", "Postgres connection string")
	flags.String("oidc-issuer", "", "OIDC issuer URL")
	flags.String("oidc-audience", "", "Expected token audience")
	flags.String("oidc-client-id", "", "OAuth client ID of this backend")
	flags.String("oidc-jwks-url", "", "JWKS URL (overrides discovery from the issuer)")
	flags.Bool("trust-proxy-headers", false, "Trust load-balancer identity headers")
	flags.Bool("dev", false, "Enable development mode (synthetic identity override)")

	for flag, key := range map[string]string{
		"address":             "address",
		"db-url":              "db.url",
		"oidc-issuer":         "oidc.issuer",
		"oidc-audience":       "oidc.audience",
		"oidc-client-id":      "oidc.client-id",
		"oidc-jwks-url":       "oidc.jwks-url",
		"trust-proxy-headers": "proxy.trust-headers",
		"dev":                 "dev",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", flag, err)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.DevMode {
		logger.Warn("development mode enabled, synthetic identities are accepted")
	}

	metrics := telemetry.NewMetrics()

	pool, err := db.Open(cfg.DatabaseURL, cfg.DefaultDBRole, metrics)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := waitForDatabase(ctx, pool); err != nil {
		return fmt.Errorf("database never became reachable: %w", err)
	}
	logger.Info("database is reachable")

	validator, err := newTokenValidator(ctx, cfg)
	if err != nil {
		return err
	}

	resolver := auth.NewResolver(
		&credential.Extractor{
			CookieName:        cfg.SessionCookieName,
			IdentityHeader:    cfg.ProxyIdentityHeader,
			ClaimsHeader:      cfg.ProxyClaimsHeader,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
			AllowDevOverride:  cfg.DevMode,
		},
		validator,
		mustIdentityStore(pool),
		mustSessionStore(pool),
	)

	authenticator := authmw.NewAuthenticator(
		resolver,
		policy.Default(),
		authmw.NewResponder(cfg.LoginPath),
		metrics,
	)

	serverCfg := api.ServerConfig{
		Address:        cfg.Address,
		RequestTimeout: cfg.RequestTimeout,
		LoginPath:      cfg.LoginPath,
	}
	router := api.NewRouter(serverCfg, authenticator, pool, metrics)

	return api.Serve(ctx, serverCfg, router)
}

// newTokenValidator builds the token validator, or returns nil in dev mode
// without an issuer. The interface return keeps the nil untyped so the
// resolver's nil check holds; a nil validator rejects bearer and proxy
// credentials as recoverable failures.
func newTokenValidator(ctx context.Context, cfg *config.Config) (auth.TokenValidator, error) {
	if cfg.OIDC.Issuer == "" && cfg.OIDC.JWKSURL == "" {
		return nil, nil
	}

	validator, err := token.NewValidator(ctx, token.ValidatorConfig{
		Issuer:         cfg.OIDC.Issuer,
		Audience:       cfg.OIDC.Audience,
		ClientID:       cfg.OIDC.ClientID,
		JWKSURL:        cfg.OIDC.JWKSURL,
		CACertPath:     cfg.OIDC.CACertPath,
		AllowPrivateIP: cfg.OIDC.AllowPrivateIP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}
	return validator, nil
}

func mustIdentityStore(pool *db.Pool) identity.Store {
	store, err := identity.NewPostgresStore(pool.DB())
	if err != nil {
		logger.Panicf("failed to create identity store: %v", err)
	}
	return store
}

func mustSessionStore(pool *db.Pool) session.Store {
	store, err := session.NewPostgresStore(pool.DB())
	if err != nil {
		logger.Panicf("failed to create session store: %v", err)
	}
	return store
}

// waitForDatabase pings Postgres with capped exponential backoff until it
// answers or the retry budget runs out.
func waitForDatabase(ctx context.Context, pool *db.Pool) error {
	ping := func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			logger.Infof("waiting for database: %v", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(dbWaitMaxTries),
	)
	return err
}
