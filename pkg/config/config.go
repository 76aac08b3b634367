// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the briefdesk service configuration.
//
// Configuration is resolved through viper with the usual precedence:
// command-line flags, then BRIEFDESK_* environment variables, then an
// optional config file, then defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for values that are safe to leave unset.
const (
	DefaultAddress           = "127.0.0.1:8080"
	DefaultSessionCookieName = "briefdesk_session"
	DefaultProxyIdentity     = "X-Briefdesk-Identity"
	DefaultProxyClaims       = "X-Briefdesk-Claims"
	DefaultLoginPath         = "/login"
	DefaultDBRole            = "briefdesk_anon"
	DefaultRequestTimeout    = 30 * time.Second
)

// OIDC holds the trusted-issuer configuration used for token validation.
type OIDC struct {
	// Issuer is the OIDC issuer URL (e.g. https://auth.example.com/realms/briefdesk)
	Issuer string

	// Audience is the expected audience for tokens.
	Audience string

	// ClientID is the OAuth client ID of this backend.
	ClientID string

	// JWKSURL overrides discovery of the key set URL from the issuer.
	JWKSURL string

	// CACertPath is an optional CA bundle for reaching the issuer.
	CACertPath string

	// AllowPrivateIP permits issuer/JWKS endpoints on private addresses.
	// Only intended for development against a local identity provider.
	AllowPrivateIP bool
}

// Config is the full service configuration.
type Config struct {
	// Address is the host:port the HTTP server listens on.
	Address string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string

	// DefaultDBRole is the unprivileged role every pooled connection
	// reverts to between requests.
	DefaultDBRole string

	OIDC OIDC

	// SessionCookieName is the cookie carrying the legacy session id.
	SessionCookieName string

	// TrustProxyHeaders enables the proxy-injected identity headers as a
	// credential source. Only enable when a trusted load balancer strips
	// these headers from client traffic.
	TrustProxyHeaders bool

	// ProxyIdentityHeader and ProxyClaimsHeader are the header names the
	// load balancer uses to assert the caller's identity.
	ProxyIdentityHeader string
	ProxyClaimsHeader   string

	// LoginPath is where unauthenticated browser requests are redirected.
	LoginPath string

	// RequestTimeout bounds the processing of a single request, including
	// identity-store lookups.
	RequestTimeout time.Duration

	// DevMode enables the synthetic-identity override. Must never be set
	// in production; serve refuses it unless --dev is passed explicitly.
	DevMode bool
}

// SetDefaults registers the configuration defaults with viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("db.default-role", DefaultDBRole)
	v.SetDefault("session.cookie-name", DefaultSessionCookieName)
	v.SetDefault("proxy.identity-header", DefaultProxyIdentity)
	v.SetDefault("proxy.claims-header", DefaultProxyClaims)
	v.SetDefault("login-path", DefaultLoginPath)
	v.SetDefault("request-timeout", DefaultRequestTimeout)
}

// Load reads the configuration from the given viper instance.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("BRIEFDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Address:             v.GetString("address"),
		DatabaseURL:         v.GetString("db.url"),
		DefaultDBRole:       v.GetString("db.default-role"),
		SessionCookieName:   v.GetString("session.cookie-name"),
		TrustProxyHeaders:   v.GetBool("proxy.trust-headers"),
		ProxyIdentityHeader: v.GetString("proxy.identity-header"),
		ProxyClaimsHeader:   v.GetString("proxy.claims-header"),
		LoginPath:           v.GetString("login-path"),
		RequestTimeout:      v.GetDuration("request-timeout"),
		DevMode:             v.GetBool("dev"),
		OIDC: OIDC{
			Issuer:         v.GetString("oidc.issuer"),
			Audience:       v.GetString("oidc.audience"),
			ClientID:       v.GetString("oidc.client-id"),
			JWKSURL:        v.GetString("oidc.jwks-url"),
			CACertPath:     v.GetString("oidc.ca-cert"),
			AllowPrivateIP: v.GetBool("oidc.allow-private-ip"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious misconfigurations.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("db.url is required")
	}
	if c.OIDC.Issuer == "" && c.OIDC.JWKSURL == "" && !c.DevMode {
		return fmt.Errorf("either oidc.issuer or oidc.jwks-url must be set")
	}
	if c.DefaultDBRole == "" {
		return fmt.Errorf("db.default-role must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive")
	}
	return nil
}
