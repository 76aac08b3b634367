// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oidc provides OpenID Connect discovery for the trusted issuer.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/networking"
	"github.com/briefdesk/briefdesk/pkg/versions"
)

// DiscoveryDocument represents the OIDC discovery document structure.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// httpClient interface for dependency injection (private for testing)
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DiscoverEndpoints discovers the issuer's endpoints from its well-known
// configuration. Only called at startup; per-request validation never
// touches the network beyond the cached key set.
func DiscoverEndpoints(ctx context.Context, issuer, caCertPath string, allowPrivateIP bool) (*DiscoveryDocument, error) {
	client, err := networking.NewHttpClientBuilder().
		WithCABundle(caCertPath).
		WithPrivateIPs(allowPrivateIP).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return discoverEndpointsWithClient(ctx, issuer, client)
}

func discoverEndpointsWithClient(ctx context.Context, issuer string, client httpClient) (*DiscoveryDocument, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	// Require HTTPS except for localhost during development.
	if issuerURL.Scheme != "https" && !networking.IsLocalhost(issuerURL.Host) {
		return nil, fmt.Errorf("issuer must use HTTPS: %s", issuer)
	}

	// Handles tenant/realm paths like /realms/briefdesk.
	base := issuerURL.Scheme + "://" + issuerURL.Host
	tenant := strings.Trim(issuerURL.EscapedPath(), "/")
	wellKnownURL := base + path.Join("/", tenant, ".well-known", "openid-configuration")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", versions.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", wellKnownURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", wellKnownURL, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("%s: unexpected content-type %q", wellKnownURL, ct)
	}

	// Limit response size to prevent DoS
	const maxResponseSize = 1024 * 1024 // 1MB
	var doc DiscoveryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: unexpected response: %w", wellKnownURL, err)
	}

	if err := validateDocument(&doc, issuer); err != nil {
		return nil, fmt.Errorf("%s: invalid metadata: %w", wellKnownURL, err)
	}
	return &doc, nil
}

// validateDocument validates the OIDC discovery document.
func validateDocument(doc *DiscoveryDocument, expectedIssuer string) error {
	if doc.Issuer == "" {
		return fmt.Errorf("missing issuer")
	}

	if doc.Issuer != expectedIssuer {
		return fmt.Errorf("issuer mismatch: expected %s, got %s", expectedIssuer, doc.Issuer)
	}

	if doc.JWKSURI == "" {
		return fmt.Errorf("missing jwks_uri")
	}

	endpoints := map[string]string{
		"authorization_endpoint": doc.AuthorizationEndpoint,
		"token_endpoint":         doc.TokenEndpoint,
		"userinfo_endpoint":      doc.UserinfoEndpoint,
		"jwks_uri":               doc.JWKSURI,
	}
	for name, endpoint := range endpoints {
		if endpoint != "" {
			if err := networking.ValidateEndpointURL(endpoint); err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
		}
	}
	return nil
}
