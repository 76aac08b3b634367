// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverEndpoints(t *testing.T) {
	t.Parallel()

	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"issuer": "` + issuer + `",
			"authorization_endpoint": "` + issuer + `/authorize",
			"token_endpoint": "` + issuer + `/token",
			"jwks_uri": "` + issuer + `/jwks"
		}`))
	}))
	t.Cleanup(srv.Close)
	issuer = srv.URL

	doc, err := discoverEndpointsWithClient(t.Context(), issuer, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, issuer+"/jwks", doc.JWKSURI)
	assert.Equal(t, issuer, doc.Issuer)
}

func TestDiscoverEndpointsIssuerMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"issuer": "https://evil.example.com",
			"jwks_uri": "https://evil.example.com/jwks"
		}`))
	}))
	t.Cleanup(srv.Close)

	_, err := discoverEndpointsWithClient(t.Context(), srv.URL, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer mismatch")
}

func TestDiscoverEndpointsMissingJWKS(t *testing.T) {
	t.Parallel()

	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer": "` + issuer + `"}`))
	}))
	t.Cleanup(srv.Close)
	issuer = srv.URL

	_, err := discoverEndpointsWithClient(t.Context(), issuer, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing jwks_uri")
}

func TestDiscoverEndpointsRejectsPlainHTTPIssuer(t *testing.T) {
	t.Parallel()

	_, err := discoverEndpointsWithClient(t.Context(), "http://auth.example.com", http.DefaultClient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must use HTTPS")
}

func TestDiscoverEndpointsRejectsNonJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not a discovery document</html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := discoverEndpointsWithClient(t.Context(), srv.URL, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content-type")
}
