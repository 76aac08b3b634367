// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/auth/credential"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	"github.com/briefdesk/briefdesk/pkg/auth/policy"
	"github.com/briefdesk/briefdesk/pkg/auth/session"
	"github.com/briefdesk/briefdesk/pkg/auth/token"
	"github.com/briefdesk/briefdesk/pkg/telemetry"
)

// fakeValidator maps bearer tokens to canned outcomes.
type fakeValidator struct {
	tokens map[string]fakeOutcome
}

type fakeOutcome struct {
	subject string
	err     error
}

func (f *fakeValidator) ValidateToken(_ context.Context, tokenString string) (*token.ValidatedClaims, error) {
	out, ok := f.tokens[tokenString]
	if !ok {
		return nil, token.ErrMalformedToken
	}
	if out.err != nil {
		return nil, out.err
	}
	return &token.ValidatedClaims{Subject: out.subject}, nil
}

func (f *fakeValidator) ValidateProxyClaims(_ context.Context, username, _ string) (*token.ValidatedClaims, error) {
	return &token.ValidatedClaims{Subject: username}, nil
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()

	validator := &fakeValidator{tokens: map[string]fakeOutcome{
		"customer-token": {subject: "alice@example.com"},
		"staff-token":    {subject: "bob@example.com"},
		"admin-token":    {subject: "admin@example.com"},
		"ghost-token":    {subject: "ghost@example.com"},
		"expired-token":  {err: token.ErrTokenExpired},
	}}

	identities := identity.NewMemoryStore(
		&identity.Identity{ID: uuid.New(), Username: "alice@example.com", Role: identity.RoleCustomer},
		&identity.Identity{ID: uuid.New(), Username: "bob@example.com", Role: identity.RoleStaff},
		&identity.Identity{ID: uuid.New(), Username: "admin@example.com", Role: identity.RoleAdmin},
	)

	extractor := &credential.Extractor{CookieName: "briefdesk_session"}
	resolver := auth.NewResolver(extractor, validator, identities, session.NewMemoryStore())

	return NewAuthenticator(resolver, policy.Default(), NewResponder("/login"), telemetry.NewMetrics())
}

// echoIdentityHandler records whether an identity reached the handler.
func echoIdentityHandler(sawIdentity *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ri, ok := auth.RequestIdentityFromContext(r.Context()); ok {
			*sawIdentity = ri.Identity.Username
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorRouting(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		path       string
		bearer     string
		accept     string
		wantStatus int
		wantBody   string
		wantUser   string
	}{
		{
			name:       "public_route_anonymous",
			path:       "/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "api_route_anonymous",
			path:       "/api/v1/me",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"message":"authentication required"}`,
		},
		{
			name:       "api_route_customer",
			path:       "/api/v1/matters",
			bearer:     "customer-token",
			wantStatus: http.StatusOK,
			wantUser:   "alice@example.com",
		},
		{
			name:       "api_route_expired_token",
			path:       "/api/v1/me",
			bearer:     "expired-token",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"message":"authentication required"}`,
		},
		{
			name:       "api_route_unknown_subject",
			path:       "/api/v1/me",
			bearer:     "ghost-token",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"message":"authentication required"}`,
		},
		{
			name:       "admin_route_staff",
			path:       "/admin/users",
			bearer:     "staff-token",
			wantStatus: http.StatusForbidden,
			wantBody:   `{"message":"insufficient role"}`,
		},
		{
			name:       "admin_route_admin",
			path:       "/admin/users",
			bearer:     "admin-token",
			wantStatus: http.StatusOK,
			wantUser:   "admin@example.com",
		},
		{
			name:       "browser_redirects_to_login",
			path:       "/app/matters",
			accept:     "text/html,application/xhtml+xml",
			wantStatus: http.StatusFound,
		},
		{
			name:       "public_route_with_identity",
			path:       "/health",
			bearer:     "staff-token",
			wantStatus: http.StatusOK,
			wantUser:   "bob@example.com",
		},
		{
			name:       "public_route_with_expired_token",
			path:       "/health",
			bearer:     "expired-token",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var sawIdentity string
			handler := newTestAuthenticator(t).Handler(echoIdentityHandler(&sawIdentity))

			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, rec.Body.String())
			}
			assert.Equal(t, tc.wantUser, sawIdentity)
		})
	}
}

// TestUnauthenticatedBodiesIdentical verifies that the 401 response does
// not leak why authentication failed.
func TestUnauthenticatedBodiesIdentical(t *testing.T) {
	t.Parallel()

	handler := newTestAuthenticator(t).Handler(http.NotFoundHandler())

	bodies := make(map[string]struct{})
	for _, bearer := range []string{"", "expired-token", "ghost-token", "not-even-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies[rec.Body.String()] = struct{}{}
	}

	assert.Len(t, bodies, 1, "all 401 responses must share one body")
}

// TestBrowserRedirectCarriesOriginalURL verifies that the login redirect
// preserves the requested location.
func TestBrowserRedirectCarriesOriginalURL(t *testing.T) {
	t.Parallel()

	handler := newTestAuthenticator(t).Handler(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/app/matters?tab=open", nil)
	req.Header.Set("Accept", "text/html")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fapp%2Fmatters%3Ftab%3Dopen", rec.Header().Get("Location"))
}
