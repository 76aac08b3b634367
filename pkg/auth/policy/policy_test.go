// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/briefdesk/briefdesk/pkg/auth/identity"
)

func rolePtr(r identity.Role) *identity.Role {
	return &r
}

func TestEvaluateDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := Default()

	testCases := []struct {
		name         string
		path         string
		role         *identity.Role
		wantOutcome  Outcome
		wantRequired identity.Role
	}{
		{
			name:        "root_is_public",
			path:        "/",
			role:        nil,
			wantOutcome: Allow,
		},
		{
			name:        "health_is_public",
			path:        "/health",
			role:        nil,
			wantOutcome: Allow,
		},
		{
			name:        "api_requires_identity",
			path:        "/api/v1/matters",
			role:        nil,
			wantOutcome: Unauthenticated,
		},
		{
			name:        "api_allows_customer",
			path:        "/api/v1/matters",
			role:        rolePtr(identity.RoleCustomer),
			wantOutcome: Allow,
		},
		{
			name:        "app_requires_identity",
			path:        "/app",
			role:        nil,
			wantOutcome: Unauthenticated,
		},
		{
			name:         "admin_rejects_staff",
			path:         "/admin/users",
			role:         rolePtr(identity.RoleStaff),
			wantOutcome:  Forbidden,
			wantRequired: identity.RoleAdmin,
		},
		{
			name:        "admin_allows_admin",
			path:        "/admin/users",
			role:        rolePtr(identity.RoleAdmin),
			wantOutcome: Allow,
		},
		{
			name:        "admin_unauthenticated",
			path:        "/admin",
			role:        nil,
			wantOutcome: Unauthenticated,
		},
		{
			name:        "admin_prefix_does_not_match_lookalike",
			path:        "/administrator-faq",
			role:        nil,
			wantOutcome: Allow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := p.Evaluate(tc.path, tc.role)
			assert.Equal(t, tc.wantOutcome, d.Outcome)
			if tc.wantOutcome == Forbidden {
				assert.Equal(t, tc.wantRequired, d.RequiredRole)
			}
		})
	}
}

// TestLongestPrefixWins verifies that rule specificity, not declaration
// order, decides which rule applies.
func TestLongestPrefixWins(t *testing.T) {
	t.Parallel()

	p := New([]Rule{
		{Prefix: "/", Requirement: Public},
		{Prefix: "/api", Requirement: Authenticated},
		{Prefix: "/api/public", Requirement: Public},
	})

	assert.Equal(t, Allow, p.Evaluate("/api/public/docs", nil).Outcome)
	assert.Equal(t, Unauthenticated, p.Evaluate("/api/v1/me", nil).Outcome)
	assert.Equal(t, Allow, p.Evaluate("/about", nil).Outcome)
}

// TestNoMatchingRuleFailsClosed verifies that a path outside the table
// requires authentication.
func TestNoMatchingRuleFailsClosed(t *testing.T) {
	t.Parallel()

	p := New([]Rule{{Prefix: "/public", Requirement: Public}})

	assert.Equal(t, Unauthenticated, p.Evaluate("/internal", nil).Outcome)
	assert.Equal(t, Allow, p.Evaluate("/internal", rolePtr(identity.RoleCustomer)).Outcome)
}
